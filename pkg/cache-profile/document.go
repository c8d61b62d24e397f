package cacheprofile

import (
	"bytes"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Record is one profile entry as it appears in a configuration document.
type Record struct {
	Key            string `yaml:"key" json:"key"`
	MaxAgeSeconds  int    `yaml:"maxAgeSeconds" json:"maxAgeSeconds"`
	Visibility     string `yaml:"visibility" json:"visibility"`
	MustRevalidate bool   `yaml:"mustRevalidate" json:"mustRevalidate"`
	VaryByHeader   string `yaml:"varyByHeader,omitempty" json:"varyByHeader,omitempty"`
}

// Document is the configuration document consumed by Parse.
type Document struct {
	CacheProfiles []Record `yaml:"cacheProfiles"`
}

// Profile converts the record, validating the visibility.
func (r Record) Profile() (CacheProfile, error) {
	v, err := ParseVisibility(r.Visibility)
	if err != nil {
		return CacheProfile{}, &ConfigurationError{Profile: r.Key, Err: errors.Mark(err, ErrInvalidProfile)}
	}
	return CacheProfile{
		Key:            r.Key,
		MaxAgeSeconds:  r.MaxAgeSeconds,
		Visibility:     v,
		MustRevalidate: r.MustRevalidate,
		VaryByHeader:   r.VaryByHeader,
	}, nil
}

// FromRecords builds a store from records in document order.
func FromRecords(records []Record) (*Store, error) {
	profiles := make([]CacheProfile, 0, len(records))
	for _, r := range records {
		p, err := r.Profile()
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return NewStore(profiles...)
}

// Parse decodes a YAML (or JSON) document and builds a store from it.
// Unknown fields are rejected so that typos surface at startup.
func Parse(doc []byte) (*Store, error) {
	var d Document
	dec := yaml.NewDecoder(bytes.NewReader(doc))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil && err != io.EOF {
		return nil, &ConfigurationError{Reason: "malformed document", Err: errors.Mark(err, ErrInvalidProfile)}
	}
	return FromRecords(d.CacheProfiles)
}

// LoadFile reads and parses the document at filename.
func LoadFile(filename string) (*Store, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading cache profiles from %s", filename)
	}
	return Parse(b)
}
