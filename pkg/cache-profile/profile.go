package cacheprofile

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// StaticFiles is the well-known key of the profile applied to static file responses.
const StaticFiles = "StaticFiles"

type Visibility int

const (
	Public Visibility = iota
	Private
	NoStore
)

func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	case NoStore:
		return "no-store"
	}
	return "Visibility(" + strconv.Itoa(int(v)) + ")"
}

// ParseVisibility converts the configuration form of a visibility.
// Matching is exact, "Public" is not accepted.
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "public":
		return Public, nil
	case "private":
		return Private, nil
	case "no-store":
		return NoStore, nil
	}
	return 0, errors.Newf("unknown visibility %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (v Visibility) MarshalText() ([]byte, error) {
	if v < Public || v > NoStore {
		return nil, errors.Newf("unknown visibility %d", int(v))
	}
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Visibility) UnmarshalText(b []byte) error {
	parsed, err := ParseVisibility(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// CacheProfile is a named, reusable cache policy.
type CacheProfile struct {
	Key            string
	MaxAgeSeconds  int
	Visibility     Visibility
	MustRevalidate bool
	// Request header the cached response varies by. Empty means no Vary header.
	VaryByHeader string
}

// CacheControl renders the Cache-Control value of the profile,
// e.g. "public, max-age=2592000" or "private, max-age=0, must-revalidate".
func (p CacheProfile) CacheControl() string {
	var sb strings.Builder
	sb.WriteString(p.Visibility.String())
	sb.WriteString(", max-age=")
	sb.WriteString(strconv.Itoa(p.MaxAgeSeconds))
	if p.MustRevalidate {
		sb.WriteString(", must-revalidate")
	}
	return sb.String()
}

// Pragma returns the legacy Pragma value for the profile,
// or the empty string if none should be sent.
func (p CacheProfile) Pragma() string {
	if p.Visibility == Public {
		return ""
	}
	return "no-cache"
}

func (p CacheProfile) validate() error {
	if p.Key == "" {
		return invalid("", "empty key")
	}
	if p.MaxAgeSeconds < 0 {
		return invalid(p.Key, "negative maxAgeSeconds "+strconv.Itoa(p.MaxAgeSeconds))
	}
	if p.Visibility < Public || p.Visibility > NoStore {
		return invalid(p.Key, "unknown visibility "+p.Visibility.String())
	}
	return nil
}
