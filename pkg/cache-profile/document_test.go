package cacheprofile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDocument = `
cacheProfiles:
  - key: StaticFiles
    maxAgeSeconds: 2592000
    visibility: public
    mustRevalidate: false
  - key: Account
    maxAgeSeconds: 0
    visibility: no-store
    mustRevalidate: true
    varyByHeader: Cookie
`

func TestParse(t *testing.T) {
	store, err := Parse([]byte(testDocument))
	require.NoError(t, err)
	assert.Equal(t, []string{StaticFiles, "Account"}, store.Keys())

	p, err := store.Lookup("Account")
	require.NoError(t, err)
	assert.Equal(t, CacheProfile{
		Key:            "Account",
		Visibility:     NoStore,
		MustRevalidate: true,
		VaryByHeader:   "Cookie",
	}, p)
}

func TestParseJSON(t *testing.T) {
	store, err := Parse([]byte(`{"cacheProfiles": [{"key": "StaticFiles", "maxAgeSeconds": 60, "visibility": "private", "mustRevalidate": true}]}`))
	require.NoError(t, err)
	p, err := store.Lookup(StaticFiles)
	require.NoError(t, err)
	assert.Equal(t, "private, max-age=60, must-revalidate", p.CacheControl())
}

func TestParseEmptyDocument(t *testing.T) {
	store, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestParseRejectsMalformedRecords(t *testing.T) {
	docs := map[string]string{
		"unknown visibility": "cacheProfiles:\n  - key: a\n    visibility: everyone\n",
		"missing visibility": "cacheProfiles:\n  - key: a\n",
		"negative max-age":   "cacheProfiles:\n  - key: a\n    visibility: public\n    maxAgeSeconds: -5\n",
		"duplicate key":      "cacheProfiles:\n  - key: a\n    visibility: public\n  - key: a\n    visibility: private\n",
		"unknown field":      "cacheProfiles:\n  - key: a\n    visibility: public\n    maxAge: 5\n",
		"not a list":         "cacheProfiles: 5\n",
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err), "got %v", err)
			assert.True(t, errors.Is(err, ErrInvalidProfile), "got %v", err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(testDocument), 0644))

	store, err := LoadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
