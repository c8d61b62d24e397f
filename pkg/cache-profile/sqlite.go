package cacheprofile

import (
	"database/sql"
	"sync"

	"github.com/cockroachdb/errors"
	_ "github.com/glebarez/go-sqlite"
)

// SQLiteSource keeps cache profile records in a SQLite database.
// It is read once at startup to build a Store; requests never touch it.
type SQLiteSource struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// OpenSQLite opens (and if needed creates) the profile table in the given db file.
// If file name is empty, a new in-memory db is opened.
func OpenSQLite(filename string) (*SQLiteSource, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening profile db %s", filename)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS cache_profiles (
		position INTEGER NOT NULL,
		key TEXT PRIMARY KEY,
		max_age_seconds INTEGER NOT NULL,
		visibility TEXT NOT NULL,
		must_revalidate INTEGER NOT NULL,
		vary_by_header TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating cache_profiles table")
	}
	return &SQLiteSource{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

// Put inserts or replaces a profile. New keys are appended after existing ones;
// replacing a key keeps its position.
func (s *SQLiteSource) Put(p CacheProfile) error {
	if err := p.validate(); err != nil {
		return err
	}
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec(`INSERT INTO cache_profiles
		(position, key, max_age_seconds, visibility, must_revalidate, vary_by_header)
		VALUES ((SELECT COALESCE(MAX(position), 0) + 1 FROM cache_profiles), ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			max_age_seconds = excluded.max_age_seconds,
			visibility = excluded.visibility,
			must_revalidate = excluded.must_revalidate,
			vary_by_header = excluded.vary_by_header`,
		p.Key, p.MaxAgeSeconds, p.Visibility.String(), p.MustRevalidate, p.VaryByHeader)
	return errors.Wrapf(err, "storing profile %s", p.Key)
}

// Records returns all stored records ordered by position.
func (s *SQLiteSource) Records() ([]Record, error) {
	rows, err := s.db.Query(`SELECT
		key, max_age_seconds, visibility, must_revalidate, vary_by_header
		FROM cache_profiles ORDER BY position ASC`)
	if err != nil {
		return nil, errors.Wrap(err, "querying cache_profiles")
	}
	defer rows.Close()
	records := make([]Record, 0)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Key, &r.MaxAgeSeconds, &r.Visibility, &r.MustRevalidate, &r.VaryByHeader); err != nil {
			return nil, errors.Wrap(err, "scanning cache profile")
		}
		records = append(records, r)
	}
	return records, errors.Wrap(rows.Err(), "reading cache_profiles")
}

// Store builds an immutable Store from the current table contents.
func (s *SQLiteSource) Store() (*Store, error) {
	records, err := s.Records()
	if err != nil {
		return nil, err
	}
	return FromRecords(records)
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
