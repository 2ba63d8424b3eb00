// Package archive stores generated map sets in a SQLite database so they can
// be listed and exported later.
package archive

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/MeKo-Tech/surfacegen/internal/generator"
)

// ErrNotFound is returned when a set or map does not exist.
var ErrNotFound = errors.New("not found")

// ErrReadOnly is returned by Put on a store opened with OpenReader.
var ErrReadOnly = errors.New("archive opened read-only")

// SetRecord describes one archived set.
type SetRecord struct {
	CreatedAt  time.Time        `json:"created_at"`
	ID         string           `json:"id"`
	Material   string           `json:"material"`
	Params     generator.Params `json:"params"`
	Stats      generator.Stats  `json:"stats"`
	Resolution int              `json:"resolution"`
	Seed       int64            `json:"seed"`
	Elapsed    time.Duration    `json:"elapsed"`
}

// RecordFor builds the record describing maps. ID and CreatedAt are filled
// in by Put.
func RecordFor(maps *generator.Maps) SetRecord {
	return SetRecord{
		Material:   maps.Params.Material.String(),
		Params:     maps.Params,
		Stats:      maps.Stats,
		Resolution: maps.Params.Resolution,
		Seed:       maps.Seed,
		Elapsed:    maps.Elapsed,
	}
}

// Store is a set archive backed by one SQLite file.
type Store struct {
	db       *sql.DB
	path     string
	mu       sync.Mutex
	readOnly bool
}

// New opens or creates the archive at path and initializes the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// OpenReader opens an existing archive without write access.
func OpenReader(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='sets'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database does not contain sets table")
	}

	return &Store{db: db, path: path, readOnly: true}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS sets (
			id TEXT PRIMARY KEY,
			material TEXT NOT NULL,
			resolution INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			params TEXT NOT NULL,
			stats TEXT NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS maps (
			set_id TEXT NOT NULL REFERENCES sets (id) ON DELETE CASCADE,
			kind TEXT NOT NULL,
			png BLOB NOT NULL,
			PRIMARY KEY (set_id, kind)
		);

		CREATE INDEX IF NOT EXISTS sets_created ON sets (created_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
