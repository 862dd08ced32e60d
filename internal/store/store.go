// Package store provides SQLite storage for the recordings catalog.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DatabaseFile is the catalog file name inside the data directory.
const DatabaseFile = "handchord.db"

// Store represents a SQLite database connection plus the directory that holds
// recording files.
type Store struct {
	db      *sql.DB
	path    string
	fileDir string
}

// Open creates dataDir if needed and opens the catalog inside it.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	return New(filepath.Join(dataDir, DatabaseFile))
}

// New creates a new Store with the given database path.
// Recording files live in a "recordings" directory next to the database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		db:      db,
		path:    dbPath,
		fileDir: filepath.Join(filepath.Dir(dbPath), "recordings"),
	}

	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// FileDir returns the directory recording files are written to.
func (s *Store) FileDir() string {
	return s.fileDir
}
