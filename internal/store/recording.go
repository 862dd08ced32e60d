package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Recording is one exported take in the catalog.
type Recording struct {
	ID        string        `json:"id"`
	FileName  string        `json:"file_name"`
	MIME      string        `json:"mime"`
	Format    string        `json:"format"`
	Size      int64         `json:"size"`
	Duration  time.Duration `json:"duration"`
	Path      string        `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
}

// RecordingRepository stores recording files and their catalog rows.
type RecordingRepository struct {
	db  *sql.DB
	dir string
}

// Recordings returns the recording repository for this store.
func (s *Store) Recordings() *RecordingRepository {
	return &RecordingRepository{db: s.db, dir: s.fileDir}
}

// Save writes data to the recordings directory and inserts the catalog row.
// Path, Size and (when zero) CreatedAt are filled in on rec.
func (r *RecordingRepository) Save(rec *Recording, data []byte) error {
	if rec.ID == "" {
		return errors.New("recording id is required")
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create recordings dir: %w", err)
	}

	path := filepath.Join(r.dir, rec.ID+"-"+filepath.Base(rec.FileName))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write recording: %w", err)
	}

	rec.Path = path
	rec.Size = int64(len(data))
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO recordings (id, file_name, mime, format, size, duration_ms, path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FileName, rec.MIME, rec.Format, rec.Size, rec.Duration.Milliseconds(), rec.Path, rec.CreatedAt,
	)
	if err != nil {
		os.Remove(path)
		return err
	}

	return nil
}

// GetByID retrieves a recording by its ID.
func (r *RecordingRepository) GetByID(id string) (*Recording, error) {
	row := r.db.QueryRow(
		`SELECT id, file_name, mime, format, size, duration_ms, path, created_at
		 FROM recordings WHERE id = ?`,
		id,
	)
	rec, err := scanRecording(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// List returns all recordings, newest first.
func (r *RecordingRepository) List() ([]*Recording, error) {
	rows, err := r.db.Query(
		`SELECT id, file_name, mime, format, size, duration_ms, path, created_at
		 FROM recordings ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recordings []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		recordings = append(recordings, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return recordings, nil
}

// Open returns the recording and a reader over its file.
func (r *RecordingRepository) Open(id string) (*Recording, *os.File, error) {
	rec, err := r.GetByID(id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(rec.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return rec, f, nil
}

// Delete removes a recording row and its file.
func (r *RecordingRepository) Delete(id string) error {
	rec, err := r.GetByID(id)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(`DELETE FROM recordings WHERE id = ?`, id); err != nil {
		return err
	}

	if err := os.Remove(rec.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(s scanner) (*Recording, error) {
	rec := &Recording{}
	var durationMS int64
	if err := s.Scan(&rec.ID, &rec.FileName, &rec.MIME, &rec.Format, &rec.Size, &durationMS, &rec.Path, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return rec, nil
}
