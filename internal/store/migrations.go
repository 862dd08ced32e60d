package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Recordings table - one row per finished export
		`CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			mime TEXT NOT NULL,
			format TEXT NOT NULL CHECK(format IN ('audio', 'video')),
			size INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			path TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_recordings_created_at ON recordings(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
