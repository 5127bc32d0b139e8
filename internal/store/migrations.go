package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per tracking run
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			frames INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME
		)`,

		// Calibration samples table - winning thresholds per eye side
		`CREATE TABLE IF NOT EXISTS calibration_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			side TEXT NOT NULL CHECK(side IN ('left', 'right')),
			sample_index INTEGER NOT NULL,
			threshold INTEGER NOT NULL,
			ratio REAL NOT NULL,
			UNIQUE(session_id, side, sample_index)
		)`,

		// Readings table - gaze estimate per processed frame
		`CREATE TABLE IF NOT EXISTS readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			frame INTEGER NOT NULL,
			timestamp_ms INTEGER NOT NULL,
			horizontal REAL NOT NULL,
			vertical REAL NOT NULL,
			direction TEXT NOT NULL,
			left_x INTEGER NOT NULL,
			left_y INTEGER NOT NULL,
			right_x INTEGER NOT NULL,
			right_y INTEGER NOT NULL,
			pupils_found INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE INDEX IF NOT EXISTS idx_calibration_samples_session_id ON calibration_samples(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_readings_session_id ON readings(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
