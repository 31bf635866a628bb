package store

func (s *Store) runMigrations() error {
	migrations := []string{
		// One row per auto-capture.
		`CREATE TABLE IF NOT EXISTS captures (
			id TEXT PRIMARY KEY,
			garment TEXT NOT NULL CHECK(garment IN ('shirt', 'trousers', 'suit')),
			unit TEXT NOT NULL CHECK(unit IN ('cm', 'in')),
			height_hint_cm REAL NOT NULL DEFAULT 0,
			image_path TEXT NOT NULL DEFAULT '',
			timestamp_ms INTEGER NOT NULL,
			captured_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Measurements of a capture, in centimeters, in set order.
		`CREATE TABLE IF NOT EXISTS capture_measurements (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			capture_id TEXT NOT NULL REFERENCES captures(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			kind TEXT NOT NULL,
			label TEXT NOT NULL,
			value_cm REAL NOT NULL,
			confidence REAL NOT NULL,
			UNIQUE(capture_id, kind)
		)`,

		// Outcome of each exporter plugin run for a capture.
		`CREATE TABLE IF NOT EXISTS exports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			capture_id TEXT NOT NULL REFERENCES captures(id) ON DELETE CASCADE,
			plugin_name TEXT NOT NULL,
			success INTEGER NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_captures_captured_at ON captures(captured_at)`,
		`CREATE INDEX IF NOT EXISTS idx_capture_measurements_capture_id ON capture_measurements(capture_id)`,
		`CREATE INDEX IF NOT EXISTS idx_exports_capture_id ON exports(capture_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
