package store

import (
	"database/sql"
	"time"
)

// Export records the result of running one exporter plugin for a capture.
type Export struct {
	ID         int64     `json:"id"`
	CaptureID  string    `json:"capture_id"`
	PluginName string    `json:"plugin_name"`
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ExportRepository records exporter plugin runs.
type ExportRepository struct {
	db *sql.DB
}

// Exports returns the export repository for this store.
func (s *Store) Exports() *ExportRepository {
	return &ExportRepository{db: s.db}
}

// Create records an export result.
func (r *ExportRepository) Create(e *Export) error {
	e.CreatedAt = time.Now().UTC()

	result, err := r.db.Exec(
		`INSERT INTO exports (capture_id, plugin_name, success, message, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		e.CaptureID, e.PluginName, e.Success, e.Message, e.CreatedAt,
	)
	if err != nil {
		return err
	}
	e.ID, err = result.LastInsertId()
	return err
}

// ListByCapture returns the export results for a capture, oldest first.
func (r *ExportRepository) ListByCapture(captureID string) ([]*Export, error) {
	rows, err := r.db.Query(
		`SELECT id, capture_id, plugin_name, success, message, created_at
		 FROM exports WHERE capture_id = ? ORDER BY id`,
		captureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exports []*Export
	for rows.Next() {
		e := &Export{}
		var success int
		if err := rows.Scan(&e.ID, &e.CaptureID, &e.PluginName, &success, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Success = success != 0
		exports = append(exports, e)
	}
	return exports, rows.Err()
}
