package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Measurement is one stored measurement of a capture.
type Measurement struct {
	Kind       string  `json:"kind"`
	Label      string  `json:"label"`
	ValueCm    float64 `json:"value_cm"`
	Confidence float64 `json:"confidence"`
}

// Capture is a finalized measurement capture stored in the database.
type Capture struct {
	ID           string        `json:"id"`
	Garment      string        `json:"garment"`
	Unit         string        `json:"unit"`
	HeightHintCm float64       `json:"height_hint_cm"`
	ImagePath    string        `json:"image_path,omitempty"`
	TimestampMs  int64         `json:"timestamp_ms"`
	CapturedAt   time.Time     `json:"captured_at"`
	Measurements []Measurement `json:"measurements"`
}

// CaptureRepository provides CRUD operations for captures.
type CaptureRepository struct {
	db *sql.DB
}

// Captures returns the capture repository for this store.
func (s *Store) Captures() *CaptureRepository {
	return &CaptureRepository{db: s.db}
}

// Create inserts a capture and its measurements in a single transaction.
// A zero CapturedAt is set to the current time.
func (r *CaptureRepository) Create(c *Capture) error {
	if c.CapturedAt.IsZero() {
		c.CapturedAt = time.Now().UTC()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO captures (id, garment, unit, height_hint_cm, image_path, timestamp_ms, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Garment, c.Unit, c.HeightHintCm, c.ImagePath, c.TimestampMs, c.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("insert capture: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO capture_measurements (capture_id, position, kind, label, value_cm, confidence)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, m := range c.Measurements {
		if _, err := stmt.Exec(c.ID, i, m.Kind, m.Label, m.ValueCm, m.Confidence); err != nil {
			return fmt.Errorf("insert measurement %s: %w", m.Kind, err)
		}
	}

	return tx.Commit()
}

// GetByID retrieves a capture with its measurements.
func (r *CaptureRepository) GetByID(id string) (*Capture, error) {
	c := &Capture{}
	err := r.db.QueryRow(
		`SELECT id, garment, unit, height_hint_cm, image_path, timestamp_ms, captured_at
		 FROM captures WHERE id = ?`,
		id,
	).Scan(&c.ID, &c.Garment, &c.Unit, &c.HeightHintCm, &c.ImagePath, &c.TimestampMs, &c.CapturedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	c.Measurements, err = r.measurements(c.ID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// List returns the most recent captures first, with measurements.
// A non-positive limit returns every capture.
func (r *CaptureRepository) List(limit int) ([]*Capture, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(
		`SELECT id, garment, unit, height_hint_cm, image_path, timestamp_ms, captured_at
		 FROM captures ORDER BY captured_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}

	var captures []*Capture
	for rows.Next() {
		c := &Capture{}
		if err := rows.Scan(&c.ID, &c.Garment, &c.Unit, &c.HeightHintCm, &c.ImagePath, &c.TimestampMs, &c.CapturedAt); err != nil {
			rows.Close()
			return nil, err
		}
		captures = append(captures, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Measurements are loaded after the header rows are closed; the store
	// runs on a single connection.
	for _, c := range captures {
		if c.Measurements, err = r.measurements(c.ID); err != nil {
			return nil, err
		}
	}
	return captures, nil
}

// Count returns the number of stored captures.
func (r *CaptureRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM captures`).Scan(&n)
	return n, err
}

// Delete removes a capture; its measurements and export results cascade.
func (r *CaptureRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM captures WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CaptureRepository) measurements(captureID string) ([]Measurement, error) {
	rows, err := r.db.Query(
		`SELECT kind, label, value_cm, confidence
		 FROM capture_measurements
		 WHERE capture_id = ?
		 ORDER BY position`,
		captureID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	measurements := []Measurement{}
	for rows.Next() {
		var m Measurement
		if err := rows.Scan(&m.Kind, &m.Label, &m.ValueCm, &m.Confidence); err != nil {
			return nil, err
		}
		measurements = append(measurements, m)
	}
	return measurements, rows.Err()
}
