package store

import (
	"database/sql"
)

// CalibrationSample is one recorded winning threshold for an eye side.
type CalibrationSample struct {
	SessionID   string  `json:"session_id"`
	Side        string  `json:"side"`
	SampleIndex int     `json:"sample_index"`
	Threshold   int     `json:"threshold"`
	Ratio       float64 `json:"ratio"`
}

// CalibrationRepository stores calibration samples.
type CalibrationRepository struct {
	db *sql.DB
}

// Calibrations returns the calibration repository for this store.
func (s *Store) Calibrations() *CalibrationRepository {
	return &CalibrationRepository{db: s.db}
}

// Replace stores the samples of one session, discarding the ones saved before.
func (r *CalibrationRepository) Replace(sessionID string, samples []CalibrationSample) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM calibration_samples WHERE session_id = ?`, sessionID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(
		`INSERT INTO calibration_samples (session_id, side, sample_index, threshold, ratio)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.Exec(sessionID, s.Side, s.SampleIndex, s.Threshold, s.Ratio); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetBySessionID retrieves the samples of a session ordered by side and index.
func (r *CalibrationRepository) GetBySessionID(sessionID string) ([]CalibrationSample, error) {
	rows, err := r.db.Query(
		`SELECT session_id, side, sample_index, threshold, ratio
		 FROM calibration_samples
		 WHERE session_id = ?
		 ORDER BY side, sample_index`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []CalibrationSample
	for rows.Next() {
		var s CalibrationSample
		if err := rows.Scan(&s.SessionID, &s.Side, &s.SampleIndex, &s.Threshold, &s.Ratio); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return samples, nil
}
