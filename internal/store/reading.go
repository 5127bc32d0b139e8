package store

import (
	"database/sql"
)

// Reading is the stored gaze estimate of one frame.
type Reading struct {
	ID          int64   `json:"id"`
	SessionID   string  `json:"session_id"`
	Frame       int     `json:"frame"`
	TimestampMs int64   `json:"timestamp_ms"`
	Horizontal  float64 `json:"horizontal"`
	Vertical    float64 `json:"vertical"`
	Direction   string  `json:"direction"`
	LeftX       int     `json:"left_x"`
	LeftY       int     `json:"left_y"`
	RightX      int     `json:"right_x"`
	RightY      int     `json:"right_y"`
	PupilsFound bool    `json:"pupils_found"`
}

// ReadingRepository stores gaze readings.
type ReadingRepository struct {
	db *sql.DB
}

// Readings returns the reading repository for this store.
func (s *Store) Readings() *ReadingRepository {
	return &ReadingRepository{db: s.db}
}

// Create inserts a reading and sets its ID.
func (r *ReadingRepository) Create(rd *Reading) error {
	result, err := r.db.Exec(
		`INSERT INTO readings (session_id, frame, timestamp_ms, horizontal, vertical, direction,
			left_x, left_y, right_x, right_y, pupils_found)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rd.SessionID, rd.Frame, rd.TimestampMs, rd.Horizontal, rd.Vertical, rd.Direction,
		rd.LeftX, rd.LeftY, rd.RightX, rd.RightY, rd.PupilsFound,
	)
	if err != nil {
		return err
	}

	rd.ID, err = result.LastInsertId()
	return err
}

// GetBySessionID retrieves readings of a session in frame order.
// A limit of zero or less returns every reading.
func (r *ReadingRepository) GetBySessionID(sessionID string, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, session_id, frame, timestamp_ms, horizontal, vertical, direction,
			left_x, left_y, right_x, right_y, pupils_found
		 FROM readings
		 WHERE session_id = ?
		 ORDER BY frame
		 LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var readings []Reading
	for rows.Next() {
		var rd Reading
		var found int
		err := rows.Scan(&rd.ID, &rd.SessionID, &rd.Frame, &rd.TimestampMs, &rd.Horizontal, &rd.Vertical,
			&rd.Direction, &rd.LeftX, &rd.LeftY, &rd.RightX, &rd.RightY, &found)
		if err != nil {
			return nil, err
		}
		rd.PupilsFound = found != 0
		readings = append(readings, rd)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return readings, nil
}

// CountByDirection returns how many readings of a session fall in each direction.
func (r *ReadingRepository) CountByDirection(sessionID string) (map[string]int, error) {
	rows, err := r.db.Query(
		`SELECT direction, COUNT(*) FROM readings WHERE session_id = ? GROUP BY direction`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var direction string
		var n int
		if err := rows.Scan(&direction, &n); err != nil {
			return nil, err
		}
		counts[direction] = n
	}

	return counts, rows.Err()
}
