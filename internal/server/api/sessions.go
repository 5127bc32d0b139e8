package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ayusman/nayana/internal/store"
)

// SessionHandler serves recorded tracking sessions.
//
// Routes:
//
//	GET /api/sessions
//	GET /api/sessions/{id}
//	GET /api/sessions/{id}/readings?limit=N
//	GET /api/sessions/{id}/calibration
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a new SessionHandler with the given store.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

type sessionResponse struct {
	ID         string         `json:"id"`
	Source     string         `json:"source"`
	Frames     int            `json:"frames"`
	StartedAt  string         `json:"started_at"`
	EndedAt    string         `json:"ended_at,omitempty"`
	Directions map[string]int `json:"directions,omitempty"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type readingsResponse struct {
	SessionID string          `json:"session_id"`
	Readings  []store.Reading `json:"readings"`
}

type calibrationResponse struct {
	SessionID  string                    `json:"session_id"`
	Thresholds map[string]int            `json:"thresholds"`
	Samples    []store.CalibrationSample `json:"samples"`
}

func toResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:        s.ID,
		Source:    s.Source,
		Frames:    s.Frames,
		StartedAt: s.StartedAt.Format(time.RFC3339),
	}
	if s.EndedAt != nil {
		resp.EndedAt = s.EndedAt.Format(time.RFC3339)
	}
	return resp
}

// ServeHTTP routes session requests by path.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")
	if path == "" {
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch sub {
	case "":
		h.get(w, r, id)
	case "readings":
		h.readings(w, r, id)
	case "calibration":
		h.calibration(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id}, including per-direction reading counts.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	sess, ok := h.lookup(w, id)
	if !ok {
		return
	}

	counts, err := h.store.Readings().CountByDirection(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count readings")
		return
	}

	resp := toResponse(sess)
	resp.Directions = counts
	writeJSON(w, http.StatusOK, resp)
}

// readings handles GET /api/sessions/{id}/readings.
func (h *SessionHandler) readings(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	readings, err := h.store.Readings().GetBySessionID(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get readings")
		return
	}
	if readings == nil {
		readings = []store.Reading{}
	}

	writeJSON(w, http.StatusOK, readingsResponse{SessionID: id, Readings: readings})
}

// calibration handles GET /api/sessions/{id}/calibration.
func (h *SessionHandler) calibration(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := h.lookup(w, id); !ok {
		return
	}

	samples, err := h.store.Calibrations().GetBySessionID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get calibration")
		return
	}
	if samples == nil {
		samples = []store.CalibrationSample{}
	}

	writeJSON(w, http.StatusOK, calibrationResponse{
		SessionID:  id,
		Thresholds: meanThresholds(samples),
		Samples:    samples,
	})
}

func (h *SessionHandler) lookup(w http.ResponseWriter, id string) (*store.Session, bool) {
	sess, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return nil, false
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return nil, false
	}
	return sess, true
}

// meanThresholds averages the stored thresholds per side, rounding half up.
func meanThresholds(samples []store.CalibrationSample) map[string]int {
	sums := make(map[string]int)
	counts := make(map[string]int)
	for _, s := range samples {
		sums[s.Side] += s.Threshold
		counts[s.Side]++
	}

	out := make(map[string]int, len(sums))
	for side, sum := range sums {
		n := counts[side]
		out[side] = (2*sum + n) / (2 * n)
	}
	return out
}
