// Package server provides the HTTP server exposing gaze sessions, live
// results and image analysis.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ayusman/nayana/internal/app"
	"github.com/ayusman/nayana/internal/calibration"
	"github.com/ayusman/nayana/internal/landmark"
	"github.com/ayusman/nayana/internal/logger"
	"github.com/ayusman/nayana/internal/server/api"
	"github.com/ayusman/nayana/internal/store"
)

// Pipeline is the live tracking state the server publishes.
type Pipeline interface {
	Latest() (app.Update, bool)
	LatestJPEG() []byte
	Recalibrate()
	SessionID() string
}

// Config holds the server configuration. Every field is optional; routes
// whose dependencies are missing are not registered.
type Config struct {
	StaticDir   string
	Store       *store.Store
	Pipeline    Pipeline
	Detector    landmark.Detector
	Calibration calibration.Options
}

// Server is the HTTP front end of the tracker.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	gaze   *GazeHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	if s.config.Detector != nil {
		opts := s.config.Calibration
		if opts.Validate() != nil {
			opts = calibration.DefaultOptions()
		}
		s.mux.Handle("/api/analyze", api.NewAnalyzeHandler(s.config.Detector, opts))
	}

	if s.config.Pipeline != nil {
		s.gaze = NewGazeHandler(s.config.Pipeline)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Pipeline))
		s.mux.Handle("/api/gaze", s.gaze)
		s.mux.HandleFunc("/api/calibration/reset", s.handleCalibrationReset)
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Pipeline != nil {
		response["session_id"] = s.config.Pipeline.SessionID()
		if u, ok := s.config.Pipeline.Latest(); ok {
			response["calibrated"] = u.Calibrated
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handleCalibrationReset handles POST /api/calibration/reset.
func (s *Server) handleCalibrationReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.config.Pipeline.Recalibrate()
	w.WriteHeader(http.StatusAccepted)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(logger.Fields{"addr": addr}, "http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if s.gaze != nil {
		s.gaze.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
