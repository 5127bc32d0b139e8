// Package app runs gaze tracking sessions over a frame source and publishes
// the latest results to the server and tray.
package app

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ayusman/nayana/internal/calibration"
	"github.com/ayusman/nayana/internal/capture"
	"github.com/ayusman/nayana/internal/gaze"
	"github.com/ayusman/nayana/internal/landmark"
	"github.com/ayusman/nayana/internal/logger"
	"github.com/ayusman/nayana/internal/store"
)

// ErrRunning is returned by Process while the live pipeline is running.
var ErrRunning = errors.New("pipeline already running")

// Config holds the collaborators and settings of an App.
type Config struct {
	// Store persists sessions, calibration and readings. Optional.
	Store    *store.Store
	Camera   capture.Camera
	Detector landmark.Detector

	Calibration calibration.Options
	// SceneChangePercent restarts calibration when more than this share of
	// pixels changes between frames. Zero disables it.
	SceneChangePercent float64
	// Annotate keeps a JPEG of every processed frame with pupils drawn on it.
	Annotate bool
}

// Update is the outcome of one processed frame.
type Update struct {
	SessionID  string         `json:"session_id"`
	Frame      int            `json:"frame"`
	Timestamp  int64          `json:"timestamp"`
	Direction  gaze.Direction `json:"direction,omitempty"`
	Horizontal float64        `json:"horizontal"`
	Vertical   float64        `json:"vertical"`
	Calibrated bool           `json:"calibrated"`
	Result     *gaze.Result   `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// App orchestrates frame capture, gaze tracking and persistence.
type App struct {
	config Config
	scene  *capture.SceneChangeDetector

	enabled bool
	stopCh  chan struct{}
	done    chan struct{}
	current *session
	mu      sync.RWMutex

	latest    Update
	hasLatest bool
	jpeg      []byte
	snapMu    sync.RWMutex

	recalibrate atomic.Bool
}

// New creates an App. Camera and Detector are required.
func New(config Config) (*App, error) {
	if config.Camera == nil {
		return nil, errors.New("app: camera is required")
	}
	if config.Detector == nil {
		return nil, errors.New("app: landmark detector is required")
	}
	if err := config.Calibration.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		config:  config,
		enabled: true,
	}
	if config.SceneChangePercent > 0 {
		a.scene = capture.NewSceneChangeDetector(config.SceneChangePercent)
	}
	return a, nil
}

// SetEnabled pauses or resumes frame processing without stopping the camera.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether frames are being processed.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// IsRunning reports whether the live pipeline is started.
func (a *App) IsRunning() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.stopCh != nil
}

// Recalibrate discards the current session's calibration before the next frame.
func (a *App) Recalibrate() {
	a.recalibrate.Store(true)
	logger.Info(logger.Fields{"session_id": a.SessionID()}, "recalibration requested")
}

// SessionID returns the id of the running session, or "" when idle.
func (a *App) SessionID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return ""
	}
	return a.current.id
}

// Latest returns the most recent update and whether there is one.
func (a *App) Latest() (Update, bool) {
	a.snapMu.RLock()
	defer a.snapMu.RUnlock()
	return a.latest, a.hasLatest
}

// LatestJPEG returns the most recent annotated frame, or nil.
func (a *App) LatestJPEG() []byte {
	a.snapMu.RLock()
	defer a.snapMu.RUnlock()
	return a.jpeg
}

func (a *App) publish(u Update, jpeg []byte) {
	a.snapMu.Lock()
	defer a.snapMu.Unlock()
	a.latest = u
	a.hasLatest = true
	if jpeg != nil {
		a.jpeg = jpeg
	}
}

// Start opens the camera, begins a session and runs the pipeline in the
// background until Stop.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.config.Camera.Open(); err != nil {
		return err
	}

	sess, err := a.beginSession()
	if err != nil {
		a.config.Camera.Close()
		return err
	}

	a.current = sess
	a.stopCh = make(chan struct{})
	a.done = make(chan struct{})
	go a.runPipeline(sess, a.stopCh, a.done)

	sess.log.WithField("source", a.config.Camera.Source()).Info("tracking started")
	return nil
}

// Stop halts the pipeline, ends the session and releases the camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	stopCh, done, sess := a.stopCh, a.done, a.current
	a.stopCh, a.done, a.current = nil, nil, nil
	a.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
		<-done
		a.endSession(sess)
	}

	if err := a.config.Camera.Close(); err != nil {
		logger.Warn(logger.Fields{"error": err.Error()}, "error closing camera")
	}
	if a.scene != nil {
		a.scene.Close()
	}
	if err := a.config.Detector.Close(); err != nil {
		logger.Warn(logger.Fields{"error": err.Error()}, "error closing landmark detector")
	}
}
