package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/nayana/internal/annotate"
	"github.com/ayusman/nayana/internal/calibration"
	"github.com/ayusman/nayana/internal/capture"
	"github.com/ayusman/nayana/internal/eye"
	"github.com/ayusman/nayana/internal/gaze"
	"github.com/ayusman/nayana/internal/logger"
	"github.com/ayusman/nayana/internal/store"
)

// session is one tracking run with its own calibration.
type session struct {
	id         string
	tracker    *gaze.Tracker
	frames     int
	calibrated bool
	counts     map[gaze.Direction]int
	log        *logrus.Entry
}

// Summary describes a finished session.
type Summary struct {
	SessionID  string                 `json:"session_id"`
	Frames     int                    `json:"frames"`
	Calibrated bool                   `json:"calibrated"`
	Thresholds map[string]int         `json:"thresholds,omitempty"`
	Directions map[gaze.Direction]int `json:"directions"`
}

func (a *App) beginSession() (*session, error) {
	cal, err := calibration.New(a.config.Calibration)
	if err != nil {
		return nil, err
	}

	sess := &session{
		id:      uuid.NewString(),
		tracker: gaze.NewTracker(a.config.Detector, cal, nil),
		counts:  make(map[gaze.Direction]int),
	}
	sess.log = logger.WithSession(sess.id)

	if a.config.Store != nil {
		if err := a.config.Store.Sessions().Create(&store.Session{ID: sess.id, Source: a.config.Camera.Source()}); err != nil {
			return nil, err
		}
	}
	if a.scene != nil {
		a.scene.Reset()
	}
	a.recalibrate.Store(false)
	return sess, nil
}

func (a *App) endSession(sess *session) Summary {
	summary := Summary{
		SessionID:  sess.id,
		Frames:     sess.frames,
		Calibrated: sess.tracker.Calibration().IsComplete(),
		Directions: sess.counts,
	}
	for _, side := range eye.Sides {
		if t, err := sess.tracker.Calibration().Threshold(side); err == nil {
			if summary.Thresholds == nil {
				summary.Thresholds = make(map[string]int)
			}
			summary.Thresholds[side.String()] = t
		}
	}

	if a.config.Store != nil {
		a.saveCalibration(sess)
		if err := a.config.Store.Sessions().End(sess.id, sess.frames); err != nil {
			sess.log.WithError(err).Warn("failed to end session")
		}
	}

	sess.log.WithFields(logrus.Fields{
		"frames":     sess.frames,
		"calibrated": summary.Calibrated,
	}).Info("tracking stopped")
	return summary
}

// runPipeline reads frames at the camera rate until stopCh is closed.
func (a *App) runPipeline(sess *session, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(time.Second / time.Duration(max(a.config.Camera.FPS(), 1)))
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.config.Camera.ReadFrame()
			if errors.Is(err, capture.ErrEndOfStream) {
				sess.log.Info("frame source exhausted")
				return
			}
			if err != nil {
				sess.log.WithError(err).Warn("error reading frame")
				continue
			}

			a.processFrame(sess, frame)
			frame.Close()
		}
	}
}

// Process runs a session over the whole frame source synchronously, as fast
// as frames can be read, and returns its summary. progress, when not nil, is
// called after every frame.
func (a *App) Process(ctx context.Context, progress func(frame int)) (Summary, error) {
	if a.IsRunning() {
		return Summary{}, ErrRunning
	}

	if err := a.config.Camera.Open(); err != nil {
		return Summary{}, err
	}
	defer a.config.Camera.Close()

	sess, err := a.beginSession()
	if err != nil {
		return Summary{}, err
	}
	sess.log.WithField("source", a.config.Camera.Source()).Info("processing started")

	for ctx.Err() == nil {
		frame, err := a.config.Camera.ReadFrame()
		if errors.Is(err, capture.ErrEndOfStream) {
			break
		}
		if err != nil {
			a.endSession(sess)
			return Summary{}, err
		}

		a.processFrame(sess, frame)
		frame.Close()
		if progress != nil {
			progress(sess.frames)
		}
	}

	return a.endSession(sess), ctx.Err()
}

// processFrame tracks one frame and publishes the outcome.
func (a *App) processFrame(sess *session, frame *gocv.Mat) Update {
	cal := sess.tracker.Calibration()

	if a.recalibrate.Swap(false) {
		cal.Reset()
		sess.calibrated = false
		sess.log.Info("calibration reset on request")
	}
	if a.scene != nil {
		if changed, share := a.scene.Detect(frame); changed {
			cal.Reset()
			sess.calibrated = false
			sess.log.WithField("changed_percent", share).Info("scene changed, recalibrating")
		}
	}

	sess.frames++
	u := Update{
		SessionID: sess.id,
		Frame:     sess.frames,
		Timestamp: time.Now().UnixMilli(),
	}

	result, err := sess.tracker.Refresh(frame)
	switch {
	case errors.Is(err, gaze.ErrNoFace):
		u.Error = err.Error()
		sess.log.WithField("frame", sess.frames).Debug("no face in frame")
	case err != nil:
		u.Error = err.Error()
		sess.log.WithError(err).WithField("frame", sess.frames).Warn("gaze tracking failed")
	default:
		u.Result = result
		u.Direction = result.Direction()
		u.Horizontal = result.HorizontalRatio()
		u.Vertical = result.VerticalRatio()
		sess.counts[u.Direction]++
		a.saveReading(sess, u)
	}

	u.Calibrated = cal.IsComplete()
	if u.Calibrated && !sess.calibrated {
		sess.calibrated = true
		sess.log.WithFields(logrus.Fields{
			"left_threshold":  thresholdOf(cal, eye.Left),
			"right_threshold": thresholdOf(cal, eye.Right),
		}).Info("calibration complete")
		a.saveCalibration(sess)
	}

	var jpeg []byte
	if a.config.Annotate {
		jpeg = encodeAnnotated(frame, u.Result)
	}
	a.publish(u, jpeg)
	return u
}

func (a *App) saveReading(sess *session, u Update) {
	if a.config.Store == nil || u.Result == nil {
		return
	}

	left, right := u.Result.Left.PupilCoords(), u.Result.Right.PupilCoords()
	rd := &store.Reading{
		SessionID:   sess.id,
		Frame:       u.Frame,
		TimestampMs: u.Timestamp,
		Horizontal:  u.Horizontal,
		Vertical:    u.Vertical,
		Direction:   string(u.Direction),
		LeftX:       left.X,
		LeftY:       left.Y,
		RightX:      right.X,
		RightY:      right.Y,
		PupilsFound: u.Result.Pupils(),
	}
	if err := a.config.Store.Readings().Create(rd); err != nil {
		sess.log.WithError(err).Warn("failed to store reading")
	}
}

func (a *App) saveCalibration(sess *session) {
	if a.config.Store == nil {
		return
	}

	var samples []store.CalibrationSample
	for _, side := range eye.Sides {
		for i, s := range sess.tracker.Calibration().Samples(side) {
			samples = append(samples, store.CalibrationSample{
				SessionID:   sess.id,
				Side:        side.String(),
				SampleIndex: i,
				Threshold:   s.Threshold,
				Ratio:       s.Ratio,
			})
		}
	}
	if err := a.config.Store.Calibrations().Replace(sess.id, samples); err != nil {
		sess.log.WithError(err).Warn("failed to store calibration")
	}
}

func thresholdOf(c *calibration.Calibration, side eye.Side) int {
	t, _ := c.Threshold(side)
	return t
}

// encodeAnnotated draws r on a copy of frame and returns it as JPEG.
func encodeAnnotated(frame *gocv.Mat, r *gaze.Result) []byte {
	canvas := frame.Clone()
	defer canvas.Close()
	if canvas.Channels() == 1 {
		gocv.CvtColor(canvas, &canvas, gocv.ColorGrayToBGR)
	}

	annotate.Draw(&canvas, r)
	annotate.Label(&canvas, r)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, canvas)
	if err != nil {
		return nil
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out
}
