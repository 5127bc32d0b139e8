package app

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/nayana/internal/calibration"
	"github.com/ayusman/nayana/internal/capture"
	"github.com/ayusman/nayana/internal/gaze"
	"github.com/ayusman/nayana/internal/landmark"
	"github.com/ayusman/nayana/internal/store"
)

var (
	leftShape  = landmark.EyeShape{Center: image.Pt(60, 60), HalfWidth: 30, HalfHeight: 14}
	rightShape = landmark.EyeShape{Center: image.Pt(160, 60), HalfWidth: 30, HalfHeight: 14}
)

// faceFrame draws a bright frame with a dark pupil centered in each eye.
func faceFrame(t *testing.T) *gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(230, 230, 230, 0), 120, 220, gocv.MatTypeCV8UC3)
	dark := color.RGBA{20, 20, 20, 0}
	gocv.Circle(&frame, leftShape.Center, 6, dark, -1)
	gocv.Circle(&frame, rightShape.Center, 6, dark, -1)
	t.Cleanup(func() { frame.Close() })
	return &frame
}

type fixture struct {
	app      *App
	store    *store.Store
	camera   *capture.MockCamera
	detector *landmark.MockDetector
}

func newFixture(t *testing.T, frames int, loop bool) *fixture {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })

	frame := faceFrame(t)
	mats := make([]*gocv.Mat, frames)
	for i := range mats {
		mats[i] = frame
	}
	cam := capture.NewMockCamera(mats, loop)

	det := landmark.NewMockDetector()
	det.SetFaces([]landmark.Face{landmark.SyntheticFace(leftShape, rightShape)})

	opts := calibration.DefaultOptions()
	opts.Frames = 2

	a, err := New(Config{
		Store:       s,
		Camera:      cam,
		Detector:    det,
		Calibration: opts,
		Annotate:    true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &fixture{app: a, store: s, camera: cam, detector: det}
}

func TestNew_Validation(t *testing.T) {
	cam := capture.NewMockCamera(nil, false)
	det := landmark.NewMockDetector()
	bad := calibration.DefaultOptions()
	bad.Frames = 0

	tests := []struct {
		name   string
		config Config
	}{
		{"no camera", Config{Detector: det, Calibration: calibration.DefaultOptions()}},
		{"no detector", Config{Camera: cam, Calibration: calibration.DefaultOptions()}},
		{"bad calibration", Config{Camera: cam, Detector: det, Calibration: bad}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.config); err == nil {
				t.Error("New() should fail")
			}
		})
	}
}

func TestApp_Process(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}

	f := newFixture(t, 4, false)

	var progressed []int
	summary, err := f.app.Process(context.Background(), func(frame int) {
		progressed = append(progressed, frame)
	})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	if summary.Frames != 4 || len(progressed) != 4 {
		t.Errorf("processed %d frames with %d progress calls, want 4", summary.Frames, len(progressed))
	}
	if !summary.Calibrated {
		t.Error("session should finish calibrated")
	}
	if summary.Directions[gaze.DirectionCenter] != 4 {
		t.Errorf("Directions = %v, want 4 center", summary.Directions)
	}
	if summary.Thresholds["left"] == 0 || summary.Thresholds["right"] == 0 {
		t.Errorf("Thresholds = %v", summary.Thresholds)
	}

	sess, err := f.store.Sessions().GetByID(summary.SessionID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if sess.Frames != 4 || sess.EndedAt == nil || sess.Source != "mock" {
		t.Errorf("stored session = %+v", sess)
	}

	readings, _ := f.store.Readings().GetBySessionID(summary.SessionID, 0)
	if len(readings) != 4 {
		t.Errorf("stored %d readings, want 4", len(readings))
	}
	samples, _ := f.store.Calibrations().GetBySessionID(summary.SessionID)
	if len(samples) != 4 {
		t.Errorf("stored %d calibration samples, want 2 per side", len(samples))
	}

	u, ok := f.app.Latest()
	if !ok || u.Frame != 4 || u.Direction != gaze.DirectionCenter {
		t.Errorf("Latest() = %+v, %v", u, ok)
	}
	if jpeg := f.app.LatestJPEG(); len(jpeg) < 2 || jpeg[0] != 0xff || jpeg[1] != 0xd8 {
		t.Error("LatestJPEG() should hold a JPEG")
	}
}

func TestApp_ProcessNoFace(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}

	f := newFixture(t, 2, false)
	f.detector.SetFaces(nil)

	summary, err := f.app.Process(context.Background(), nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if summary.Calibrated || len(summary.Thresholds) != 0 {
		t.Errorf("no face should leave calibration empty, got %+v", summary)
	}

	u, _ := f.app.Latest()
	if u.Error == "" || u.Result != nil {
		t.Errorf("Latest() = %+v, want an error update", u)
	}
	readings, _ := f.store.Readings().GetBySessionID(summary.SessionID, 0)
	if len(readings) != 0 {
		t.Errorf("stored %d readings, want 0", len(readings))
	}
}

func TestApp_Recalibrate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}

	f := newFixture(t, 1, false)
	sess, err := f.app.beginSession()
	if err != nil {
		t.Fatalf("beginSession() error = %v", err)
	}
	frame := faceFrame(t)

	if u := f.app.processFrame(sess, frame); u.Calibrated {
		t.Error("one frame should not complete a two frame calibration")
	}
	if u := f.app.processFrame(sess, frame); !u.Calibrated {
		t.Error("two frames should complete calibration")
	}

	f.app.Recalibrate()
	if u := f.app.processFrame(sess, frame); u.Calibrated {
		t.Error("calibration should restart after Recalibrate")
	}
	if u := f.app.processFrame(sess, frame); !u.Calibrated {
		t.Error("calibration should complete again")
	}
}

func TestApp_StartStop(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping pipeline test in short mode")
	}

	f := newFixture(t, 1, true)
	f.camera.SetFPS(50)

	if err := f.app.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !f.app.IsRunning() || f.app.SessionID() == "" {
		t.Fatal("app should be running with a session")
	}
	id := f.app.SessionID()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if u, ok := f.app.Latest(); ok && u.Frame >= 3 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pipeline did not process frames in time")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if _, err := f.app.Process(context.Background(), nil); !errors.Is(err, ErrRunning) {
		t.Errorf("Process() while running error = %v, want ErrRunning", err)
	}

	f.app.SetEnabled(false)
	if f.app.IsEnabled() {
		t.Error("IsEnabled() should be false")
	}

	f.app.Stop()
	if f.app.IsRunning() || f.camera.IsOpen() {
		t.Error("Stop() should stop the pipeline and close the camera")
	}

	sess, err := f.store.Sessions().GetByID(id)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if sess.EndedAt == nil || sess.Frames < 3 {
		t.Errorf("stored session = %+v", sess)
	}
}
