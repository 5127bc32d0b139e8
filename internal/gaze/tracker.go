// Package gaze combines landmark detection, eye isolation, calibration and
// pupil detection into per-frame gaze estimates.
package gaze

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/nayana/internal/calibration"
	"github.com/ayusman/nayana/internal/eye"
	"github.com/ayusman/nayana/internal/landmark"
	"github.com/ayusman/nayana/internal/pupil"
)

// ErrNoFace is returned when the landmark detector finds no face in the frame.
var ErrNoFace = errors.New("no face detected")

// Tracker estimates gaze for one video session. It owns no frame state between
// calls; the calibration it is given accumulates across frames.
//
// A Tracker is not safe for concurrent use.
type Tracker struct {
	detector    landmark.Detector
	calibration *calibration.Calibration
	pupils      *pupil.Detector
}

// NewTracker creates a Tracker. A nil pupil detector uses pupil.NewDetector().
func NewTracker(d landmark.Detector, c *calibration.Calibration, p *pupil.Detector) *Tracker {
	if p == nil {
		p = pupil.NewDetector()
	}
	return &Tracker{
		detector:    d,
		calibration: c,
		pupils:      p,
	}
}

// Calibration returns the calibration the tracker refines.
func (t *Tracker) Calibration() *calibration.Calibration {
	return t.calibration
}

// Refresh runs landmark detection on frame and analyzes both eyes of the
// first face found.
func (t *Tracker) Refresh(frame *gocv.Mat) (*Result, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}

	faces, err := t.detector.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("detect landmarks: %w", err)
	}
	if len(faces) == 0 {
		return nil, ErrNoFace
	}

	return t.Analyze(*frame, faces[0].Points)
}

// Analyze estimates both pupils from frame and an already detected set of
// landmarks.
func (t *Tracker) Analyze(frame gocv.Mat, landmarks []image.Point) (*Result, error) {
	result := &Result{}
	for _, side := range eye.Sides {
		er, err := t.analyzeEye(frame, landmarks, side)
		if err != nil {
			return nil, fmt.Errorf("%s eye: %w", side, err)
		}
		if side == eye.Left {
			result.Left = er
		} else {
			result.Right = er
		}
	}
	return result, nil
}

func (t *Tracker) analyzeEye(frame gocv.Mat, landmarks []image.Point, side eye.Side) (EyeResult, error) {
	region, err := eye.Isolate(frame, landmarks, side)
	if err != nil {
		return EyeResult{}, err
	}
	defer region.Close()

	if !t.calibration.IsComplete() {
		if err := t.calibration.Evaluate(region.Image, side); err != nil {
			return EyeResult{}, err
		}
	}

	threshold, err := t.calibration.Threshold(side)
	if err != nil {
		return EyeResult{}, err
	}

	blink, _ := eye.BlinkingRatio(region.Polygon)

	return EyeResult{
		Side:       side,
		Origin:     region.Origin,
		Center:     region.Center,
		Size:       image.Pt(region.Width(), region.Height()),
		Polygon:    region.Polygon,
		Threshold:  threshold,
		Pupil:      t.pupils.Detect(region.Image, threshold),
		BlinkRatio: blink,
	}, nil
}
