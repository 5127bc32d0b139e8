package gaze

import (
	"image"

	"github.com/ayusman/nayana/internal/eye"
	"github.com/ayusman/nayana/internal/pupil"
)

// Gaze direction thresholds on the horizontal ratio, and the blinking ratio
// above which eyes count as closed.
const (
	RightLimit     = 0.35
	LeftLimit      = 0.65
	BlinkThreshold = 3.8
)

// Direction is a coarse gaze direction.
type Direction string

const (
	DirectionLeft     Direction = "left"
	DirectionRight    Direction = "right"
	DirectionCenter   Direction = "center"
	DirectionBlinking Direction = "blinking"
)

// EyeResult holds the analysis of one eye in one frame.
type EyeResult struct {
	Side       eye.Side      `json:"-"`
	Origin     image.Point   `json:"origin"`
	Center     eye.PointF    `json:"center"`
	Size       image.Point   `json:"size"`
	Polygon    []image.Point `json:"polygon"`
	Threshold  int           `json:"threshold"`
	Pupil      pupil.Pupil   `json:"pupil"`
	BlinkRatio float64       `json:"blink_ratio"`
}

// PupilCoords returns the pupil position in frame coordinates.
func (e EyeResult) PupilCoords() image.Point {
	return image.Pt(e.Origin.X+int(e.Pupil.Center.X), e.Origin.Y+int(e.Pupil.Center.Y))
}

// horizontal returns the pupil x position relative to the eye width without margins.
func (e EyeResult) horizontal() float64 {
	return ratio(e.Pupil.Center.X, e.Center.X*2-2*eye.Margin)
}

// vertical returns the pupil y position relative to the eye height without margins.
func (e EyeResult) vertical() float64 {
	return ratio(e.Pupil.Center.Y, e.Center.Y*2-2*eye.Margin)
}

func ratio(pos, extent float64) float64 {
	if extent <= 0 {
		return 0.5
	}
	return clamp01(pos / extent)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Result is the gaze estimate for one frame.
type Result struct {
	Left  EyeResult `json:"left"`
	Right EyeResult `json:"right"`
}

// Pupils reports whether both pupils were located.
func (r *Result) Pupils() bool {
	return r.Left.Pupil.Found && r.Right.Pupil.Found
}

// HorizontalRatio returns the horizontal gaze position in [0, 1]:
// 0.0 is extreme right, 0.5 center and 1.0 extreme left.
func (r *Result) HorizontalRatio() float64 {
	return (r.Left.horizontal() + r.Right.horizontal()) / 2
}

// VerticalRatio returns the vertical gaze position in [0, 1]:
// 0.0 is extreme top, 0.5 center and 1.0 extreme bottom.
func (r *Result) VerticalRatio() float64 {
	return (r.Left.vertical() + r.Right.vertical()) / 2
}

// IsRight reports whether the user is looking to the right.
func (r *Result) IsRight() bool {
	return r.HorizontalRatio() <= RightLimit
}

// IsLeft reports whether the user is looking to the left.
func (r *Result) IsLeft() bool {
	return r.HorizontalRatio() >= LeftLimit
}

// IsCenter reports whether the user is looking straight ahead.
func (r *Result) IsCenter() bool {
	return !r.IsRight() && !r.IsLeft()
}

// IsBlinking reports whether the eyes are closed.
func (r *Result) IsBlinking() bool {
	return (r.Left.BlinkRatio+r.Right.BlinkRatio)/2 > BlinkThreshold
}

// Direction summarizes the result, giving blinking priority.
func (r *Result) Direction() Direction {
	switch {
	case r.IsBlinking():
		return DirectionBlinking
	case r.IsRight():
		return DirectionRight
	case r.IsLeft():
		return DirectionLeft
	default:
		return DirectionCenter
	}
}
