// Package eye isolates a single eye from a face frame using its landmark polygon.
package eye

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/nayana/internal/landmark"
)

// Margin is the padding in pixels added around the eye polygon when cropping.
const Margin = 5

// Background is the intensity painted over every pixel outside the eye polygon.
// It is the brightest value so masked pixels never binarize as dark foreground.
const Background = 255

var (
	// ErrInvalidSide is returned for a Side other than Left or Right.
	ErrInvalidSide = errors.New("invalid eye side")
	// ErrTooFewLandmarks is returned when the landmark set does not cover both eyes.
	ErrTooFewLandmarks = errors.New("too few landmarks")
	// ErrDegenerateCrop is returned when the eye polygon or its clipped crop has no area.
	ErrDegenerateCrop = errors.New("degenerate eye crop")
)

// Side selects which eye to isolate.
type Side int

const (
	Left Side = iota
	Right
)

// Sides lists both valid sides in processing order.
var Sides = [2]Side{Left, Right}

// Valid reports whether s is Left or Right.
func (s Side) Valid() bool {
	return s == Left || s == Right
}

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Indices returns the landmark indices outlining this eye.
func (s Side) Indices() ([6]int, error) {
	switch s {
	case Left:
		return landmark.LeftEye, nil
	case Right:
		return landmark.RightEye, nil
	default:
		return [6]int{}, ErrInvalidSide
	}
}

// PointF is a point with floating point coordinates.
type PointF struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Region is one eye cropped out of a frame, with everything outside the eye
// polygon painted Background.
type Region struct {
	Side Side
	// Image is the single channel crop. It is owned by the Region.
	Image gocv.Mat
	// Origin is the crop's top-left corner in frame coordinates.
	Origin image.Point
	// Center is the crop's geometric center in crop coordinates.
	Center PointF
	// Polygon holds the six eye landmarks in frame coordinates.
	Polygon []image.Point
}

// Close releases the crop.
func (r *Region) Close() error {
	if r == nil {
		return nil
	}
	return r.Image.Close()
}

// Width returns the crop width in pixels.
func (r *Region) Width() int { return r.Image.Cols() }

// Height returns the crop height in pixels.
func (r *Region) Height() int { return r.Image.Rows() }

// Isolate crops the eye on the given side out of frame.
//
// The frame may be grayscale or BGR; landmarks must follow the 68-point
// scheme and contain at least landmark.MinEyeLandmarks points. The crop is
// the polygon's bounding box grown by Margin on every side and clipped to
// the frame, so Origin is never negative. The caller must Close the region.
func Isolate(frame gocv.Mat, landmarks []image.Point, side Side) (*Region, error) {
	indices, err := side.Indices()
	if err != nil {
		return nil, err
	}
	if len(landmarks) < landmark.MinEyeLandmarks {
		return nil, fmt.Errorf("%w: got %d, need %d", ErrTooFewLandmarks, len(landmarks), landmark.MinEyeLandmarks)
	}
	if frame.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrDegenerateCrop)
	}

	polygon := make([]image.Point, len(indices))
	for i, idx := range indices {
		polygon[i] = landmarks[idx]
	}

	box, err := cropBox(polygon, image.Rect(0, 0, frame.Cols(), frame.Rows()))
	if err != nil {
		return nil, err
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	// Mask is white everywhere except the eye polygon.
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), frame.Rows(), frame.Cols(), gocv.MatTypeCV8U)
	defer mask.Close()
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{polygon})
	defer pv.Close()
	gocv.FillPoly(&mask, pv, color.RGBA{0, 0, 0, 0})

	background := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(Background, 0, 0, 0), frame.Rows(), frame.Cols(), gocv.MatTypeCV8U)
	defer background.Close()
	background.CopyToWithMask(&gray, mask)

	roi := gray.Region(box)
	crop := roi.Clone()
	roi.Close()

	return &Region{
		Side:    side,
		Image:   crop,
		Origin:  box.Min,
		Center:  PointF{X: float64(crop.Cols()) / 2, Y: float64(crop.Rows()) / 2},
		Polygon: polygon,
	}, nil
}

// cropBox returns the polygon's bounding box grown by Margin and clipped to bounds.
func cropBox(polygon []image.Point, bounds image.Rectangle) (image.Rectangle, error) {
	minX, minY := polygon[0].X, polygon[0].Y
	maxX, maxY := minX, minY
	for _, p := range polygon[1:] {
		minX, minY = min(minX, p.X), min(minY, p.Y)
		maxX, maxY = max(maxX, p.X), max(maxY, p.Y)
	}
	if maxX == minX || maxY == minY {
		return image.Rectangle{}, fmt.Errorf("%w: polygon extent %dx%d", ErrDegenerateCrop, maxX-minX, maxY-minY)
	}

	box := image.Rect(minX-Margin, minY-Margin, maxX+Margin, maxY+Margin).Intersect(bounds)
	if box.Empty() {
		return image.Rectangle{}, fmt.Errorf("%w: polygon outside frame", ErrDegenerateCrop)
	}
	return box, nil
}
