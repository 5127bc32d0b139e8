// Package annotate draws gaze results onto video frames.
package annotate

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/nayana/internal/gaze"
)

// Drawing colors.
var (
	PupilColor   = color.RGBA{0, 255, 0, 0}
	OutlineColor = color.RGBA{255, 200, 0, 0}
	TextColor    = color.RGBA{147, 58, 31, 0}
)

// CrossSize is the half length of the pupil crosshair in pixels.
const CrossSize = 5

// Draw marks both pupils and eye outlines of r on frame in place.
// A nil result leaves the frame untouched.
func Draw(frame *gocv.Mat, r *gaze.Result) {
	if frame == nil || frame.Empty() || r == nil {
		return
	}

	for _, e := range []gaze.EyeResult{r.Left, r.Right} {
		if len(e.Polygon) > 0 {
			pv := gocv.NewPointsVectorFromPoints([][]image.Point{e.Polygon})
			gocv.Polylines(frame, pv, true, OutlineColor, 1)
			pv.Close()
		}
		if e.Pupil.Found {
			cross(frame, e.PupilCoords())
		}
	}
}

// Label writes the gaze direction and ratios in the frame's top-left corner.
func Label(frame *gocv.Mat, r *gaze.Result) {
	if frame == nil || frame.Empty() || r == nil {
		return
	}

	text := fmt.Sprintf("%s  h=%.2f v=%.2f", r.Direction(), r.HorizontalRatio(), r.VerticalRatio())
	gocv.PutText(frame, text, image.Pt(20, 40), gocv.FontHersheyDuplex, 0.9, TextColor, 2)
}

func cross(frame *gocv.Mat, p image.Point) {
	gocv.Line(frame, image.Pt(p.X-CrossSize, p.Y), image.Pt(p.X+CrossSize, p.Y), PupilColor, 1)
	gocv.Line(frame, image.Pt(p.X, p.Y-CrossSize), image.Pt(p.X, p.Y+CrossSize), PupilColor, 1)
}
