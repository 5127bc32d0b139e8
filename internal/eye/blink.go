package eye

import (
	"image"
	"math"
)

// midpoint returns the integer midpoint between two points.
func midpoint(a, b image.Point) image.Point {
	return image.Pt((a.X+b.X)/2, (a.Y+b.Y)/2)
}

// BlinkingRatio returns how closed an eye is as its width divided by its
// height, measured on the six-point eye polygon. Larger means more closed.
// ok is false when the polygon does not have six points or has zero height.
func BlinkingRatio(polygon []image.Point) (ratio float64, ok bool) {
	if len(polygon) != 6 {
		return 0, false
	}

	left := polygon[0]
	right := polygon[3]
	top := midpoint(polygon[1], polygon[2])
	bottom := midpoint(polygon[5], polygon[4])

	width := math.Hypot(float64(left.X-right.X), float64(left.Y-right.Y))
	height := math.Hypot(float64(top.X-bottom.X), float64(top.Y-bottom.Y))
	if height == 0 {
		return 0, false
	}

	return width / height, true
}
