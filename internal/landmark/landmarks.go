// Package landmark provides facial landmark detection interfaces and types for gaze tracking.
package landmark

import "image"

// Facial landmark indices following the 68-point iBUG 300-W / Multi-PIE convention
// used by dlib's shape_predictor_68_face_landmarks model.
const (
	JawStart       = 0
	JawEnd         = 16
	RightBrowStart = 17
	LeftBrowEnd    = 26
	NoseBridge     = 27
	NoseTip        = 30
	LeftEyeOuter   = 36
	LeftEyeInner   = 39
	RightEyeInner  = 42
	RightEyeOuter  = 45
	MouthStart     = 48
	MouthEnd       = 67
	NumLandmarks   = 68

	// MinEyeLandmarks is the smallest landmark count that still contains both eyes.
	MinEyeLandmarks = RightEyeOuter + 3
)

// LeftEye and RightEye list the six contour points of each eye, in the order the
// landmark model emits them: outer corner, two upper lid points, inner corner,
// two lower lid points. Swapping the landmark model only requires updating these.
var (
	LeftEye  = [6]int{36, 37, 38, 39, 40, 41}
	RightEye = [6]int{42, 43, 44, 45, 46, 47}
)

// Face represents one detected face and its landmark points in frame pixels.
type Face struct {
	Points []image.Point   `json:"points"`
	Rect   image.Rectangle `json:"rect"`
	Score  float64         `json:"score"`
}

// Select returns the landmark points at the given indices.
// It returns nil if any index is out of range.
func (f *Face) Select(indices []int) []image.Point {
	if f == nil {
		return nil
	}

	points := make([]image.Point, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(f.Points) {
			return nil
		}
		points[i] = f.Points[idx]
	}
	return points
}
