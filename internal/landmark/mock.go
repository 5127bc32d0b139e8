package landmark

import (
	"image"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	faces []Face
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetFaces sets the faces that will be returned by Detect.
func (m *MockDetector) SetFaces(faces []Face) {
	m.faces = faces
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	return m.calls
}

// Detect returns the pre-configured faces or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]Face, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.faces, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// EyeShape describes the synthetic outline of one eye.
type EyeShape struct {
	Center     image.Point
	HalfWidth  int
	HalfHeight int
}

// points returns the six contour points clockwise from the leftmost corner,
// matching the landmark model's ordering for both eyes.
func (e EyeShape) points() [6]image.Point {
	third := e.HalfWidth / 3
	return [6]image.Point{
		{X: e.Center.X - e.HalfWidth, Y: e.Center.Y},
		{X: e.Center.X - third, Y: e.Center.Y - e.HalfHeight},
		{X: e.Center.X + third, Y: e.Center.Y - e.HalfHeight},
		{X: e.Center.X + e.HalfWidth, Y: e.Center.Y},
		{X: e.Center.X + third, Y: e.Center.Y + e.HalfHeight},
		{X: e.Center.X - third, Y: e.Center.Y + e.HalfHeight},
	}
}

// SyntheticFace returns a preset 68-point Face whose eye landmarks outline the
// given shapes. Non-eye landmarks are laid out on a plausible face oval so the
// result is usable anywhere a real detection is expected.
func SyntheticFace(left, right EyeShape) Face {
	face := Face{
		Points: make([]image.Point, NumLandmarks),
		Score:  0.99,
	}

	midX := (left.Center.X + right.Center.X) / 2
	eyeY := (left.Center.Y + right.Center.Y) / 2
	span := right.Center.X - left.Center.X
	if span < 0 {
		span = -span
	}
	if span == 0 {
		span = 4 * left.HalfWidth
	}

	// Jaw line from left temple to right temple through the chin.
	for i := JawStart; i <= JawEnd; i++ {
		t := float64(i-JawStart) / float64(JawEnd-JawStart)
		x := midX - span + int(t*float64(2*span))
		dy := int((1 - (2*t-1)*(2*t-1)) * float64(span))
		face.Points[i] = image.Pt(x, eyeY+dy/2+span/4)
	}

	// Brows, nose and mouth sit on horizontal rows relative to the eyes.
	for i := RightBrowStart; i <= LeftBrowEnd; i++ {
		t := float64(i-RightBrowStart) / float64(LeftBrowEnd-RightBrowStart)
		face.Points[i] = image.Pt(midX-span+int(t*float64(2*span)), eyeY-span/3)
	}
	for i := NoseBridge; i < LeftEyeOuter; i++ {
		face.Points[i] = image.Pt(midX, eyeY+(i-NoseBridge)*span/12)
	}
	for i := MouthStart; i <= MouthEnd; i++ {
		t := float64(i-MouthStart) / float64(MouthEnd-MouthStart)
		face.Points[i] = image.Pt(midX-span/3+int(t*float64(2*span/3)), eyeY+span)
	}

	lp, rp := left.points(), right.points()
	for i, idx := range LeftEye {
		face.Points[idx] = lp[i]
	}
	for i, idx := range RightEye {
		face.Points[idx] = rp[i]
	}

	minX, minY := face.Points[0].X, face.Points[0].Y
	maxX, maxY := minX, minY
	for _, p := range face.Points {
		minX, minY = min(minX, p.X), min(minY, p.Y)
		maxX, maxY = max(maxX, p.X), max(maxY, p.Y)
	}
	face.Rect = image.Rect(minX, minY, maxX+1, maxY+1)

	return face
}
