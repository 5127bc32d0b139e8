package landmark

import "gocv.io/x/gocv"

// Detector defines the interface for facial landmark detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the faces found in it.
	// Returns an empty slice if no faces are detected.
	Detect(frame *gocv.Mat) ([]Face, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for landmark detection.
type Config struct {
	// ModelPath is the dlib shape predictor model handed to the landmark service.
	ModelPath string

	// Upsample is the number of times the face detector upsamples the frame.
	Upsample int

	// IdleTimeoutSec shuts the landmark service down after this many idle seconds.
	IdleTimeoutSec int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelPath:      "shape_predictor_68_face_landmarks.dat",
		Upsample:       0,
		IdleTimeoutSec: 30,
	}
}
