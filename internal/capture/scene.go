package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Scene change detection constants.
const (
	// SceneBlurSize is the Gaussian kernel used to suppress sensor noise.
	SceneBlurSize = 21
	// SceneDiffThreshold is the per-pixel intensity change that counts as changed.
	SceneDiffThreshold = 25
)

// SceneChangeDetector flags frames whose content differs from a reference
// frame by more than a percentage of pixels. Tracking uses it to notice
// lighting changes that invalidate the calibrated thresholds.
//
// Unlike a motion detector it compares against the reference set by the last
// reported change, so a slow drift is eventually reported as well.
type SceneChangeDetector struct {
	percent   float64
	reference gocv.Mat
	hasRef    bool
	mu        sync.Mutex
}

// NewSceneChangeDetector creates a detector that fires when more than
// percent of pixels (0..100) changed. A percent of 0 never fires.
func NewSceneChangeDetector(percent float64) *SceneChangeDetector {
	return &SceneChangeDetector{
		percent:   percent,
		reference: gocv.NewMat(),
	}
}

// Detect compares frame with the reference. It returns whether the scene
// changed and the changed share in percent. The first frame, and every frame
// reported as a change, becomes the new reference.
func (s *SceneChangeDetector) Detect(frame *gocv.Mat) (bool, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if frame == nil || frame.Empty() || s.percent <= 0 {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(SceneBlurSize, SceneBlurSize), 0, 0, gocv.BorderDefault)

	if !s.hasRef || blurred.Rows() != s.reference.Rows() || blurred.Cols() != s.reference.Cols() {
		blurred.CopyTo(&s.reference)
		s.hasRef = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, s.reference, &diff)

	changed := gocv.NewMat()
	defer changed.Close()
	gocv.Threshold(diff, &changed, SceneDiffThreshold, 255, gocv.ThresholdBinary)

	share := float64(gocv.CountNonZero(changed)) / float64(changed.Rows()*changed.Cols()) * 100
	if share <= s.percent {
		return false, share
	}

	blurred.CopyTo(&s.reference)
	return true, share
}

// Reset forgets the reference frame.
func (s *SceneChangeDetector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasRef = false
}

// Close releases the reference frame. The detector stays usable and starts
// from a new reference.
func (s *SceneChangeDetector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hasRef = false
	err := s.reference.Close()
	s.reference = gocv.NewMat()
	return err
}
