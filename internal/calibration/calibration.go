// Package calibration finds the binarization threshold that best isolates the
// iris for each eye of one tracking session.
package calibration

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/go-playground/validator/v10"
	"gocv.io/x/gocv"

	"github.com/ayusman/nayana/internal/eye"
	"github.com/ayusman/nayana/internal/pupil"
)

// ErrUncalibrated is returned by Threshold before any sample exists for a side.
var ErrUncalibrated = errors.New("eye side not calibrated")

var validate = validator.New()

// Options tunes the threshold search.
type Options struct {
	// Frames is how many samples each side collects before calibration completes.
	Frames int `validate:"min=1"`
	// SweepMin, SweepMax and SweepStep define the candidate thresholds.
	SweepMin  int `validate:"min=1,max=255"`
	SweepMax  int `validate:"min=1,max=255,gtefield=SweepMin"`
	SweepStep int `validate:"min=1"`
	// TargetRatio is the share of the eye interior an iris-sized blob covers.
	TargetRatio float64 `validate:"gt=0,lt=1"`
	// Trim is the border excluded when measuring the blob ratio.
	Trim int `validate:"min=0"`
}

// DefaultOptions returns Options with sensible default values.
func DefaultOptions() Options {
	return Options{
		Frames:      20,
		SweepMin:    5,
		SweepMax:    100,
		SweepStep:   5,
		TargetRatio: 0.48,
		Trim:        eye.Margin,
	}
}

// Validate checks the options for consistency.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid calibration options: %w", err)
	}
	return nil
}

// Candidates returns the thresholds tried by Evaluate.
func (o Options) Candidates() []int {
	var out []int
	for t := o.SweepMin; t <= o.SweepMax; t += o.SweepStep {
		out = append(out, t)
	}
	return out
}

// Sample is the winning threshold of one evaluated frame.
type Sample struct {
	Threshold int     `json:"threshold"`
	Ratio     float64 `json:"ratio"`
}

// Calibration collects per-side threshold samples.
//
// It is not safe for concurrent use; each tracking session owns one.
type Calibration struct {
	opts    Options
	samples [2][]Sample
}

// New creates a Calibration with the given options.
func New(opts Options) (*Calibration, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	c := &Calibration{opts: opts}
	c.Reset()
	return c, nil
}

// Options returns the options the calibration was created with.
func (c *Calibration) Options() Options {
	return c.opts
}

// IsComplete reports whether both sides have collected all their samples.
func (c *Calibration) IsComplete() bool {
	return len(c.samples[eye.Left]) >= c.opts.Frames && len(c.samples[eye.Right]) >= c.opts.Frames
}

// Evaluate searches the best threshold for img and records it for side.
// It does nothing once side has collected all its samples.
func (c *Calibration) Evaluate(img gocv.Mat, side eye.Side) error {
	if !side.Valid() {
		return eye.ErrInvalidSide
	}
	if len(c.samples[side]) >= c.opts.Frames {
		return nil
	}

	best, ok := c.bestThreshold(img)
	if !ok {
		return nil
	}
	c.samples[side] = append(c.samples[side], best)
	return nil
}

// Threshold returns the mean winning threshold for side, rounded to the nearest integer.
func (c *Calibration) Threshold(side eye.Side) (int, error) {
	if !side.Valid() {
		return 0, eye.ErrInvalidSide
	}

	samples := c.samples[side]
	if len(samples) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrUncalibrated, side)
	}

	sum := 0
	for _, s := range samples {
		sum += s.Threshold
	}
	return int(math.Round(float64(sum) / float64(len(samples)))), nil
}

// Samples returns a copy of the samples recorded for side.
func (c *Calibration) Samples(side eye.Side) []Sample {
	if !side.Valid() {
		return nil
	}
	out := make([]Sample, len(c.samples[side]))
	copy(out, c.samples[side])
	return out
}

// Reset discards every sample so calibration starts over.
func (c *Calibration) Reset() {
	for i := range c.samples {
		c.samples[i] = make([]Sample, 0, c.opts.Frames)
	}
}

// bestThreshold returns the candidate whose blob ratio is closest to the target.
// The first candidate wins ties. ok is false for an empty image.
func (c *Calibration) bestThreshold(img gocv.Mat) (Sample, bool) {
	if img.Empty() {
		return Sample{}, false
	}

	var (
		best     Sample
		bestDiff = math.Inf(1)
	)
	for _, t := range c.opts.Candidates() {
		ratio := c.blobRatio(img, t)
		if diff := math.Abs(ratio - c.opts.TargetRatio); diff < bestDiff {
			best = Sample{Threshold: t, Ratio: ratio}
			bestDiff = diff
		}
	}
	return best, !math.IsInf(bestDiff, 1)
}

// blobRatio binarizes img at threshold and returns the foreground share of
// the crop interior.
func (c *Calibration) blobRatio(img gocv.Mat, threshold int) float64 {
	binary := pupil.Binarize(img, threshold)
	defer binary.Close()

	interior := interiorRect(binary.Cols(), binary.Rows(), c.opts.Trim)
	roi := binary.Region(interior)
	defer roi.Close()

	total := interior.Dx() * interior.Dy()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(roi)) / float64(total)
}

// interiorRect insets a cols x rows image by trim, falling back to the whole
// image when the inset leaves nothing.
func interiorRect(cols, rows, trim int) image.Rectangle {
	if cols-2*trim <= 0 || rows-2*trim <= 0 {
		return image.Rect(0, 0, cols, rows)
	}
	return image.Rect(trim, trim, cols-trim, rows-trim)
}
