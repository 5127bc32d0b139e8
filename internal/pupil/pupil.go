// Package pupil locates the pupil inside an isolated eye crop.
package pupil

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/nayana/internal/eye"
)

// Preprocessing constants.
const (
	// BlurDiameter is the pixel neighbourhood of the bilateral smoothing filter.
	BlurDiameter = 10
	// BlurSigma is used for both the color and the space sigma of the filter.
	BlurSigma = 15
	// KernelSize is the side of the square structuring element used for erosion.
	KernelSize = 3
	// ErodeIterations is how many erosion passes strip noise from the binary image.
	ErodeIterations = 3
)

// ContourPolicy decides whether a contour can be the pupil.
type ContourPolicy func(bounds image.Rectangle, size image.Point) bool

// ExcludeBorderTouching rejects any contour whose bounding box touches the crop
// border. Those come from the masked background or from a frame edge clipping
// the eye, never from a pupil fully inside the eye polygon.
func ExcludeBorderTouching(bounds image.Rectangle, size image.Point) bool {
	return bounds.Min.X > 0 && bounds.Min.Y > 0 && bounds.Max.X < size.X && bounds.Max.Y < size.Y
}

// Pupil is the detected pupil of one eye crop.
type Pupil struct {
	// Center is the blob centroid in crop coordinates, or the crop's geometric
	// center when nothing was found.
	Center eye.PointF `json:"center"`
	// Contour is the boundary of the selected blob.
	Contour []image.Point `json:"-"`
	// Area is the blob size in pixels.
	Area float64 `json:"area"`
	// Found is false when no foreground blob survived.
	Found bool `json:"found"`
}

// Detector finds pupils in eye crops.
type Detector struct {
	policy ContourPolicy
}

// NewDetector creates a Detector using ExcludeBorderTouching.
func NewDetector() *Detector {
	return &Detector{policy: ExcludeBorderTouching}
}

// NewDetectorWithPolicy creates a Detector using a custom contour policy.
// A nil policy accepts every contour.
func NewDetectorWithPolicy(policy ContourPolicy) *Detector {
	if policy == nil {
		policy = func(image.Rectangle, image.Point) bool { return true }
	}
	return &Detector{policy: policy}
}

// Detect binarizes img at threshold and returns the pupil blob's centroid.
// When no blob passes the contour policy, the crop center is returned with
// Found set to false instead of an error.
func (d *Detector) Detect(img gocv.Mat, threshold int) Pupil {
	fallback := Pupil{
		Center: eye.PointF{X: float64(img.Cols()) / 2, Y: float64(img.Rows()) / 2},
	}
	if img.Empty() {
		return fallback
	}

	binary := Binarize(img, threshold)
	defer binary.Close()

	contours := gocv.FindContours(binary, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()

	size := image.Pt(binary.Cols(), binary.Rows())
	best := fallback
	for i := 0; i < contours.Size(); i++ {
		c := contours.At(i)
		if !d.policy(gocv.BoundingRect(c), size) {
			continue
		}

		area, center := blobMoments(contours, i, size)
		if area > best.Area {
			best = Pupil{
				Center:  center,
				Contour: c.ToPoints(),
				Area:    area,
				Found:   true,
			}
		}
	}

	return best
}

// blobMoments fills contour idx and returns its pixel area and centroid.
func blobMoments(contours gocv.PointsVector, idx int, size image.Point) (float64, eye.PointF) {
	blob := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), size.Y, size.X, gocv.MatTypeCV8U)
	defer blob.Close()
	gocv.DrawContours(&blob, contours, idx, color.RGBA{255, 255, 255, 255}, -1)

	m := gocv.Moments(blob, true)
	if m["m00"] == 0 {
		return 0, eye.PointF{}
	}
	return m["m00"], eye.PointF{X: m["m10"] / m["m00"], Y: m["m01"] / m["m00"]}
}

// Binarize smooths img and returns a binary image in which pixels strictly
// darker than threshold are 255 and all others 0. Small specks are removed by
// erosion and surviving blobs are grown back to their original extent.
// The caller must Close the result.
func Binarize(img gocv.Mat, threshold int) gocv.Mat {
	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() > 1 {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	smooth := gocv.NewMat()
	defer smooth.Close()
	gocv.BilateralFilter(gray, &smooth, BlurDiameter, BlurSigma, BlurSigma)

	if threshold <= 0 {
		return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), gray.Rows(), gray.Cols(), gocv.MatTypeCV8U)
	}

	binary := gocv.NewMat()
	// ThresholdBinaryInv keeps pixels <= thresh, so thresh-1 keeps those < threshold.
	gocv.Threshold(smooth, &binary, float32(threshold-1), 255, gocv.ThresholdBinaryInv)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(KernelSize, KernelSize))
	defer kernel.Close()
	for i := 0; i < ErodeIterations; i++ {
		gocv.Erode(binary, &binary, kernel)
	}
	for i := 0; i < ErodeIterations; i++ {
		gocv.Dilate(binary, &binary, kernel)
	}

	return binary
}
