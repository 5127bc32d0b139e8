package pupil

import (
	"image"
	"image/color"
	"math"
	"testing"

	"gocv.io/x/gocv"
)

// squareImage returns a size x size white image with a black square of side
// n whose top-left corner is at (x, y).
func squareImage(size, x, y, n int) gocv.Mat {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), size, size, gocv.MatTypeCV8U)
	gocv.Rectangle(&img, image.Rect(x, y, x+n, y+n), color.RGBA{0, 0, 0, 0}, -1)
	return img
}

func near(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func TestDetect_CenteredSquare(t *testing.T) {
	img := squareImage(40, 15, 15, 10)
	defer img.Close()

	p := NewDetector().Detect(img, 128)

	if !p.Found {
		t.Fatal("expected the square to be found")
	}
	if !near(p.Area, 100, 1) {
		t.Errorf("Area = %f, want ~100", p.Area)
	}
	if !near(p.Center.X, 20, 1) || !near(p.Center.Y, 20, 1) {
		t.Errorf("Center = %+v, want ~(20,20)", p.Center)
	}
	if len(p.Contour) == 0 {
		t.Error("Contour should not be empty")
	}
}

func TestDetect_FallsBackToCenter(t *testing.T) {
	white := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 40, 40, gocv.MatTypeCV8U)
	defer white.Close()
	square := squareImage(40, 15, 15, 10)
	defer square.Close()

	tests := []struct {
		name      string
		img       gocv.Mat
		threshold int
	}{
		{"all white", white, 128},
		{"zero threshold", square, 0},
		{"negative threshold", square, -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewDetector().Detect(tt.img, tt.threshold)
			if p.Found {
				t.Error("Found should be false")
			}
			if p.Center.X != 20 || p.Center.Y != 20 {
				t.Errorf("Center = %+v, want (20,20)", p.Center)
			}
			if p.Area != 0 {
				t.Errorf("Area = %f, want 0", p.Area)
			}
		})
	}
}

func TestDetect_EmptyImage(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	p := NewDetector().Detect(empty, 50)
	if p.Found || p.Center.X != 0 || p.Center.Y != 0 {
		t.Errorf("empty image gave %+v", p)
	}
}

func TestDetect_BorderPolicy(t *testing.T) {
	// The square touches the left edge of the crop.
	img := squareImage(40, 0, 15, 10)
	defer img.Close()

	if p := NewDetector().Detect(img, 128); p.Found {
		t.Errorf("border touching blob should be rejected, got %+v", p)
	}

	p := NewDetectorWithPolicy(nil).Detect(img, 128)
	if !p.Found {
		t.Fatal("nil policy should accept the border blob")
	}
	if !near(p.Center.X, 5, 1) || !near(p.Center.Y, 20, 1) {
		t.Errorf("Center = %+v, want ~(5,20)", p.Center)
	}
}

func TestDetect_PicksLargestBlob(t *testing.T) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), 60, 60, gocv.MatTypeCV8U)
	defer img.Close()
	gocv.Rectangle(&img, image.Rect(8, 8, 18, 18), color.RGBA{0, 0, 0, 0}, -1)
	gocv.Rectangle(&img, image.Rect(30, 30, 46, 46), color.RGBA{0, 0, 0, 0}, -1)

	p := NewDetector().Detect(img, 128)
	if !p.Found {
		t.Fatal("expected a blob")
	}
	if !near(p.Area, 256, 2) {
		t.Errorf("Area = %f, want ~256", p.Area)
	}
	if !near(p.Center.X, 38, 1) || !near(p.Center.Y, 38, 1) {
		t.Errorf("Center = %+v, want ~(38,38)", p.Center)
	}
}

func TestBinarize(t *testing.T) {
	img := squareImage(40, 15, 15, 10)
	defer img.Close()

	t.Run("strictly darker is foreground", func(t *testing.T) {
		// The square is 0, so threshold 1 keeps it and the white stays out.
		binary := Binarize(img, 1)
		defer binary.Close()

		if n := gocv.CountNonZero(binary); n != 100 {
			t.Errorf("CountNonZero = %d, want 100", n)
		}
		if binary.GetUCharAt(20, 20) != 255 || binary.GetUCharAt(2, 2) != 0 {
			t.Error("square should be 255 and background 0")
		}
	})

	t.Run("threshold 255 excludes white", func(t *testing.T) {
		binary := Binarize(img, 255)
		defer binary.Close()

		if n := gocv.CountNonZero(binary); n != 100 {
			t.Errorf("CountNonZero = %d, want 100", n)
		}
	})

	t.Run("erosion removes specks", func(t *testing.T) {
		speck := squareImage(40, 20, 20, 3)
		defer speck.Close()

		binary := Binarize(speck, 128)
		defer binary.Close()

		if n := gocv.CountNonZero(binary); n != 0 {
			t.Errorf("3x3 speck should not survive, got %d pixels", n)
		}
	})

	t.Run("zero threshold is empty", func(t *testing.T) {
		binary := Binarize(img, 0)
		defer binary.Close()

		if binary.Rows() != 40 || binary.Cols() != 40 {
			t.Errorf("size = %dx%d, want 40x40", binary.Cols(), binary.Rows())
		}
		if n := gocv.CountNonZero(binary); n != 0 {
			t.Errorf("CountNonZero = %d, want 0", n)
		}
	})
}

func TestExcludeBorderTouching(t *testing.T) {
	size := image.Pt(40, 30)
	tests := []struct {
		name   string
		bounds image.Rectangle
		want   bool
	}{
		{"inside", image.Rect(5, 5, 20, 20), true},
		{"left edge", image.Rect(0, 5, 20, 20), false},
		{"top edge", image.Rect(5, 0, 20, 20), false},
		{"right edge", image.Rect(5, 5, 40, 20), false},
		{"bottom edge", image.Rect(5, 5, 20, 30), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExcludeBorderTouching(tt.bounds, size); got != tt.want {
				t.Errorf("ExcludeBorderTouching() = %v, want %v", got, tt.want)
			}
		})
	}
}
