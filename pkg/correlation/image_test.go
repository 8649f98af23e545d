package correlation

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// TestPreprocessRange verifies that both images are normalized to [0, 1]
// independently
func TestPreprocessRange(t *testing.T) {
	a := NewGrayFrame(4, 2, []float64{10, 20, 30, 40, 50, 60, 70, 80})
	b := NewGrayFrame(4, 2, []float64{-1, -0.5, 0, 0.5, 1, 1.5, 2, 3})

	na, nb := Preprocess(a, b)

	for _, img := range []interface {
		At(i, j int) float64
	}{na, nb} {
		if v := img.At(0, 0); v != 0 {
			t.Errorf("Expected minimum to map to 0, got %v", v)
		}
		if v := img.At(1, 3); math.Abs(v-1) > 1e-9 {
			t.Errorf("Expected maximum to map to ~1, got %v", v)
		}
	}

	// Input frames are not modified
	if a.Pix[0] != 10 || b.Pix[7] != 3 {
		t.Errorf("Preprocess modified its input")
	}

	r, c := na.Dims()
	if r != 2 || c != 4 {
		t.Errorf("Expected 2x4 image, got %dx%d", r, c)
	}
}

// TestPreprocessConstant verifies that a constant image becomes all zeros
// instead of dividing by zero
func TestPreprocessConstant(t *testing.T) {
	pix := make([]float64, 25)
	for i := range pix {
		pix[i] = 0.7
	}
	a := NewGrayFrame(5, 5, pix)

	na, _ := Preprocess(a, a)
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			v := na.At(i, j)
			if math.IsNaN(v) || v != 0 {
				t.Fatalf("Expected 0 for constant image, got %v at (%d,%d)", v, i, j)
			}
		}
	}
}

// TestGrayAveragesChannels checks the unweighted channel average
func TestGrayAveragesChannels(t *testing.T) {
	f := NewFrame(2, 1, 3)
	copy(f.Pix, []float64{3, 6, 9, 0, 0, 3})

	g := f.Gray()
	if g.At(0, 0) != 6 {
		t.Errorf("Expected mean 6, got %v", g.At(0, 0))
	}
	if g.At(0, 1) != 1 {
		t.Errorf("Expected mean 1, got %v", g.At(0, 1))
	}
}

// TestCropToCommon verifies top-left cropping to the shared size
func TestCropToCommon(t *testing.T) {
	a := NewFrame(6, 4, 1)
	for i := range a.Pix {
		a.Pix[i] = float64(i)
	}
	b := NewFrame(5, 7, 3)

	ca, cb := CropToCommon(a, b)
	if ca.Width != 5 || ca.Height != 4 || cb.Width != 5 || cb.Height != 4 {
		t.Fatalf("Expected both frames 5x4, got %dx%d and %dx%d", ca.Width, ca.Height, cb.Width, cb.Height)
	}
	if cb.Channels != 3 || len(cb.Pix) != 5*4*3 {
		t.Errorf("Cropped frame lost its channels")
	}
	// Row 1, column 0 of the crop is pixel 6 of the original
	if ca.Pix[5] != 6 {
		t.Errorf("Expected pixel value 6, got %v", ca.Pix[5])
	}

	same, _ := CropToCommon(a, a)
	if same != a {
		t.Errorf("Expected no copy for equally sized frames")
	}
}

// TestFrameFromImage checks channel detection for gray and color images
func TestFrameFromImage(t *testing.T) {
	gray := image.NewGray16(image.Rect(0, 0, 3, 2))
	gray.SetGray16(2, 1, color.Gray16{Y: 1000})
	fg := FrameFromImage(gray)
	if fg.Channels != 1 {
		t.Errorf("Expected 1 channel for gray image, got %d", fg.Channels)
	}
	if fg.Pix[1*3+2] != 1000 {
		t.Errorf("Expected sample 1000, got %v", fg.Pix[5])
	}

	rgba := image.NewRGBA(image.Rect(10, 10, 12, 11))
	rgba.Set(11, 10, color.RGBA{R: 255, G: 0, B: 0, A: 255})
	fc := FrameFromImage(rgba)
	if fc.Channels != 3 || fc.Width != 2 || fc.Height != 1 {
		t.Fatalf("Unexpected frame shape %dx%dx%d", fc.Width, fc.Height, fc.Channels)
	}
	if fc.Pix[3] != 65535 || fc.Pix[4] != 0 {
		t.Errorf("Expected red pixel, got %v", fc.Pix[3:6])
	}
}
