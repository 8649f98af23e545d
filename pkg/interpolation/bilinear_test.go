package interpolation

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// createTestImage builds a height×width image from a pattern function
func createTestImage(width, height int, pattern func(x, y int) float64) *mat.Dense {
	img := mat.NewDense(height, width, nil)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(y, x, pattern(x, y))
		}
	}
	return img
}

func ramp(x, y int) float64 {
	return float64(x)*0.01 + float64(y)*0.1
}

// TestBilinearIntegerCoordinates verifies that sampling at a pixel center
// returns the pixel value exactly
func TestBilinearIntegerCoordinates(t *testing.T) {
	img := createTestImage(8, 6, func(x, y int) float64 {
		return math.Sin(float64(x*7+y*3)) * 0.5
	})

	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			got := Bilinear(img, float64(x), float64(y))
			if got != img.At(y, x) {
				t.Errorf("Bilinear(%d, %d) = %v, expected %v", x, y, got, img.At(y, x))
			}
		}
	}
}

// TestBilinearFractional checks interpolation between pixels on a linear ramp,
// where bilinear interpolation is exact
func TestBilinearFractional(t *testing.T) {
	img := createTestImage(10, 10, ramp)

	cases := []struct{ x, y float64 }{
		{0.5, 0.5},
		{2.25, 3.75},
		{7.9, 1.1},
		{4, 4.5},
	}
	for _, c := range cases {
		expected := c.x*0.01 + c.y*0.1
		got := Bilinear(img, c.x, c.y)
		if math.Abs(got-expected) > 1e-12 {
			t.Errorf("Bilinear(%v, %v) = %v, expected %v", c.x, c.y, got, expected)
		}
	}
}

// TestBilinearOutOfBounds verifies the hard-zero boundary policy
func TestBilinearOutOfBounds(t *testing.T) {
	img := createTestImage(5, 5, func(x, y int) float64 { return 1 })

	cases := []struct{ x, y float64 }{
		{-0.5, 2},
		{2, -0.01},
		{4, 2},   // last column has no right neighbor
		{2, 4},   // last row has no lower neighbor
		{3.5, 3.99},
		{10, 10},
	}
	for i, c := range cases {
		got := Bilinear(img, c.x, c.y)
		if i < 4 || i == 5 {
			if got != 0 {
				t.Errorf("Bilinear(%v, %v) = %v, expected 0 outside image", c.x, c.y, got)
			}
			continue
		}
		if math.Abs(got-1) > 1e-12 {
			t.Errorf("Bilinear(%v, %v) = %v, expected 1 inside image", c.x, c.y, got)
		}
	}
}

// TestSubset checks shape, centering and zero padding of extracted windows
func TestSubset(t *testing.T) {
	img := createTestImage(30, 30, ramp)

	s := Subset(img, 15, 12, 5)
	r, c := s.Dims()
	if r != 5 || c != 5 {
		t.Fatalf("Expected 5x5 subset, got %dx%d", r, c)
	}

	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			expected := img.At(12+i-2, 15+j-2)
			if math.Abs(s.At(i, j)-expected) > 1e-12 {
				t.Errorf("subset[%d][%d] = %v, expected %v", i, j, s.At(i, j), expected)
			}
		}
	}

	// Center value equals the pixel under the center
	if s.At(2, 2) != img.At(12, 15) {
		t.Errorf("Subset center = %v, expected %v", s.At(2, 2), img.At(12, 15))
	}
}

// TestSubsetNearEdge verifies that samples outside the image stay zero
func TestSubsetNearEdge(t *testing.T) {
	img := createTestImage(20, 20, func(x, y int) float64 { return 0.5 })

	s := Subset(img, 1, 1, 5)
	for i := 0; i < 5; i++ {
		for j := 0; j < 5; j++ {
			y := 1 + i - 2
			x := 1 + j - 2
			inside := x >= 0 && y >= 0 && x < 19 && y < 19
			if inside && s.At(i, j) != 0.5 {
				t.Errorf("subset[%d][%d] = %v, expected 0.5", i, j, s.At(i, j))
			}
			if !inside && s.At(i, j) != 0 {
				t.Errorf("subset[%d][%d] = %v, expected 0 outside image", i, j, s.At(i, j))
			}
		}
	}
}

// TestSubsetIntoReuse verifies that a reused buffer does not leak old samples
func TestSubsetIntoReuse(t *testing.T) {
	img := createTestImage(20, 20, func(x, y int) float64 { return 1 })
	buf := mat.NewDense(5, 5, nil)

	SubsetInto(buf, img, 10, 10)
	SubsetInto(buf, img, -10, -10)

	if mat.Sum(buf) != 0 {
		t.Errorf("Expected an all-zero subset far outside the image, got sum %v", mat.Sum(buf))
	}
}
