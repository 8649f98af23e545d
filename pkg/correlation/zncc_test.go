package correlation

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func subsetFrom(size int, fn func(i, j int) float64) *mat.Dense {
	m := mat.NewDense(size, size, nil)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			m.Set(i, j, fn(i, j))
		}
	}
	return m
}

func speckleValue(i, j int) float64 {
	return 0.5 + 0.3*math.Sin(float64(i)*1.3+float64(j)*0.7) + 0.2*math.Cos(float64(i*j)*0.11)
}

// TestZNCCIdentity verifies that a subset matches itself perfectly
func TestZNCCIdentity(t *testing.T) {
	s := subsetFrom(21, speckleValue)
	if c := ZNCC(s, s); math.Abs(c-1) > 1e-9 {
		t.Errorf("ZNCC(s, s) = %v, expected 1", c)
	}
}

// TestZNCCAffineInvariance verifies insensitivity to brightness offset and
// contrast gain
func TestZNCCAffineInvariance(t *testing.T) {
	ref := subsetFrom(21, speckleValue)
	def := subsetFrom(21, func(i, j int) float64 {
		return 3.5*speckleValue(i, j) - 0.8
	})

	if c := ZNCC(ref, def); math.Abs(c-1) > 1e-9 {
		t.Errorf("ZNCC under affine intensity change = %v, expected 1", c)
	}

	inverted := subsetFrom(21, func(i, j int) float64 {
		return 1 - speckleValue(i, j)
	})
	if c := ZNCC(ref, inverted); math.Abs(c+1) > 1e-9 {
		t.Errorf("ZNCC of inverted subset = %v, expected -1", c)
	}
}

// TestZNCCDegenerate verifies the epsilon guard for zero variance subsets
func TestZNCCDegenerate(t *testing.T) {
	flat := subsetFrom(21, func(i, j int) float64 { return 0.25 })
	ref := subsetFrom(21, speckleValue)

	for _, pair := range [][2]*mat.Dense{{flat, flat}, {ref, flat}, {flat, ref}} {
		c := ZNCC(pair[0], pair[1])
		if math.IsNaN(c) || math.IsInf(c, 0) {
			t.Fatalf("ZNCC returned non-finite %v", c)
		}
		if math.Abs(c) > 1e-6 {
			t.Errorf("Expected ZNCC near 0 for flat subset, got %v", c)
		}
	}
}

// TestTemplateMatchesZNCC checks that repeated template scoring equals the
// one-shot metric
func TestTemplateMatchesZNCC(t *testing.T) {
	ref := subsetFrom(23, speckleValue)
	tpl := NewTemplate(ref)

	for shift := 0; shift < 3; shift++ {
		def := subsetFrom(23, func(i, j int) float64 {
			return speckleValue(i+shift, j)
		})
		if got, want := tpl.Score(def), ZNCC(ref, def); got != want {
			t.Errorf("shift %d: template score %v differs from ZNCC %v", shift, got, want)
		}
	}
}

// TestZNCCStridedView verifies that sliced matrix views are handled
func TestZNCCStridedView(t *testing.T) {
	big := subsetFrom(30, speckleValue)
	view := big.Slice(2, 23, 3, 24).(*mat.Dense)
	copied := mat.DenseCopyOf(view)

	if got, want := ZNCC(view, copied), 1.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("ZNCC of view and its copy = %v, expected 1", got)
	}
}
