// Package correlation implements subset-based Digital Image Correlation:
// image normalization, the ZNCC similarity metric, a bounded quasi-Newton
// displacement solver, parallel assembly of the displacement field over a
// regular grid, and reliability post-processing.
//
// Nothing in this package fails on bad numbers. Parameters are clamped,
// degenerate subsets score near zero and the solver always returns its best
// iterate; quality is judged from the correlation value alone.
package correlation

import (
	"runtime"
)

const (
	// MinSubsetSize and MaxSubsetSize bound the correlation window.
	MinSubsetSize = 21
	MaxSubsetSize = 31

	// SearchBound limits |dx| and |dy| in pixels.
	SearchBound = 15.0

	// DefaultMinCorrelation is the reliability threshold used by PostProcess.
	DefaultMinCorrelation = 0.4

	epsilon = 1e-10
)

// Params holds the correlation run parameters.
type Params struct {
	// SubsetSize is the side of the square correlation window in pixels.
	// It is forced odd and clamped to [MinSubsetSize, MaxSubsetSize].
	SubsetSize int

	// Step is the spacing of the sampling grid in pixels.
	Step int

	// MaxIter caps the optimizer iterations per grid point.
	MaxIter int

	// MinCorrelation is the ZNCC threshold below which a point is dropped.
	MinCorrelation float64

	// Workers is the number of grid points solved concurrently.
	// Zero or negative means one per CPU.
	Workers int
}

// DefaultParams returns the parameters used for in-memory image pairs.
func DefaultParams() Params {
	return Params{
		SubsetSize:     25,
		Step:           12,
		MaxIter:        35,
		MinCorrelation: DefaultMinCorrelation,
		Workers:        runtime.NumCPU(),
	}
}

// FileParams returns the higher resolution parameters used when images are
// loaded from files.
func FileParams() Params {
	p := DefaultParams()
	p.SubsetSize = 27
	p.Step = 13
	p.MaxIter = 40
	return p
}

// Normalize returns a copy of p with every field corrected into its valid
// range. Invalid values are never rejected.
func (p Params) Normalize() Params {
	p.SubsetSize = NormalizeSubsetSize(p.SubsetSize)
	if p.Step < 1 {
		p.Step = 1
	}
	if p.MaxIter < 1 {
		p.MaxIter = 1
	}
	if p.MinCorrelation < -1 {
		p.MinCorrelation = -1
	} else if p.MinCorrelation > 1 {
		p.MinCorrelation = 1
	}
	if p.Workers < 1 {
		p.Workers = runtime.NumCPU()
	}
	return p
}

// NormalizeSubsetSize makes size odd (rounding up) and clamps it to
// [MinSubsetSize, MaxSubsetSize].
func NormalizeSubsetSize(size int) int {
	if size%2 == 0 {
		size++
	}
	if size < MinSubsetSize {
		return MinSubsetSize
	}
	if size > MaxSubsetSize {
		return MaxSubsetSize
	}
	return size
}
