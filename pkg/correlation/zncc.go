package correlation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ZNCC returns the zero-mean normalized cross-correlation of two equally
// shaped subsets:
//
//	sum(R0*D0) / (sqrt(sum(R0^2) * sum(D0^2)) + 1e-10)
//
// where R0 and D0 are the subsets minus their means. The score lies in
// [-1, 1] and is invariant to a uniform brightness offset or contrast gain
// between the two subsets. A subset with no variance scores 0.
func ZNCC(ref, def *mat.Dense) float64 {
	return NewTemplate(ref).Score(def)
}

// Template is a reference subset prepared for repeated ZNCC scoring.
type Template struct {
	zero   []float64
	energy float64
	buf    []float64
}

// NewTemplate stores the zero-mean copy of ref and its energy sum(R0^2).
func NewTemplate(ref *mat.Dense) *Template {
	zero := flatten(ref, nil)
	floats.AddConst(-stat.Mean(zero, nil), zero)
	return &Template{
		zero:   zero,
		energy: floats.Dot(zero, zero),
		buf:    make([]float64, len(zero)),
	}
}

// Score returns ZNCC(ref, def). def must have the template's shape.
// A Template is not safe for concurrent use.
func (t *Template) Score(def *mat.Dense) float64 {
	d := flatten(def, t.buf)
	if len(d) != len(t.zero) {
		panic("correlation: subset shape mismatch")
	}
	floats.AddConst(-stat.Mean(d, nil), d)

	numerator := floats.Dot(t.zero, d)
	denominator := math.Sqrt(t.energy * floats.Dot(d, d))
	return numerator / (denominator + epsilon)
}

// flatten copies the elements of m in row-major order into dst, allocating
// when dst is too short.
func flatten(m *mat.Dense, dst []float64) []float64 {
	r, c := m.Dims()
	n := r * c
	if cap(dst) < n {
		dst = make([]float64, n)
	}
	dst = dst[:n]
	raw := m.RawMatrix()
	if raw.Stride == c {
		copy(dst, raw.Data[:n])
		return dst
	}
	for i := 0; i < r; i++ {
		copy(dst[i*c:(i+1)*c], raw.Data[i*raw.Stride:i*raw.Stride+c])
	}
	return dst
}
