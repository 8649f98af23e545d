package correlation

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"dicfield/pkg/interpolation"
)

// Displacement is the solved shift of one grid point.
type Displacement struct {
	DX, DY      float64
	Correlation float64
}

// Solver finds the displacement maximizing ZNCC between a reference subset
// and a shifted candidate subset, searching inside a box around (0, 0).
//
// The search always starts at (0, 0). It never warm-starts from neighboring
// grid points, so each point's result depends only on the two images and
// its own coordinates.
type Solver struct {
	// SubsetSize is the (already normalized) window size.
	SubsetSize int

	// MaxIter caps quasi-Newton iterations.
	MaxIter int

	// Bound limits |dx| and |dy|.
	Bound float64

	// GradTol stops when the projected gradient's largest component is below it.
	GradTol float64

	// FuncTol stops when the relative objective decrease is below it.
	FuncTol float64

	// Tolerance stops when the absolute objective decrease is below it.
	Tolerance float64
}

// NewSolver returns a solver with the default bounds and tolerances.
func NewSolver(subsetSize, maxIter int) *Solver {
	if maxIter < 1 {
		maxIter = 1
	}
	return &Solver{
		SubsetSize: NormalizeSubsetSize(subsetSize),
		MaxIter:    maxIter,
		Bound:      SearchBound,
		GradTol:    1e-8,
		FuncTol:    1e-8,
		Tolerance:  1e-6,
	}
}

const (
	armijo       = 1e-4
	maxBacktrack = 30
	fdStep       = 1e-6
)

// Solve estimates the displacement of grid point (x, y) from ref to def.
//
// There is no failure result: if no step improves on the starting point the
// solver returns (0, 0) with the correlation found there.
func (s *Solver) Solve(ref, def *mat.Dense, x, y int) Displacement {
	cx, cy := float64(x), float64(y)
	tpl := NewTemplate(interpolation.Subset(ref, cx, cy, s.SubsetSize))
	candidate := mat.NewDense(s.SubsetSize, s.SubsetSize, nil)

	objective := func(p []float64) float64 {
		interpolation.SubsetInto(candidate, def, cx+p[0], cy+p[1])
		return -tpl.Score(candidate)
	}

	p, f := s.minimize(objective, []float64{0, 0})
	return Displacement{DX: p[0], DY: p[1], Correlation: -f}
}

// minimize runs a projected BFGS iteration with central difference
// gradients and Armijo backtracking along the projected path.
func (s *Solver) minimize(objective func([]float64) float64, start []float64) ([]float64, float64) {
	const n = 2
	settings := &fd.Settings{Formula: fd.Central, Step: fdStep}

	x := make([]float64, n)
	copy(x, start)
	s.project(x)
	f := objective(x)
	g := fd.Gradient(nil, objective, x, settings)

	h := mat.NewDense(n, n, nil)
	resetHessian(h)
	scaled := false

	xn := make([]float64, n)
	step := make([]float64, n)
	dir := mat.NewVecDense(n, nil)

	for iter := 0; iter < s.MaxIter; iter++ {
		pg := s.projectedGradient(x, g)
		if floats.Norm(pg, math.Inf(1)) <= s.GradTol {
			break
		}

		dir.MulVec(h, mat.NewVecDense(n, g))
		dir.ScaleVec(-1, dir)
		d := dir.RawVector().Data
		s.freeActive(x, d)
		if floats.Dot(d, g) >= 0 {
			// Not a descent direction: restart from steepest descent.
			resetHessian(h)
			scaled = false
			copy(d, pg)
			floats.Scale(-1, d)
		}

		alpha := 1.0
		if !scaled {
			// No curvature yet: unit-length first step.
			if norm := floats.Norm(d, 2); norm > 0 {
				alpha = 1 / norm
			}
		}

		var fn float64
		accepted := false
		for k := 0; k < maxBacktrack; k++ {
			floats.AddScaledTo(xn, x, alpha, d)
			s.project(xn)
			floats.SubTo(step, xn, x)
			fn = objective(xn)
			if fn < f && fn <= f+armijo*floats.Dot(g, step) {
				accepted = true
				break
			}
			alpha /= 2
		}
		if !accepted {
			break
		}

		gn := fd.Gradient(nil, objective, xn, settings)
		decrease := f - fn

		yv := make([]float64, n)
		floats.SubTo(yv, gn, g)
		if sy := floats.Dot(step, yv); sy > 1e-12 {
			if !scaled {
				resetHessian(h)
				h.Scale(sy/floats.Dot(yv, yv), h)
				scaled = true
			}
			updateInverseHessian(h, step, yv, sy)
		}

		copy(x, xn)
		f = fn
		g = gn

		if decrease <= s.FuncTol*math.Max(math.Max(math.Abs(f), math.Abs(f+decrease)), 1) {
			break
		}
		if decrease <= s.Tolerance {
			break
		}
	}

	return x, f
}

// updateInverseHessian applies the BFGS update
// H = (I - rho s y^T) H (I - rho y s^T) + rho s s^T with rho = 1/(s.y).
func updateInverseHessian(h *mat.Dense, s, y []float64, sy float64) {
	n := len(s)
	rho := 1 / sy
	sv := mat.NewVecDense(n, s)
	yv := mat.NewVecDense(n, y)

	var a mat.Dense
	a.Outer(-rho, sv, yv)
	for i := 0; i < n; i++ {
		a.Set(i, i, a.At(i, i)+1)
	}

	var tmp mat.Dense
	tmp.Mul(&a, h)
	h.Mul(&tmp, a.T())

	var ss mat.Dense
	ss.Outer(rho, sv, sv)
	h.Add(h, &ss)
}

func resetHessian(h *mat.Dense) {
	r, _ := h.Dims()
	h.Zero()
	for i := 0; i < r; i++ {
		h.Set(i, i, 1)
	}
}

// project clamps p into the search box.
func (s *Solver) project(p []float64) {
	for i := range p {
		p[i] = math.Max(-s.Bound, math.Min(s.Bound, p[i]))
	}
}

// projectedGradient zeroes gradient components that would push an active
// bound outward.
func (s *Solver) projectedGradient(x, g []float64) []float64 {
	pg := make([]float64, len(g))
	for i := range g {
		switch {
		case x[i] <= -s.Bound && g[i] > 0:
		case x[i] >= s.Bound && g[i] < 0:
		default:
			pg[i] = g[i]
		}
	}
	return pg
}

// freeActive zeroes direction components that leave the box through an
// active bound.
func (s *Solver) freeActive(x, d []float64) {
	for i := range d {
		if (x[i] <= -s.Bound && d[i] < 0) || (x[i] >= s.Bound && d[i] > 0) {
			d[i] = 0
		}
	}
}
