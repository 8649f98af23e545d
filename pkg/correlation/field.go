package correlation

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// progressInterval is the number of solved points between progress reports.
const progressInterval = 100

// ProgressCallback reports field assembly progress. Calls are serialized.
type ProgressCallback func(completed, total int, message string)

// Grid is the set of integer sample coordinates. Rows are indexed by Y,
// columns by X.
type Grid struct {
	X []int
	Y []int
}

// NewGrid builds the sample grid for a width×height image: coordinates run
// from half to size-half (exclusive) in steps of step, half = subsetSize/2.
func NewGrid(width, height, subsetSize, step int) Grid {
	if step < 1 {
		step = 1
	}
	half := subsetSize / 2
	return Grid{
		X: arange(half, width-half, step),
		Y: arange(half, height-half, step),
	}
}

func arange(start, stop, step int) []int {
	coords := make([]int, 0, max(0, (stop-start+step-1)/step))
	for v := start; v < stop; v += step {
		coords = append(coords, v)
	}
	return coords
}

// Len returns the number of grid points.
func (g Grid) Len() int {
	return len(g.X) * len(g.Y)
}

// Field is a raw displacement field. U, V and C are len(Y)×len(X) and
// aligned index for index with the grid coordinates.
type Field struct {
	// U and V are horizontal and vertical displacements in pixels.
	U, V *mat.Dense

	// C is the ZNCC score reached at each point.
	C *mat.Dense

	// X and Y are the grid coordinates.
	X, Y []int

	// Ref and Def are the preprocessed reference and deformed images.
	Ref, Def *mat.Dense

	// SubsetSize is the normalized window size the field was computed with.
	SubsetSize int
}

// Dims returns the field shape (rows, columns).
func (f *Field) Dims() (int, int) {
	return len(f.Y), len(f.X)
}

// newField allocates the output arrays. gonum refuses zero-sized matrices,
// so an empty grid gets empty matrices.
func newField(grid Grid) *Field {
	f := &Field{X: grid.X, Y: grid.Y}
	rows, cols := len(grid.Y), len(grid.X)
	if rows == 0 || cols == 0 {
		f.U, f.V, f.C = &mat.Dense{}, &mat.Dense{}, &mat.Dense{}
		return f
	}
	f.U = mat.NewDense(rows, cols, nil)
	f.V = mat.NewDense(rows, cols, nil)
	f.C = mat.NewDense(rows, cols, nil)
	return f
}

type options struct {
	progress ProgressCallback
	logger   *slog.Logger
}

// Option customizes a field computation.
type Option func(*options)

// WithProgress installs a progress callback.
func WithProgress(cb ProgressCallback) Option {
	return func(o *options) { o.progress = cb }
}

// WithLogger routes progress and diagnostic messages to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// ComputeDisplacementField preprocesses both frames and solves the
// displacement at every grid point. The frames must already share their
// dimensions (see CropToCommon).
//
// Grid points are independent, so rows are solved concurrently by up to
// p.Workers goroutines; every point writes only its own cell and the result
// is identical for any worker count. The context is checked between grid
// points; on cancellation the partially filled field is returned together
// with the context error.
func ComputeDisplacementField(ctx context.Context, a, b *Frame, p Params, opts ...Option) (*Field, error) {
	ref, def := Preprocess(a, b)
	return ComputeField(ctx, ref, def, p, opts...)
}

// ComputeField is ComputeDisplacementField for already preprocessed images.
func ComputeField(ctx context.Context, ref, def *mat.Dense, p Params, opts ...Option) (*Field, error) {
	p = p.Normalize()
	o := buildOptions(opts)

	height, width := ref.Dims()
	grid := NewGrid(width, height, p.SubsetSize, p.Step)
	field := newField(grid)
	field.Ref, field.Def = ref, def
	field.SubsetSize = p.SubsetSize

	total := grid.Len()
	o.logger.Info("computing displacement field",
		"width", width, "height", height,
		"subset", p.SubsetSize, "step", p.Step, "maxIter", p.MaxIter,
		"points", total, "workers", p.Workers)
	if total == 0 {
		return field, nil
	}

	var (
		mu        sync.Mutex
		completed int
	)
	report := func() {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if completed%progressInterval != 0 && completed != total {
			return
		}
		msg := fmt.Sprintf("%d/%d points", completed, total)
		if o.progress != nil {
			o.progress(completed, total, msg)
		}
		o.logger.Debug("progress", "completed", completed, "total", total)
	}

	solver := NewSolver(p.SubsetSize, p.MaxIter)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	for i := range grid.Y {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			y := grid.Y[i]
			for j, x := range grid.X {
				if err := gctx.Err(); err != nil {
					return err
				}
				d := solver.Solve(ref, def, x, y)
				field.U.Set(i, j, d.DX)
				field.V.Set(i, j, d.DY)
				field.C.Set(i, j, d.Correlation)
				report()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return field, fmt.Errorf("displacement field interrupted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return field, fmt.Errorf("displacement field interrupted: %w", err)
	}
	return field, nil
}
