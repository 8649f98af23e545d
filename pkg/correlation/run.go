package correlation

import (
	"context"
	"errors"
	"time"
)

// Status is the outcome of a correlation run.
type Status int

const (
	// StatusSucceeded means the field was computed and at least one point
	// survived filtering.
	StatusSucceeded Status = iota

	// StatusNoValidPoints means the field was computed but every point was
	// filtered out (or the grid is empty). Statistics are all 0.
	StatusNoValidPoints

	// StatusCancelled means the context ended before every point was solved.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusNoValidPoints:
		return "no valid points"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result bundles everything a correlation run produces.
type Result struct {
	Status  Status
	Message string

	Field    *Field
	Filtered *FilteredField
	Stats    Statistics
	Quality  QualitySummary

	// Params are the normalized parameters actually used.
	Params  Params
	Elapsed time.Duration
}

// Run computes, filters and summarizes the displacement field between two
// frames. It never fails on image content; only cancellation of ctx ends it
// early, reported as StatusCancelled with the partial field attached.
func Run(ctx context.Context, a, b *Frame, p Params, opts ...Option) Result {
	start := time.Now()
	p = p.Normalize()
	o := buildOptions(opts)

	field, err := ComputeDisplacementField(ctx, a, b, p, opts...)
	res := Result{Field: field, Params: p}
	if err != nil {
		res.Status = StatusCancelled
		res.Message = err.Error()
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			o.logger.Warn("unexpected field error", "error", err)
		}
		res.Elapsed = time.Since(start)
		return res
	}

	res.Filtered = PostProcess(field, p.MinCorrelation)
	res.Stats = ComputeStatistics(res.Filtered)
	res.Quality = Quality(field.C)
	if res.Stats.ValidPoints == 0 {
		res.Status = StatusNoValidPoints
		res.Message = "no grid point exceeded the correlation threshold"
	}
	res.Elapsed = time.Since(start)

	o.logger.Info("correlation finished",
		"status", res.Status.String(),
		"valid", res.Stats.ValidPoints, "total", res.Stats.TotalPoints,
		"meanDisplacement", res.Stats.Mean,
		"meanCorrelation", res.Quality.MeanCorrelation,
		"elapsed", res.Elapsed)
	return res
}
