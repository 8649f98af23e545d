package correlation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ReliableThreshold is the correlation above which a point counts as
// reliable in Quality.
const ReliableThreshold = 0.5

// FilteredField is a post-processed copy of U and V. Cells with Valid false
// carry no data; their U and V entries are 0 and must be ignored.
type FilteredField struct {
	U, V  *mat.Dense
	Valid []bool
	Rows  int
	Cols  int
}

// IsValid reports whether cell (i, j) holds data.
func (ff *FilteredField) IsValid(i, j int) bool {
	return ff.Valid[i*ff.Cols+j]
}

// ValidCount returns the number of cells holding data.
func (ff *FilteredField) ValidCount() int {
	n := 0
	for _, ok := range ff.Valid {
		if ok {
			n++
		}
	}
	return n
}

// Magnitude returns sqrt(U^2+V^2) for every valid cell in row-major order.
func (ff *FilteredField) Magnitude() []float64 {
	mags := make([]float64, 0, len(ff.Valid))
	for i := 0; i < ff.Rows; i++ {
		for j := 0; j < ff.Cols; j++ {
			if ff.IsValid(i, j) {
				mags = append(mags, math.Hypot(ff.U.At(i, j), ff.V.At(i, j)))
			}
		}
	}
	return mags
}

// NaNGrid returns a copy of component m with NaN in cells without data, for
// consumers that expect the NaN convention.
func (ff *FilteredField) NaNGrid(m *mat.Dense) *mat.Dense {
	if ff.Rows == 0 || ff.Cols == 0 {
		return &mat.Dense{}
	}
	out := mat.DenseCopyOf(m)
	for i := 0; i < ff.Rows; i++ {
		for j := 0; j < ff.Cols; j++ {
			if !ff.IsValid(i, j) {
				out.Set(i, j, math.NaN())
			}
		}
	}
	return out
}

// Mask marks the cells of f whose correlation is strictly above
// minCorrelation. C itself is left untouched.
func Mask(f *Field, minCorrelation float64) []bool {
	rows, cols := f.Dims()
	valid := make([]bool, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			valid[i*cols+j] = f.C.At(i, j) > minCorrelation
		}
	}
	return valid
}

// PostProcess drops unreliable points and smooths outliers:
//
//  1. cells with C <= minCorrelation lose their U and V data,
//  2. U and V are each passed through a 3×3 median filter that ignores
//     cells without data, with "no data" padding beyond the edges.
//
// Edge cells are therefore filtered against fewer real neighbors. Cells
// without data stay without data, so filtering never adds valid points.
func PostProcess(f *Field, minCorrelation float64) *FilteredField {
	rows, cols := f.Dims()
	ff := &FilteredField{
		Valid: Mask(f, minCorrelation),
		Rows:  rows,
		Cols:  cols,
	}
	if rows == 0 || cols == 0 {
		ff.U, ff.V = &mat.Dense{}, &mat.Dense{}
		return ff
	}

	u := maskedCopy(f.U, ff.Valid)
	v := maskedCopy(f.V, ff.Valid)
	ff.U = MedianFilter3(u, ff.Valid)
	ff.V = MedianFilter3(v, ff.Valid)
	return ff
}

func maskedCopy(m *mat.Dense, valid []bool) *mat.Dense {
	out := mat.DenseCopyOf(m)
	_, cols := out.Dims()
	for k, ok := range valid {
		if !ok {
			out.Set(k/cols, k%cols, 0)
		}
	}
	return out
}

// MedianFilter3 applies a 3×3 median filter to m considering only cells
// marked valid. Invalid cells and cells beyond the border are skipped; an
// invalid center stays 0.
func MedianFilter3(m *mat.Dense, valid []bool) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	window := make([]float64, 0, 9)

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if !valid[i*cols+j] {
				continue
			}
			window = window[:0]
			for di := -1; di <= 1; di++ {
				for dj := -1; dj <= 1; dj++ {
					r, c := i+di, j+dj
					if r < 0 || r >= rows || c < 0 || c >= cols || !valid[r*cols+c] {
						continue
					}
					window = append(window, m.At(r, c))
				}
			}
			out.Set(i, j, median(window))
		}
	}
	return out
}

// median returns the median of values, averaging the two middle elements
// for even counts. values is reordered.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sort.Float64s(values)
	if n%2 == 0 {
		return (values[n/2-1] + values[n/2]) / 2
	}
	return values[n/2]
}

// Statistics summarizes the filtered displacement magnitude.
type Statistics struct {
	Mean   float64
	Max    float64
	Median float64
	Std    float64

	ValidPoints int
	TotalPoints int
}

// ComputeStatistics returns mean, max, median and population standard
// deviation of the valid magnitudes. With no valid points every statistic
// is 0.
func ComputeStatistics(ff *FilteredField) Statistics {
	mags := ff.Magnitude()
	s := Statistics{
		ValidPoints: len(mags),
		TotalPoints: ff.Rows * ff.Cols,
	}
	if len(mags) == 0 {
		return s
	}
	s.Mean, s.Std = stat.PopMeanStdDev(mags, nil)
	s.Max = floats.Max(mags)
	s.Median = median(mags)
	return s
}

// QualitySummary describes the raw correlation scores.
type QualitySummary struct {
	// MeanCorrelation is the mean of C over all grid points.
	MeanCorrelation float64

	// ReliablePercentage is the share of points with C > ReliableThreshold.
	ReliablePercentage float64

	// Points is the number of grid points.
	Points int
}

// Quality summarizes C. An empty field yields zeros.
func Quality(c *mat.Dense) QualitySummary {
	if c.IsEmpty() {
		return QualitySummary{}
	}
	rows, cols := c.Dims()
	scores := flatten(c, nil)
	reliable := 0
	for _, v := range scores {
		if v > ReliableThreshold {
			reliable++
		}
	}
	return QualitySummary{
		MeanCorrelation:    stat.Mean(scores, nil),
		ReliablePercentage: 100 * float64(reliable) / float64(rows*cols),
		Points:             rows * cols,
	}
}
