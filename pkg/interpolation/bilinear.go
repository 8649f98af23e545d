// Package interpolation samples grayscale images at fractional coordinates.
//
// Images are gonum dense matrices with one row per image row (y) and one
// column per image column (x). Sampling outside the image yields 0: a window
// that strays off the image edge is penalized instead of being padded.
package interpolation

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Bilinear returns the intensity of img at the fractional position (x, y)
// interpolated from its four surrounding pixels.
//
// If any of the four neighbors lies outside the image the result is exactly
// 0. Note that this includes the last row and column: x = width-1 has no
// right-hand neighbor.
func Bilinear(img *mat.Dense, x, y float64) float64 {
	raw := img.RawMatrix()
	return bilinear(raw.Data, raw.Stride, raw.Cols, raw.Rows, x, y)
}

func bilinear(data []float64, stride, width, height int, x, y float64) float64 {
	fx := math.Floor(x)
	fy := math.Floor(y)
	x0 := int(fx)
	y0 := int(fy)
	x1 := x0 + 1
	y1 := y0 + 1

	if x0 < 0 || y0 < 0 || x1 >= width || y1 >= height {
		return 0
	}

	dx := x - fx
	dy := y - fy

	row0 := y0 * stride
	row1 := y1 * stride

	return data[row0+x0]*(1-dx)*(1-dy) +
		data[row0+x1]*dx*(1-dy) +
		data[row1+x0]*(1-dx)*dy +
		data[row1+x1]*dx*dy
}

// Subset extracts a size×size window of img centered at (cx, cy).
// Row i of the window samples y = cy + i - size/2, column j samples
// x = cx + j - size/2.
func Subset(img *mat.Dense, cx, cy float64, size int) *mat.Dense {
	dst := mat.NewDense(size, size, nil)
	SubsetInto(dst, img, cx, cy)
	return dst
}

// SubsetInto fills dst (which must be square) with the window of img centered
// at (cx, cy). Samples whose row or column falls outside the image are left
// at 0, so dst is cleared first.
func SubsetInto(dst *mat.Dense, img *mat.Dense, cx, cy float64) {
	size, c := dst.Dims()
	if size != c {
		panic("interpolation: subset must be square")
	}
	dst.Zero()

	src := img.RawMatrix()
	out := dst.RawMatrix()
	half := size / 2
	width := float64(src.Cols)
	height := float64(src.Rows)

	for i := 0; i < size; i++ {
		y := cy + float64(i-half)
		if y < 0 || y >= height {
			continue
		}
		row := out.Data[i*out.Stride : i*out.Stride+size]
		for j := 0; j < size; j++ {
			x := cx + float64(j-half)
			if x < 0 || x >= width {
				continue
			}
			row[j] = bilinear(src.Data, src.Stride, src.Cols, src.Rows, x, y)
		}
	}
}
