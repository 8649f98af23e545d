// Package visualization renders preprocessed images and displacement maps to
// image and vector files.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"dicfield/pkg/correlation"
)

// Map dimensions on the page.
const (
	mapWidth  = 16 * vg.Centimeter
	mapHeight = 12 * vg.Centimeter
)

// ToGray16 converts a normalized [0, 1] image to 16-bit grayscale. Values
// outside the range are clamped.
func ToGray16(img *mat.Dense) *image.Gray16 {
	if img.IsEmpty() {
		return image.NewGray16(image.Rect(0, 0, 0, 0))
	}
	height, width := img.Dims()
	out := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			value := uint16(math.Max(0, math.Min(65535, img.At(y, x)*65535)))
			out.SetGray16(x, y, color.Gray16{Y: value})
		}
	}
	return out
}

// SaveGrayPNG writes a normalized image as a 16-bit grayscale PNG
func SaveGrayPNG(path string, img *mat.Dense) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := png.Encode(file, ToGray16(img)); err != nil {
		return fmt.Errorf("error encoding %s: %w", path, err)
	}
	return nil
}

// magnitudeGrid exposes the filtered displacement magnitude as a
// plotter.GridXYZ. Cells without data are NaN and left blank by the heat map.
type magnitudeGrid struct {
	ff     *correlation.FilteredField
	xs, ys []int
}

func (g magnitudeGrid) Dims() (c, r int) { return g.ff.Cols, g.ff.Rows }

func (g magnitudeGrid) Z(c, r int) float64 {
	if !g.ff.IsValid(r, c) {
		return math.NaN()
	}
	return math.Hypot(g.ff.U.At(r, c), g.ff.V.At(r, c))
}

func (g magnitudeGrid) X(c int) float64 { return float64(g.xs[c]) }
func (g magnitudeGrid) Y(r int) float64 { return float64(g.ys[r]) }

// SaveDisplacementMap renders the displacement magnitude of ff as a heat map
// over the grid coordinates xs and ys, with the y axis pointing down as in
// the source image. The color range is [0, stats.Max]. The output format
// follows the file extension (.png, .pdf, .svg, ...).
func SaveDisplacementMap(path string, ff *correlation.FilteredField, xs, ys []int, stats correlation.Statistics) error {
	if ff.Rows < 2 || ff.Cols < 2 {
		return fmt.Errorf("displacement map needs at least a 2x2 grid, got %dx%d", ff.Rows, ff.Cols)
	}
	if len(xs) != ff.Cols || len(ys) != ff.Rows {
		return fmt.Errorf("grid coordinates (%d, %d) do not match field shape %dx%d",
			len(xs), len(ys), ff.Rows, ff.Cols)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Displacement magnitude (mean %.3f px, %d/%d points)",
		stats.Mean, stats.ValidPoints, stats.TotalPoints)
	p.X.Label.Text = "x (px)"
	p.Y.Label.Text = "y (px)"
	p.Y.Scale = plot.InvertedScale{Normalizer: p.Y.Scale}

	hm := plotter.NewHeatMap(magnitudeGrid{ff: ff, xs: xs, ys: ys}, palette.Heat(12, 1))
	hm.Min = 0
	hm.Max = stats.Max
	if hm.Max <= hm.Min {
		hm.Max = hm.Min + 1
	}
	p.Add(hm)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating output directory: %w", err)
	}
	if err := p.Save(mapWidth, mapHeight, path); err != nil {
		return fmt.Errorf("error saving displacement map: %w", err)
	}
	return nil
}
