package correlation

import (
	"image"
	"image/color"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Frame is a decoded input image before preprocessing. Pix holds Channels
// samples per pixel, pixels in row-major order.
type Frame struct {
	Width    int
	Height   int
	Channels int
	Pix      []float64
}

// NewFrame allocates a zeroed frame.
func NewFrame(width, height, channels int) *Frame {
	if channels < 1 {
		channels = 1
	}
	return &Frame{
		Width:    width,
		Height:   height,
		Channels: channels,
		Pix:      make([]float64, width*height*channels),
	}
}

// NewGrayFrame wraps a single channel row-major buffer.
func NewGrayFrame(width, height int, pix []float64) *Frame {
	return &Frame{Width: width, Height: height, Channels: 1, Pix: pix}
}

// FrameFromImage converts img to a frame with raw 16-bit sample values.
// Grayscale images give one channel, everything else three (R, G, B); alpha
// is dropped.
func FrameFromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	switch img.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		f := NewFrame(width, height, 1)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				f.Pix[y*width+x] = float64(r)
			}
		}
		return f
	}

	f := NewFrame(width, height, 3)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := (y*width + x) * 3
			f.Pix[i] = float64(r)
			f.Pix[i+1] = float64(g)
			f.Pix[i+2] = float64(b)
		}
	}
	return f
}

// Crop returns the top-left width×height region of f. Sizes larger than the
// frame are reduced to the frame size.
func (f *Frame) Crop(width, height int) *Frame {
	if width > f.Width {
		width = f.Width
	}
	if height > f.Height {
		height = f.Height
	}
	if width == f.Width && height == f.Height {
		return f
	}

	out := NewFrame(width, height, f.Channels)
	rowLen := width * f.Channels
	for y := 0; y < height; y++ {
		src := y * f.Width * f.Channels
		copy(out.Pix[y*rowLen:(y+1)*rowLen], f.Pix[src:src+rowLen])
	}
	return out
}

// CropToCommon crops both frames to their common minimal width and height.
func CropToCommon(a, b *Frame) (*Frame, *Frame) {
	width := min(a.Width, b.Width)
	height := min(a.Height, b.Height)
	return a.Crop(width, height), b.Crop(width, height)
}

// Gray collapses the channels of f by unweighted average into a
// height×width matrix.
func (f *Frame) Gray() *mat.Dense {
	n := f.Width * f.Height
	data := make([]float64, n)
	if f.Channels == 1 {
		copy(data, f.Pix[:n])
	} else {
		channels := float64(f.Channels)
		for i := 0; i < n; i++ {
			data[i] = floats.Sum(f.Pix[i*f.Channels:(i+1)*f.Channels]) / channels
		}
	}
	if n == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(f.Height, f.Width, data)
}

// Preprocess converts both frames to grayscale and normalizes each one
// independently to [0, 1]. A constant image becomes all zeros.
func Preprocess(a, b *Frame) (*mat.Dense, *mat.Dense) {
	return normalizeIntensity(a.Gray()), normalizeIntensity(b.Gray())
}

// normalizeIntensity scales img in place with (I-min)/(max-min+eps).
func normalizeIntensity(img *mat.Dense) *mat.Dense {
	if img.IsEmpty() {
		return img
	}
	data := img.RawMatrix().Data
	lo := floats.Min(data)
	hi := floats.Max(data)
	floats.AddConst(-lo, data)
	floats.Scale(1/(hi-lo+epsilon), data)
	return img
}
