package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"

	_ "image/gif"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var (
	ErrUnsupportedFormat = errors.New("imaging: unsupported or corrupt image")
	ErrResizeFailure     = errors.New("imaging: resize failed")
	ErrEncodingFailure   = errors.New("imaging: jpeg encoding failed")
)

const (
	// DefaultQuality is the JPEG quality used when Options.Quality is unset.
	DefaultQuality = 85
	// PreviewMaxDimension caps uploaded preview sources before they are stored.
	PreviewMaxDimension = 1024
)

// Options controls normalization. MaxDimension <= 0 disables resizing;
// Quality <= 0 uses DefaultQuality.
type Options struct {
	MaxDimension int
	Quality      int
}

// Normalize decodes an arbitrary raster image, proportionally downscales it so
// neither dimension exceeds MaxDimension (upscaling never happens), flattens
// any transparency onto an opaque white canvas, and re-encodes as JPEG. The
// output is deterministic for a fixed input and options.
func Normalize(data []byte, opts Options) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: degenerate dimensions %dx%d", ErrResizeFailure, width, height)
	}

	targetW, targetH := fitWithin(width, height, opts.MaxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, xdraw.Src)
	if targetW == width && targetH == height {
		xdraw.Draw(dst, dst.Bounds(), src, bounds.Min, xdraw.Over)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	}

	quality := opts.Quality
	if quality <= 0 {
		quality = DefaultQuality
	}
	if quality > 100 {
		quality = 100
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingFailure, err)
	}
	return buf.Bytes(), nil
}

// fitWithin computes the proportional target size. The long edge lands exactly
// on max, the short edge rounds, and images already within bounds are kept.
func fitWithin(width, height, max int) (int, int) {
	if max <= 0 || (width <= max && height <= max) {
		return width, height
	}
	if width >= height {
		return max, atLeastOne(math.Round(float64(height) * float64(max) / float64(width)))
	}
	return atLeastOne(math.Round(float64(width) * float64(max) / float64(height))), max
}

func atLeastOne(v float64) int {
	if v < 1 {
		return 1
	}
	return int(v)
}
