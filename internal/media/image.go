package media

import (
	"errors"
	"fmt"
	"image"
	"io"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // WebP format support

	"media-curator/internal/logging"
)

// MaxImagePixels is the default pixel budget for decoding. A 20MP image
// uses ~80MB in RGBA.
const MaxImagePixels = 20_000_000

// ErrResourceExhausted is returned when an image is too large to decode
// within the pixel budget.
var ErrResourceExhausted = errors.New("image exceeds the memory budget")

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// Pixels returns the total pixel count.
func (d ImageDimensions) Pixels() int {
	return d.Width * d.Height
}

// DecodeDimensions reads the image header without decoding pixel data.
func DecodeDimensions(r io.Reader) (ImageDimensions, error) {
	config, _, err := image.DecodeConfig(r)
	if err != nil {
		return ImageDimensions{}, err
	}
	return ImageDimensions{Width: config.Width, Height: config.Height}, nil
}

// CheckBudget returns ErrResourceExhausted when dims exceed maxPixels. A
// non-positive budget selects MaxImagePixels.
func CheckBudget(dims ImageDimensions, maxPixels int) error {
	if maxPixels <= 0 {
		maxPixels = MaxImagePixels
	}
	if dims.Pixels() > maxPixels {
		return fmt.Errorf("%dx%d (%d pixels, budget %d): %w",
			dims.Width, dims.Height, dims.Pixels(), maxPixels, ErrResourceExhausted)
	}
	return nil
}

// openFunc opens the image source anew for every pass.
type openFunc func() (io.ReadCloser, error)

// loadConstrained decodes an image with EXIF orientation applied, refusing
// anything above maxPixels before the pixel data is read.
func loadConstrained(name string, open openFunc, maxPixels int) (image.Image, error) {
	dims, err := withReader(open, DecodeDimensions)
	if err != nil {
		return nil, fmt.Errorf("read dimensions of %s: %w", name, err)
	}
	logging.Debug("Image %s dimensions: %dx%d (%d pixels)", name, dims.Width, dims.Height, dims.Pixels())

	if err := CheckBudget(dims, maxPixels); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	img, err := withReader(open, func(r io.Reader) (image.Image, error) {
		return imaging.Decode(r, imaging.AutoOrientation(true))
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

func withReader[T any](open openFunc, fn func(io.Reader) (T, error)) (T, error) {
	r, err := open()
	if err != nil {
		var zero T
		return zero, err
	}
	defer func() {
		if err := r.Close(); err != nil {
			logging.Warn("failed to close image source: %v", err)
		}
	}()
	return fn(r)
}
