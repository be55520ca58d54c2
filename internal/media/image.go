package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	"media-toolbox/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // BMP format support
	_ "golang.org/x/image/webp" // WebP format support
)

const (
	// MaxImagePixels is the maximum total pixels (width * height) kept after
	// decoding. Larger images are downscaled before any other processing.
	MaxImagePixels = 40_000_000

	// MaxDecodePixels is the largest image that is decoded at all. The header
	// is checked first, so a small file declaring huge dimensions is refused
	// before any pixel memory is allocated.
	MaxDecodePixels = 2 * MaxImagePixels
)

var (
	// ErrUnsupportedImage is returned when no registered decoder recognizes the data.
	ErrUnsupportedImage = errors.New("unsupported image format")
	// ErrImageTooLarge is returned for images above MaxDecodePixels.
	ErrImageTooLarge = errors.New("image dimensions are too large")
)

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions returns image dimensions without fully decoding the image
func GetImageDimensions(data []byte) (*ImageDimensions, string, error) {
	config, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", ErrUnsupportedImage
		}
		return nil, "", err
	}
	return &ImageDimensions{Width: config.Width, Height: config.Height}, format, nil
}

// Decode decodes data with EXIF auto-orientation, downscaling images above
// maxPixels to bound memory use. A maxPixels of zero uses MaxImagePixels.
func Decode(data []byte, maxPixels int) (image.Image, error) {
	if maxPixels <= 0 {
		maxPixels = MaxImagePixels
	}

	dims, format, err := GetImageDimensions(data)
	if err != nil {
		return nil, err
	}
	if dims.Width <= 0 || dims.Height <= 0 {
		return nil, fmt.Errorf("invalid %s dimensions %dx%d", format, dims.Width, dims.Height)
	}
	if int64(dims.Width)*int64(dims.Height) > MaxDecodePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d megapixels", ErrImageTooLarge, dims.Width, dims.Height, MaxDecodePixels/1_000_000)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image: %w", format, err)
	}

	pixels := dims.Width * dims.Height
	if pixels <= maxPixels {
		return img, nil
	}

	scale := float64(maxPixels) / float64(pixels)
	b := img.Bounds()
	targetWidth := int(float64(b.Dx()) * math.Sqrt(scale))
	targetHeight := int(float64(b.Dy()) * math.Sqrt(scale))
	logging.Info("Constraining large image from %dx%d to %dx%d", b.Dx(), b.Dy(), targetWidth, targetHeight)
	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}
