package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"math"

	"github.com/disintegration/imaging"

	"media-toolbox/internal/logging"
	"media-toolbox/internal/mediatypes"
)

// Defaults for CompressOptions.
const (
	DefaultQuality          = 80
	DefaultMaxWidthOrHeight = 1920
	DefaultMaxSizeMB        = 10
	DefaultMaxIterations    = 10

	MinQuality = 10
	MaxQuality = 100
)

// CompressOptions controls Compress.
type CompressOptions struct {
	Format mediatypes.ImageFormat
	// Quality is the starting encoder quality, 10-100. Ignored for PNG.
	Quality int
	// MaxWidthOrHeight bounds the longer side; the aspect ratio is kept.
	MaxWidthOrHeight int
	// MaxSizeMB is the output size target. Zero disables the target.
	MaxSizeMB float64
	// MaxIterations bounds the encode attempts made to reach MaxSizeMB.
	MaxIterations int
	// OnProgress receives the fraction of the attempt budget used so far.
	OnProgress func(frac float64)
}

func (o CompressOptions) withDefaults() CompressOptions {
	if o.Format == "" {
		o.Format = mediatypes.ImageWebP
	}
	if o.Quality == 0 {
		o.Quality = DefaultQuality
	}
	o.Quality = clampInt(o.Quality, MinQuality, MaxQuality)
	if o.MaxWidthOrHeight <= 0 {
		o.MaxWidthOrHeight = DefaultMaxWidthOrHeight
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}

// Compressed is the output of Compress.
type Compressed struct {
	Data       []byte
	Width      int
	Height     int
	Quality    int
	Iterations int
}

// Compress decodes data, fits it within MaxWidthOrHeight and encodes it as
// Format. While the output exceeds MaxSizeMB it retries with lower quality
// and smaller dimensions, up to MaxIterations attempts; the last attempt is
// returned even if it is still too large.
func Compress(ctx context.Context, data []byte, opts CompressOptions) (*Compressed, error) {
	opts = opts.withDefaults()
	report := func(frac float64) {
		if opts.OnProgress != nil {
			opts.OnProgress(frac)
		}
	}

	img, err := Decode(data, 0)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if b.Dx() > opts.MaxWidthOrHeight || b.Dy() > opts.MaxWidthOrHeight {
		img = imaging.Fit(img, opts.MaxWidthOrHeight, opts.MaxWidthOrHeight, imaging.Lanczos)
	}

	maxBytes := int(opts.MaxSizeMB * 1024 * 1024)
	quality := opts.Quality

	for iter := 1; ; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		out, err := Encode(img, opts.Format, quality)
		if err != nil {
			return nil, err
		}

		done := maxBytes <= 0 || len(out) <= maxBytes || iter >= opts.MaxIterations
		if done {
			report(1)
			b := img.Bounds()
			return &Compressed{
				Data:       out,
				Width:      b.Dx(),
				Height:     b.Dy(),
				Quality:    quality,
				Iterations: iter,
			}, nil
		}
		report(float64(iter) / float64(opts.MaxIterations))

		logging.Debug("image attempt %d: %d bytes over %d byte target at quality %d", iter, len(out), maxBytes, quality)

		if opts.Format != mediatypes.ImagePNG && quality > MinQuality {
			quality = clampInt(quality-10, MinQuality, MaxQuality)
		}
		// Encoded size scales roughly with pixel count.
		scale := math.Sqrt(float64(maxBytes)/float64(len(out))) * 0.95
		scale = math.Max(0.5, math.Min(0.95, scale))
		b := img.Bounds()
		w := int(float64(b.Dx()) * scale)
		h := int(float64(b.Dy()) * scale)
		if w < 1 || h < 1 {
			report(1)
			return &Compressed{Data: out, Width: b.Dx(), Height: b.Dy(), Quality: quality, Iterations: iter}, nil
		}
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}
}

// Encode encodes img as format. Quality applies to JPEG and WebP.
func Encode(img image.Image, format mediatypes.ImageFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case mediatypes.ImageJPEG:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	case mediatypes.ImagePNG:
		if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	case mediatypes.ImageWebP:
		return encodeWebP(img, quality)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return buf.Bytes(), nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
