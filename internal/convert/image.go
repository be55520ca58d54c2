package convert

import (
	"context"

	"media-toolbox/internal/intake"
	"media-toolbox/internal/media"
	"media-toolbox/internal/mediatypes"
	"media-toolbox/internal/progress"
)

// ImageRequest converts Input to Format.
type ImageRequest struct {
	Input            intake.Upload
	Format           mediatypes.ImageFormat
	Quality          int
	MaxWidthOrHeight int
	MaxSizeMB        float64
}

// ConvertImage re-encodes one image through the image library; no engine
// session is involved.
//
// Progress: 20 start, compression 20-80, 90 wrap, 100 done.
func ConvertImage(ctx context.Context, req ImageRequest, t *progress.Tracker) (*Result, error) {
	if len(req.Input.Data) == 0 {
		return nil, ErrNoInput
	}

	maxSize := req.MaxSizeMB
	if maxSize == 0 {
		maxSize = media.DefaultMaxSizeMB
	}

	t.Step(20, "Converting image...")
	out, err := media.Compress(ctx, req.Input.Data, media.CompressOptions{
		Format:           req.Format,
		Quality:          req.Quality,
		MaxWidthOrHeight: req.MaxWidthOrHeight,
		MaxSizeMB:        maxSize,
		OnProgress:       t.Relay(progress.Span{From: 20, To: 80}),
	})
	if err != nil {
		return nil, err
	}

	t.Step(90, StatusFinishing)
	format := req.Format
	if format == "" {
		format = mediatypes.ImageWebP
	}
	res := &Result{
		Filename:     intake.OutputName(req.Input.Name, "converted", string(format)),
		ContentType:  format.MimeType(),
		Data:         out.Data,
		OriginalSize: req.Input.Size(),
	}
	t.Step(100, StatusDone)
	return res, nil
}
