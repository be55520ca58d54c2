package handlers

import (
	"fmt"
	"net/url"

	"media-toolbox/internal/catalog"
	"media-toolbox/internal/convert"
	"media-toolbox/internal/mediatypes"
)

// toolParams holds the validated form parameters of a start request. Only
// the fields of the requested tool are set.
type toolParams struct {
	AudioFormat mediatypes.AudioFormat
	VideoFormat mediatypes.VideoFormat
	ImageFormat mediatypes.ImageFormat
	Quality     mediatypes.Quality

	ImageQuality     int
	MaxWidthOrHeight int
	MaxSizeMB        float64

	Segments []convert.Segment
}

func valueOr(values url.Values, key, fallback string) string {
	if v := values.Get(key); v != "" {
		return v
	}
	return fallback
}

func parseParams(id catalog.ID, values url.Values) (toolParams, error) {
	var p toolParams
	var err error

	switch id {
	case catalog.PDFOptimizer:
		p.Quality, err = mediatypes.ParseQuality(values.Get("quality"))

	case catalog.AudioMerge:
		p.AudioFormat, err = mediatypes.ParseAudioFormat(valueOr(values, "format", string(mediatypes.AudioMP3)))

	case catalog.AudioSplit:
		p.AudioFormat, err = mediatypes.ParseAudioFormat(valueOr(values, "format", string(mediatypes.AudioMP3)))
		if err != nil {
			return p, err
		}
		p.Segments, err = parseSegments(values)
		if err == nil && len(p.Segments) == 0 {
			err = convert.ErrNoSegments
		}

	case catalog.ImageConverter:
		p.ImageFormat, err = mediatypes.ParseImageFormat(valueOr(values, "format", string(mediatypes.ImageWebP)))
		if err != nil {
			return p, err
		}
		if p.ImageQuality, err = parseOptionalInt(values, "quality"); err != nil {
			return p, err
		}
		if p.ImageQuality > 100 {
			return p, fmt.Errorf("invalid quality %d: must be at most 100", p.ImageQuality)
		}
		if p.MaxWidthOrHeight, err = parseOptionalInt(values, "maxWidthOrHeight"); err != nil {
			return p, err
		}
		p.MaxSizeMB, err = parseOptionalFloat(values, "maxSizeMB")

	case catalog.VideoConverter:
		p.VideoFormat, err = mediatypes.ParseVideoFormat(valueOr(values, "format", string(mediatypes.VideoMP4)))
		if err != nil {
			return p, err
		}
		p.Quality, err = mediatypes.ParseQuality(values.Get("quality"))
	}

	return p, err
}
