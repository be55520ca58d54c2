package convert

import (
	"context"
	"fmt"

	"media-toolbox/internal/intake"
	"media-toolbox/internal/mediatypes"
	"media-toolbox/internal/progress"
)

// VideoRequest transcodes Input to Format at Quality.
type VideoRequest struct {
	Input   intake.Upload
	Format  mediatypes.VideoFormat
	Quality mediatypes.Quality
}

// ConvertVideo transcodes one video.
//
// Progress: staging 20, engine 20-90, read 90, done 100.
func ConvertVideo(ctx context.Context, s Session, req VideoRequest, t *progress.Tracker) (*Result, error) {
	if len(req.Input.Data) == 0 {
		return nil, ErrNoInput
	}
	codec, err := VideoCodecArgs(req.Format)
	if err != nil {
		return nil, err
	}
	quality, err := VideoQualityArgs(req.Quality)
	if err != nil {
		return nil, err
	}

	t.Step(0, StatusLoading)
	if _, err := s.EnsureLoaded(ctx); err != nil {
		return nil, err
	}

	st := newStaging(s)
	defer st.cleanup()

	t.SetStatus(StatusPreparing)
	input := "input." + inputExt(req.Input)
	if err := st.write(input, req.Input.Data); err != nil {
		return nil, fmt.Errorf("staging %s: %w", req.Input.Name, err)
	}
	t.Step(20, "Converting video...")

	output := st.track("output." + string(req.Format))
	args := []string{"-i", input}
	args = append(args, codec...)
	args = append(args, quality...)
	args = append(args, output)

	if err := s.Exec(ctx, args, t.Relay(progress.Span{From: 20, To: 90})); err != nil {
		return nil, err
	}

	t.Step(90, StatusFinishing)
	data, err := s.Read(output)
	if err != nil {
		return nil, fmt.Errorf("reading converted output: %w", err)
	}

	t.Step(100, StatusDone)
	return &Result{
		Filename:     intake.OutputName(req.Input.Name, "converted", string(req.Format)),
		ContentType:  req.Format.MimeType(),
		Data:         data,
		OriginalSize: req.Input.Size(),
	}, nil
}
