package convert

import (
	"context"
	"fmt"

	"media-toolbox/internal/intake"
	"media-toolbox/internal/mediatypes"
	"media-toolbox/internal/progress"
)

const manifestName = "concat.txt"

// MergeRequest joins Inputs, in order, into one file of Format.
type MergeRequest struct {
	Inputs []intake.Upload
	Format mediatypes.AudioFormat
}

// Merge concatenates the inputs with the engine's concat demuxer.
//
// Progress: staging 0-30, manifest 40, engine 40-90, read 90, done 100.
func Merge(ctx context.Context, s Session, req MergeRequest, t *progress.Tracker) (*Result, error) {
	if len(req.Inputs) < 2 {
		return nil, ErrTooFewInputs
	}
	codec, err := AudioCodecArgs(req.Format)
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
	names := make([]string, len(req.Inputs))
	for i, in := range req.Inputs {
		names[i] = indexedInputName(i, in)
		if err := st.write(names[i], in.Data); err != nil {
			return nil, fmt.Errorf("staging %s: %w", in.Name, err)
		}
		t.Set(float64(i+1) / float64(len(req.Inputs)) * 30)
	}

	if err := st.write(manifestName, concatManifest(names)); err != nil {
		return nil, fmt.Errorf("staging manifest: %w", err)
	}
	t.Step(40, "Merging audio...")

	output := st.track("output." + string(req.Format))
	args := []string{"-f", "concat", "-safe", "0", "-i", manifestName}
	args = append(args, codec...)
	args = append(args, output)

	if err := s.Exec(ctx, args, t.Relay(progress.Span{From: 40, To: 90})); err != nil {
		return nil, err
	}

	t.Step(90, StatusFinishing)
	data, err := s.Read(output)
	if err != nil {
		return nil, fmt.Errorf("reading merged output: %w", err)
	}

	t.Step(100, StatusDone)
	return &Result{
		Filename:     "merged_audio." + string(req.Format),
		ContentType:  req.Format.MimeType(),
		Data:         data,
		OriginalSize: totalSize(req.Inputs),
	}, nil
}
