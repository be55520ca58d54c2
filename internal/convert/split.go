package convert

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"media-toolbox/internal/intake"
	"media-toolbox/internal/mediatypes"
	"media-toolbox/internal/progress"
)

// Segment is a user-entered time range, "MM:SS" or "HH:MM:SS".
type Segment struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// SplitRequest cuts Input into Segments, each encoded as Format.
type SplitRequest struct {
	Input    intake.Upload
	Segments []Segment
	Format   mediatypes.AudioFormat
}

// SegmentOutcome is the result for one requested segment. Skipped segments
// carry a reason and no result.
type SegmentOutcome struct {
	Index   int
	Segment Segment
	Result  *Result
	Skipped bool
	Reason  string
}

// Split produces one output per segment. A segment whose end is not after
// its start, or whose times cannot be parsed, is skipped without an engine
// call.
//
// Progress: staging 20, then segment i of n spans 20+70*i/n to 20+70*(i+1)/n.
func Split(ctx context.Context, s Session, req SplitRequest, t *progress.Tracker) ([]SegmentOutcome, error) {
	if len(req.Input.Data) == 0 {
		return nil, ErrNoInput
	}
	if len(req.Segments) == 0 {
		return nil, ErrNoSegments
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
	input := "input." + inputExt(req.Input)
	if err := st.write(input, req.Input.Data); err != nil {
		return nil, fmt.Errorf("staging %s: %w", req.Input.Name, err)
	}
	t.Set(20)

	all := progress.Span{From: 20, To: 90}
	n := len(req.Segments)
	outcomes := make([]SegmentOutcome, 0, n)

	for i, seg := range req.Segments {
		span := all.Part(i, n)
		outcome := SegmentOutcome{Index: i, Segment: seg}

		start, errStart := ParseTimestamp(seg.Start)
		end, errEnd := ParseTimestamp(seg.End)
		switch {
		case errStart != nil || errEnd != nil:
			outcome.Skipped = true
			outcome.Reason = "invalid time"
		case end-start <= 0:
			outcome.Skipped = true
			outcome.Reason = "end must be after start"
		}
		if outcome.Skipped {
			outcomes = append(outcomes, outcome)
			t.Set(span.To)
			continue
		}

		t.SetStatus(fmt.Sprintf("Processing segment %d/%d...", i+1, n))
		output := "output_" + strconv.Itoa(i) + "." + string(req.Format)
		data, err := splitSegment(ctx, s, input, output, start, end-start, codec, t.Relay(span))
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i+1, err)
		}

		outcome.Result = &Result{
			Filename:     intake.OutputName(req.Input.Name, "segment_"+strconv.Itoa(i+1), string(req.Format)),
			ContentType:  req.Format.MimeType(),
			Data:         data,
			OriginalSize: req.Input.Size(),
		}
		outcomes = append(outcomes, outcome)
		t.Set(span.To)
	}

	t.Step(100, StatusDone)
	return outcomes, nil
}

// splitSegment runs one cut and always removes its output.
func splitSegment(ctx context.Context, s Session, input, output string, start, duration float64, codec []string, onProgress func(float64)) ([]byte, error) {
	defer s.Remove(output)

	args := []string{"-i", input, "-ss", formatSeconds(start), "-t", formatSeconds(duration)}
	args = append(args, codec...)
	args = append(args, output)

	if err := s.Exec(ctx, args, onProgress); err != nil {
		return nil, err
	}
	return s.Read(output)
}

// ParseTimestamp parses "MM:SS" or "HH:MM:SS" into seconds. Fields may be
// fractional.
func ParseTimestamp(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q: want MM:SS or HH:MM:SS", s)
	}
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		total = total*60 + v
	}
	return total, nil
}

// FormatTimestamp renders seconds as "MM:SS"; minutes are not capped at 59.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(math.Floor(seconds))
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
