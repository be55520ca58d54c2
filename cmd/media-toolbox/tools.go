package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"media-toolbox/internal/catalog"
	"media-toolbox/internal/convert"
	"media-toolbox/internal/engine"
	"media-toolbox/internal/intake"
	"media-toolbox/internal/logging"
	"media-toolbox/internal/media"
	"media-toolbox/internal/mediatypes"
	"media-toolbox/internal/progress"
	"media-toolbox/internal/session"
)

// output is one produced file, or a note for a segment that produced none.
type output struct {
	result *convert.Result
	note   string
}

type work func(ctx context.Context, sess convert.Session, t *progress.Tracker) ([]output, error)

func single(res *convert.Result, err error) ([]output, error) {
	if err != nil {
		return nil, err
	}
	return []output{{result: res}}, nil
}

func newPDFOptimizeCmd(a *app) *cobra.Command {
	var quality string
	cmd := &cobra.Command{
		Use:   "pdf-optimize FILE",
		Short: "Reduce the size of a PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := mediatypes.ParseQuality(quality)
			if err != nil {
				return err
			}
			tool, inputs, err := a.selectInputs(catalog.PDFOptimizer, args)
			if err != nil {
				return err
			}
			req := convert.PDFRequest{Input: inputs[0], Quality: q}
			return a.run(cmd.Context(), tool, func(ctx context.Context, _ convert.Session, t *progress.Tracker) ([]output, error) {
				return single(convert.OptimizePDF(ctx, req, t))
			})
		},
	}
	cmd.Flags().StringVarP(&quality, "quality", "q", string(mediatypes.QualityMedium), "quality tier: low, medium or high")
	return cmd
}

func newAudioMergeCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "audio-merge FILE FILE...",
		Short: "Join audio files, in the order given, into one file",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := mediatypes.ParseAudioFormat(format)
			if err != nil {
				return err
			}
			tool, inputs, err := a.selectInputs(catalog.AudioMerge, args)
			if err != nil {
				return err
			}
			req := convert.MergeRequest{Inputs: inputs, Format: f}
			return a.run(cmd.Context(), tool, func(ctx context.Context, s convert.Session, t *progress.Tracker) ([]output, error) {
				return single(convert.Merge(ctx, s, req, t))
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(mediatypes.AudioMP3), "output format: mp3, wav, ogg or m4a")
	return cmd
}

func newAudioSplitCmd(a *app) *cobra.Command {
	var (
		format   string
		segments []string
	)
	cmd := &cobra.Command{
		Use:   "audio-split FILE",
		Short: "Cut an audio file into segments",
		Example: "  media-toolbox audio-split --segment 00:00-01:30 --segment 01:30-03:00 song.mp3\n" +
			"  media-toolbox audio-split -s 00:10:00-00:20:00 -f ogg podcast.wav",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := mediatypes.ParseAudioFormat(format)
			if err != nil {
				return err
			}
			segs, err := parseSegmentFlags(segments)
			if err != nil {
				return err
			}
			tool, inputs, err := a.selectInputs(catalog.AudioSplit, args)
			if err != nil {
				return err
			}
			req := convert.SplitRequest{Input: inputs[0], Segments: segs, Format: f}
			return a.run(cmd.Context(), tool, func(ctx context.Context, s convert.Session, t *progress.Tracker) ([]output, error) {
				outcomes, err := convert.Split(ctx, s, req, t)
				if err != nil {
					return nil, err
				}
				outputs := make([]output, len(outcomes))
				for i, o := range outcomes {
					if o.Skipped {
						outputs[i].note = fmt.Sprintf("Segment %d (%s-%s) skipped: %s", o.Index+1, o.Segment.Start, o.Segment.End, o.Reason)
						continue
					}
					outputs[i].result = o.Result
				}
				return outputs, nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(mediatypes.AudioMP3), "output format: mp3, wav, ogg or m4a")
	cmd.Flags().StringArrayVarP(&segments, "segment", "s", nil, "segment as START-END, e.g. 00:30-01:45 (repeatable)")
	return cmd
}

// parseSegmentFlags splits each START-END flag value. Timestamp validation is
// left to the split itself, which skips segments it cannot use.
func parseSegmentFlags(values []string) ([]convert.Segment, error) {
	if len(values) == 0 {
		return nil, convert.ErrNoSegments
	}
	segments := make([]convert.Segment, 0, len(values))
	for _, v := range values {
		start, end, ok := strings.Cut(v, "-")
		if !ok {
			return nil, fmt.Errorf("invalid segment %q: want START-END", v)
		}
		segments = append(segments, convert.Segment{
			Start: strings.TrimSpace(start),
			End:   strings.TrimSpace(end),
		})
	}
	return segments, nil
}

func newImageConvertCmd(a *app) *cobra.Command {
	var (
		format       string
		quality      int
		maxDimension int
		maxSizeMB    float64
	)
	cmd := &cobra.Command{
		Use:   "image-convert FILE",
		Short: "Convert an image to another format and shrink it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := mediatypes.ParseImageFormat(format)
			if err != nil {
				return err
			}
			if quality < 1 || quality > 100 {
				return fmt.Errorf("invalid quality %d: must be between 1 and 100", quality)
			}
			if maxDimension < 0 || maxSizeMB < 0 {
				return errors.New("size limits must not be negative")
			}
			if math.IsNaN(maxSizeMB) || math.IsInf(maxSizeMB, 0) {
				return fmt.Errorf("invalid max-size-mb %v", maxSizeMB)
			}
			tool, inputs, err := a.selectInputs(catalog.ImageConverter, args)
			if err != nil {
				return err
			}
			req := convert.ImageRequest{
				Input:            inputs[0],
				Format:           f,
				Quality:          quality,
				MaxWidthOrHeight: maxDimension,
				MaxSizeMB:        maxSizeMB,
			}
			return a.run(cmd.Context(), tool, func(ctx context.Context, _ convert.Session, t *progress.Tracker) ([]output, error) {
				return single(convert.ConvertImage(ctx, req, t))
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(mediatypes.ImageWebP), "output format: jpeg, png or webp")
	cmd.Flags().IntVarP(&quality, "quality", "q", media.DefaultQuality, "encoder quality, 1-100")
	cmd.Flags().IntVar(&maxDimension, "max-dimension", media.DefaultMaxWidthOrHeight, "longest side in pixels")
	cmd.Flags().Float64Var(&maxSizeMB, "max-size-mb", media.DefaultMaxSizeMB, "target output size in MB")
	return cmd
}

func newVideoConvertCmd(a *app) *cobra.Command {
	var format, quality string
	cmd := &cobra.Command{
		Use:   "video-convert FILE",
		Short: "Convert a video to another format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := mediatypes.ParseVideoFormat(format)
			if err != nil {
				return err
			}
			q, err := mediatypes.ParseQuality(quality)
			if err != nil {
				return err
			}
			tool, inputs, err := a.selectInputs(catalog.VideoConverter, args)
			if err != nil {
				return err
			}
			req := convert.VideoRequest{Input: inputs[0], Format: f, Quality: q}
			return a.run(cmd.Context(), tool, func(ctx context.Context, s convert.Session, t *progress.Tracker) ([]output, error) {
				return single(convert.ConvertVideo(ctx, s, req, t))
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(mediatypes.VideoMP4), "output format: mp4, webm, avi or mov")
	cmd.Flags().StringVarP(&quality, "quality", "q", string(mediatypes.QualityMedium), "quality tier: low, medium or high")
	return cmd
}

// selectInputs reads paths and applies the tool's intake rule. Rejected files
// are reported and skipped; too few accepted files is an error.
func (a *app) selectInputs(id catalog.ID, paths []string) (catalog.Tool, []intake.Upload, error) {
	tool, ok := a.catalog.Get(id)
	if !ok {
		return tool, nil, fmt.Errorf("unknown tool %s", id)
	}
	rule := tool.Rule()

	files := make([]intake.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := readFileCapped(p, rule.MaxBytes)
		if err != nil {
			return tool, nil, err
		}
		files = append(files, intake.Upload{Name: filepath.Base(p), Data: data})
	}

	accepted, rejected := intake.Select(files, rule)
	for _, r := range rejected {
		fmt.Fprintf(a.stderr, "Skipping %s\n", r.Error())
	}

	if len(accepted) < tool.MinInputs {
		if tool.MinInputs > 1 {
			return tool, nil, convert.ErrTooFewInputs
		}
		return tool, nil, convert.ErrNoInput
	}
	return tool, accepted, nil
}

// readFileCapped reads at most maxBytes+1 bytes of path, enough for intake to
// see that a file is over the limit without loading all of it.
func readFileCapped(path string, maxBytes int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := f.Close(); err != nil {
			logging.Debug("Failed to close %s: %v", path, err)
		}
	}()

	if maxBytes <= 0 {
		return io.ReadAll(f)
	}
	return io.ReadAll(io.LimitReader(f, maxBytes+1))
}

// run executes fn for tool with progress reporting and writes its outputs to
// the output directory.
func (a *app) run(ctx context.Context, tool catalog.Tool, fn work) error {
	var sess convert.Session
	if tool.UsesEngine {
		eng := a.newEngine(engine.FFmpegConfig{
			Binary:  a.config.FFmpegPath,
			WorkDir: filepath.Join(a.config.WorkDir, string(tool.ID)),
		})
		s := session.New(string(tool.ID), eng, session.WithPublisher(session.LogPublisher{}))
		defer func() {
			if err := s.Close(); err != nil {
				logging.Warn("Failed to close %s engine: %v", tool.ID, err)
			}
		}()
		sess = s
	}

	tracker := progress.NewTracker()
	stop := newReporter(a.stderr).watch(tracker)
	outputs, err := fn(ctx, sess, tracker)
	tracker.Close()
	stop()

	if err != nil {
		if err.Error() == "" {
			return errors.New(tool.Failure)
		}
		return err
	}

	if err := os.MkdirAll(a.outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, o := range outputs {
		if o.result == nil {
			fmt.Fprintln(a.stderr, o.note)
			continue
		}
		path := filepath.Join(a.outDir, o.result.Filename)
		if err := os.WriteFile(path, o.result.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintf(a.stdout, "%s\t%s\n", path, describe(o.result))
	}
	return nil
}

// describe summarizes a result's size against its input.
func describe(res *convert.Result) string {
	size := intake.FormatSize(res.Size())
	if res.OriginalSize <= 0 {
		return size
	}
	switch r := res.Reduction(); {
	case r > 0:
		return fmt.Sprintf("%s (%d%% smaller)", size, r)
	case r < 0:
		return fmt.Sprintf("%s (%d%% larger)", size, -r)
	default:
		return size
	}
}
