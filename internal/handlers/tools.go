package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"media-toolbox/internal/catalog"
	"media-toolbox/internal/convert"
	"media-toolbox/internal/intake"
	"media-toolbox/internal/logging"
	"media-toolbox/internal/metrics"
	"media-toolbox/internal/operations"
	"media-toolbox/internal/progress"
)

const (
	// maxParts bounds the number of multipart parts read from one upload.
	maxParts = 64
	// maxFieldBytes bounds a single non-file form value.
	maxFieldBytes = 64 * 1024
)

var errEngineUnavailable = errors.New("no engine is configured for this tool")

// startResponse is the body of a refused start.
type startResponse struct {
	Error    string             `json:"error"`
	Rejected []intake.Rejection `json:"rejected,omitempty"`
}

// uploadForm is a parsed multipart upload.
type uploadForm struct {
	files  []intake.Upload
	values url.Values
}

// StartTool accepts an upload for one tool and starts the operation in the
// background. It answers 202 with the operation, 400 when the inputs or
// parameters cannot be used, 409 while the tool is busy, and 503 while memory
// is low or the server is shutting down.
func (h *Handlers) StartTool(w http.ResponseWriter, r *http.Request) {
	if h.shuttingDown.Load() {
		writeJSONError(w, operations.ErrClosed.Error(), http.StatusServiceUnavailable)
		return
	}

	id := catalog.ID(mux.Vars(r)["tool"])
	tool, ok := h.catalog.Get(id)
	if !ok {
		writeJSONError(w, "Tool not found", http.StatusNotFound)
		return
	}
	runner, ok := h.registry.Runner(id)
	if !ok {
		writeJSONError(w, "Tool not found", http.StatusNotFound)
		return
	}

	if h.memory != nil {
		if err := h.memory.Admit(r.ContentLength); err != nil {
			w.Header().Set("Retry-After", "30")
			writeJSONError(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	rule := tool.Rule()
	form, err := readUpload(r, rule.MaxBytes)
	if err != nil {
		writeJSONError(w, "Invalid upload: "+err.Error(), http.StatusBadRequest)
		return
	}

	accepted, rejected := intake.Select(form.files, rule)
	recordRejections(id, rejected)
	for _, rej := range rejected {
		logging.Warn("%s: rejected %s", id, rej.Error())
	}

	fn, err := h.buildOperation(tool, accepted, form.values)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, errEngineUnavailable) {
			code = http.StatusServiceUnavailable
		}
		metrics.OperationsTotal.WithLabelValues(string(id), "rejected").Inc()
		writeJSONCode(w, startResponse{Error: err.Error(), Rejected: rejected}, code)
		return
	}

	var inputBytes int64
	for _, in := range accepted {
		inputBytes += in.Size()
	}

	job, err := runner.Start(inputBytes, rejected, fn)
	if err != nil {
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, operations.ErrBusy):
			code = http.StatusConflict
		case errors.Is(err, operations.ErrClosed):
			code = http.StatusServiceUnavailable
		}
		writeJSONCode(w, startResponse{Error: err.Error(), Rejected: rejected}, code)
		return
	}

	w.Header().Set("Location", "/api/operations/"+job.ID())
	writeJSONCode(w, job.Snapshot(), http.StatusAccepted)
}

func recordRejections(id catalog.ID, rejected []intake.Rejection) {
	for _, rej := range rejected {
		reason := "type"
		if strings.HasPrefix(rej.Reason, "file size") {
			reason = "size"
		}
		metrics.UploadRejectionsTotal.WithLabelValues(string(id), reason).Inc()
	}
}

// readUpload streams the multipart body. File parts are read up to one byte
// past maxBytes; the rest of an oversized file is discarded so intake still
// sees it as too large without holding it in memory.
func readUpload(r *http.Request, maxBytes int64) (*uploadForm, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	form := &uploadForm{values: url.Values{}}
	for parts := 0; ; parts++ {
		part, err := mr.NextPart()
		if err == io.EOF {
			return form, nil
		}
		if err != nil {
			return nil, err
		}
		if parts >= maxParts {
			_ = part.Close()
			return nil, fmt.Errorf("more than %d form parts", maxParts)
		}

		name := part.FormName()
		switch {
		case part.FileName() != "":
			if name != "file" && name != "files" {
				break
			}
			data, err := readCapped(part, maxBytes)
			if err != nil {
				_ = part.Close()
				return nil, fmt.Errorf("reading %s: %w", part.FileName(), err)
			}
			form.files = append(form.files, intake.Upload{
				Name:        part.FileName(),
				Data:        data,
				ContentType: part.Header.Get("Content-Type"),
			})
		case name != "":
			v, err := io.ReadAll(io.LimitReader(part, maxFieldBytes+1))
			if err != nil {
				_ = part.Close()
				return nil, err
			}
			if len(v) > maxFieldBytes {
				_ = part.Close()
				return nil, fmt.Errorf("field %s is too large", name)
			}
			form.values.Add(name, string(v))
		}
		_ = part.Close()
	}
}

// readCapped reads at most maxBytes+1 bytes and drains the rest. A
// non-positive maxBytes reads everything.
func readCapped(rd io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(rd)
	}
	data, err := io.ReadAll(io.LimitReader(rd, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(io.Discard, rd); err != nil {
		return nil, err
	}
	return data, nil
}

// buildOperation validates the parameters for tool and returns the work to
// run. Nothing is started when it returns an error.
func (h *Handlers) buildOperation(tool catalog.Tool, inputs []intake.Upload, values url.Values) (operations.Func, error) {
	if len(inputs) < tool.MinInputs {
		if tool.MinInputs > 1 {
			return nil, convert.ErrTooFewInputs
		}
		return nil, convert.ErrNoInput
	}

	params, err := parseParams(tool.ID, values)
	if err != nil {
		return nil, err
	}

	var sess convert.Session
	if tool.UsesEngine {
		s, ok := h.sessions[tool.ID]
		if !ok || s == nil {
			return nil, errEngineUnavailable
		}
		sess = s
	}

	switch tool.ID {
	case catalog.PDFOptimizer:
		req := convert.PDFRequest{Input: inputs[0], Quality: params.Quality}
		return single(func(ctx context.Context, t *progress.Tracker) (*convert.Result, error) {
			return convert.OptimizePDF(ctx, req, t)
		}), nil

	case catalog.AudioMerge:
		req := convert.MergeRequest{Inputs: inputs, Format: params.AudioFormat}
		return single(func(ctx context.Context, t *progress.Tracker) (*convert.Result, error) {
			return convert.Merge(ctx, sess, req, t)
		}), nil

	case catalog.AudioSplit:
		req := convert.SplitRequest{Input: inputs[0], Segments: params.Segments, Format: params.AudioFormat}
		return func(ctx context.Context, t *progress.Tracker) ([]operations.Output, error) {
			outcomes, err := convert.Split(ctx, sess, req, t)
			if err != nil {
				return nil, err
			}
			return splitOutputs(outcomes), nil
		}, nil

	case catalog.ImageConverter:
		req := convert.ImageRequest{
			Input:            inputs[0],
			Format:           params.ImageFormat,
			Quality:          params.ImageQuality,
			MaxWidthOrHeight: params.MaxWidthOrHeight,
			MaxSizeMB:        params.MaxSizeMB,
		}
		return single(func(ctx context.Context, t *progress.Tracker) (*convert.Result, error) {
			return convert.ConvertImage(ctx, req, t)
		}), nil

	case catalog.VideoConverter:
		req := convert.VideoRequest{Input: inputs[0], Format: params.VideoFormat, Quality: params.Quality}
		return single(func(ctx context.Context, t *progress.Tracker) (*convert.Result, error) {
			return convert.ConvertVideo(ctx, sess, req, t)
		}), nil
	}

	return nil, fmt.Errorf("tool %s has no operation", tool.ID)
}

func single(fn func(ctx context.Context, t *progress.Tracker) (*convert.Result, error)) operations.Func {
	return func(ctx context.Context, t *progress.Tracker) ([]operations.Output, error) {
		res, err := fn(ctx, t)
		if err != nil {
			return nil, err
		}
		return []operations.Output{{Result: res}}, nil
	}
}

func splitOutputs(outcomes []convert.SegmentOutcome) []operations.Output {
	outputs := make([]operations.Output, len(outcomes))
	for i, o := range outcomes {
		if o.Skipped {
			outputs[i] = operations.Output{
				Skipped: true,
				Note:    fmt.Sprintf("Segment %d (%s-%s): %s", o.Index+1, o.Segment.Start, o.Segment.End, o.Reason),
			}
			continue
		}
		outputs[i] = operations.Output{Result: o.Result}
	}
	return outputs
}

// parseSegments reads segments from a JSON "segments" field or from paired
// repeated "start" and "end" fields.
func parseSegments(values url.Values) ([]convert.Segment, error) {
	if raw := values.Get("segments"); raw != "" {
		var segments []convert.Segment
		if err := json.Unmarshal([]byte(raw), &segments); err != nil {
			return nil, fmt.Errorf("invalid segments: %w", err)
		}
		return segments, nil
	}

	starts, ends := values["start"], values["end"]
	if len(starts) != len(ends) {
		return nil, fmt.Errorf("every segment needs a start and an end")
	}
	var segments []convert.Segment
	for i := range starts {
		if strings.TrimSpace(starts[i]) == "" && strings.TrimSpace(ends[i]) == "" {
			continue
		}
		segments = append(segments, convert.Segment{Start: starts[i], End: ends[i]})
	}
	return segments, nil
}

func parseOptionalInt(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}

func parseOptionalFloat(values url.Values, key string) (float64, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, nil
}
