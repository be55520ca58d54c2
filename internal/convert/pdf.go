package convert

import (
	"context"

	"media-toolbox/internal/intake"
	"media-toolbox/internal/mediatypes"
	"media-toolbox/internal/pdfopt"
	"media-toolbox/internal/progress"
)

// PDFRequest optimizes Input at Quality.
type PDFRequest struct {
	Input   intake.Upload
	Quality mediatypes.Quality
}

var pdfStatus = map[pdfopt.Stage]string{
	pdfopt.StageRead:     "Reading PDF...",
	pdfopt.StageAnalyze:  "Analyzing PDF structure...",
	pdfopt.StagePages:    "Processing pages...",
	pdfopt.StageWrite:    "Saving optimized PDF...",
	pdfopt.StageComplete: StatusDone,
}

// OptimizePDF rewrites a PDF through the PDF library; no engine session is
// involved.
func OptimizePDF(ctx context.Context, req PDFRequest, t *progress.Tracker) (*Result, error) {
	if len(req.Input.Data) == 0 {
		return nil, ErrNoInput
	}

	t.Step(0, pdfStatus[pdfopt.StageRead])
	res, err := pdfopt.Optimize(ctx, req.Input.Data, pdfopt.Options{
		Quality: req.Quality,
		OnProgress: func(frac float64, stage pdfopt.Stage) {
			t.Step(frac*100, pdfStatus[stage])
		},
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Filename:     intake.OutputName(req.Input.Name, "optimized", "pdf"),
		ContentType:  mediatypes.GetMimeType(".pdf"),
		Data:         res.Data,
		OriginalSize: res.OriginalSize,
	}, nil
}
