package pdfopt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"media-toolbox/internal/logging"
	"media-toolbox/internal/mediatypes"
)

// ErrEmpty is returned for empty input.
var ErrEmpty = errors.New("pdf: empty input")

var configOnce sync.Once

// Stage is a step of the optimization pipeline, reported with a fraction of
// the whole run.
type Stage string

// Pipeline stages.
const (
	StageRead     Stage = "read"
	StageAnalyze  Stage = "analyze"
	StagePages    Stage = "pages"
	StageWrite    Stage = "write"
	StageComplete Stage = "complete"
)

// Options controls an optimization run.
type Options struct {
	Quality mediatypes.Quality
	// OnProgress receives the overall fraction (0..1) and the current stage.
	OnProgress func(frac float64, stage Stage)
}

// Result describes an optimized document.
type Result struct {
	Data          []byte
	Pages         int
	OriginalSize  int64
	OptimizedSize int64
}

// PagesPerTick returns how many pages are walked between progress updates
// for a quality tier. Higher tiers report more often.
func PagesPerTick(q mediatypes.Quality) int {
	switch q {
	case mediatypes.QualityLow:
		return 100
	case mediatypes.QualityHigh:
		return 20
	default:
		return 50
	}
}

func newConfig() *model.Configuration {
	configOnce.Do(api.DisableConfigDir)

	conf := model.NewDefaultConfiguration()
	conf.Cmd = model.OPTIMIZE
	// Encrypted files with an empty user password still open; structural
	// quirks are tolerated the way viewers tolerate them.
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = true
	conf.WriteXRefStream = true
	return conf
}

func load(data []byte) (*model.Context, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	pdfCtx, err := api.ReadContext(bytes.NewReader(data), newConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if err := api.ValidateContext(pdfCtx); err != nil {
		return nil, fmt.Errorf("failed to validate PDF: %w", err)
	}
	if err := api.OptimizeContext(pdfCtx); err != nil {
		return nil, fmt.Errorf("failed to optimize PDF: %w", err)
	}
	return pdfCtx, nil
}

// Optimize rewrites data with shared resources deduplicated and objects
// packed into object streams. The page count is unchanged.
func Optimize(ctx context.Context, data []byte, opts Options) (*Result, error) {
	report := func(frac float64, stage Stage) {
		if opts.OnProgress != nil {
			opts.OnProgress(frac, stage)
		}
	}

	report(0.2, StageRead)
	pdfCtx, err := load(data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pages := pdfCtx.PageCount
	report(0.4, StageAnalyze)

	step := PagesPerTick(opts.Quality)
	for done := 0; done < pages; {
		done += step
		if done > pages {
			done = pages
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		report(0.4+0.4*float64(done)/float64(pages), StagePages)
	}

	report(0.8, StageWrite)
	var out bytes.Buffer
	if err := api.WriteContext(pdfCtx, &out); err != nil {
		return nil, fmt.Errorf("failed to write PDF: %w", err)
	}

	res := &Result{
		Data:          out.Bytes(),
		Pages:         pages,
		OriginalSize:  int64(len(data)),
		OptimizedSize: int64(out.Len()),
	}
	logging.Debug("pdf optimized: %d pages, %d -> %d bytes", pages, res.OriginalSize, res.OptimizedSize)

	report(1, StageComplete)
	return res, nil
}

// PageCount returns the number of pages in data.
func PageCount(data []byte) (int, error) {
	pdfCtx, err := load(data)
	if err != nil {
		return 0, err
	}
	return pdfCtx.PageCount, nil
}
