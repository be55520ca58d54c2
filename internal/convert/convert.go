package convert

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"media-toolbox/internal/engine"
	"media-toolbox/internal/intake"
)

// Status lines shown while an operation runs.
const (
	StatusLoading   = "Loading engine..."
	StatusPreparing = "Preparing files..."
	StatusFinishing = "Finalizing..."
	StatusDone      = "Done!"
)

var (
	// ErrTooFewInputs is returned when a tool needs more inputs than given.
	ErrTooFewInputs = errors.New("select at least 2 files")
	// ErrNoInput is returned when a tool is started without a file.
	ErrNoInput = errors.New("select a file first")
	// ErrNoSegments is returned when a split has no segments.
	ErrNoSegments = errors.New("add at least one segment")
)

// Session is the engine session surface the sequencers need. It is
// satisfied by *session.Session.
type Session interface {
	EnsureLoaded(ctx context.Context) (engine.Engine, error)
	Write(name string, data []byte) error
	Exec(ctx context.Context, args []string, onProgress func(float64)) error
	Read(name string) ([]byte, error)
	Remove(name string)
}

// Result is one produced file.
type Result struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
	// OriginalSize is the combined size of the inputs.
	OriginalSize int64 `json:"originalSize"`
}

// Size returns the result size in bytes.
func (r *Result) Size() int64 { return int64(len(r.Data)) }

// Reduction returns the size reduction relative to the input as a whole
// percentage. It is negative when the output grew.
func (r *Result) Reduction() int {
	if r.OriginalSize <= 0 {
		return 0
	}
	return int((1 - float64(r.Size())/float64(r.OriginalSize)) * 100)
}

// staging records every name placed in the engine's filesystem so that all
// of them are removed when the operation ends, whatever the outcome.
type staging struct {
	s     Session
	names []string
}

func newStaging(s Session) *staging {
	return &staging{s: s}
}

// track registers name for cleanup and returns it.
func (st *staging) track(name string) string {
	st.names = append(st.names, name)
	return name
}

func (st *staging) write(name string, data []byte) error {
	return st.s.Write(st.track(name), data)
}

func (st *staging) cleanup() {
	for _, name := range st.names {
		st.s.Remove(name)
	}
	st.names = nil
}

// inputExt returns the extension used to stage an upload. Engines probe the
// content, so anything unusual falls back to a neutral extension.
func inputExt(u intake.Upload) string {
	ext := u.Ext()
	if ext == "" || len(ext) > 8 {
		return "bin"
	}
	for _, r := range ext {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return "bin"
		}
	}
	return ext
}

func indexedInputName(i int, u intake.Upload) string {
	return "input" + strconv.Itoa(i) + "." + inputExt(u)
}

func totalSize(inputs []intake.Upload) int64 {
	var n int64
	for _, in := range inputs {
		n += in.Size()
	}
	return n
}

// concatManifest lists staged inputs for the concat demuxer.
func concatManifest(names []string) []byte {
	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = "file '" + name + "'"
	}
	return []byte(strings.Join(lines, "\n"))
}
