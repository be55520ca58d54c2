package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotExist is returned by ReadFile and DeleteFile when the named file is
// not present in the engine's filesystem.
var ErrNotExist = errors.New("engine: file does not exist")

// ErrInvalidName is returned when a file name would escape the engine's
// filesystem or is otherwise unusable.
var ErrInvalidName = errors.New("engine: invalid file name")

// Engine is the transcoding capability a session drives. File names are flat
// and relative to the engine's private filesystem; argv entries refer to
// those names directly.
type Engine interface {
	// Load prepares the engine for use. It is called at most once per
	// successful lifetime by the session manager.
	Load(ctx context.Context) error
	WriteFile(name string, data []byte) error
	// Exec runs one engine invocation to completion.
	Exec(ctx context.Context, args []string) error
	ReadFile(name string) ([]byte, error)
	DeleteFile(name string) error
	// OnProgress registers the observer for fractional progress (0..1) of
	// the running Exec call.
	OnProgress(fn func(fraction float64))
	// OnLog registers the observer for engine log lines.
	OnLog(fn func(line string))
	// Close releases the engine's filesystem and any running processes.
	Close() error
}

// LoadError reports a failed engine initialization. Stage names the step
// that failed in words suitable for a status line.
type LoadError struct {
	Stage string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("engine load failed (%s): %v", e.Stage, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// ExecError reports a failed engine invocation.
type ExecError struct {
	Args     []string
	ExitCode int
	// Tail holds the last log lines the engine emitted before failing.
	Tail []string
	Err  error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("engine exited with code %d", e.ExitCode)
	if len(e.Tail) > 0 {
		msg += ": " + e.Tail[len(e.Tail)-1]
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// Detail returns the captured log tail as a single string.
func (e *ExecError) Detail() string {
	return strings.Join(e.Tail, "\n")
}

// ValidateName rejects names that are empty, contain path separators, or
// refer to the current or parent directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
