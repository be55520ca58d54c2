// Package enginetest provides an in-memory engine that records every call,
// for testing code that drives an engine.Engine.
package enginetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"media-toolbox/internal/engine"
)

// Fake is an in-memory engine.Engine. By default Exec writes a small payload
// to the file named by its last argument and reports progress 0.5 then 1.
type Fake struct {
	// LoadFunc, when set, runs inside Load.
	LoadFunc func(ctx context.Context) error
	// ExecFunc, when set, replaces the default Exec behavior. It may call
	// Put to produce outputs.
	ExecFunc func(ctx context.Context, args []string) error

	mu         sync.Mutex
	files      map[string][]byte
	loads      int
	writes     []string
	execs      [][]string
	reads      []string
	deletes    []string
	closed     bool
	onProgress func(float64)
	onLog      func(string)
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{files: make(map[string][]byte)}
}

var _ engine.Engine = (*Fake)(nil)

// Load implements engine.Engine.
func (f *Fake) Load(ctx context.Context) error {
	f.mu.Lock()
	f.loads++
	fn := f.LoadFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return nil
}

// WriteFile implements engine.Engine.
func (f *Fake) WriteFile(name string, data []byte) error {
	if err := engine.ValidateName(name); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, name)
	f.files[name] = append([]byte(nil), data...)
	return nil
}

// Exec implements engine.Engine.
func (f *Fake) Exec(ctx context.Context, args []string) error {
	f.mu.Lock()
	f.execs = append(f.execs, append([]string(nil), args...))
	fn := f.ExecFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, args)
	}
	if len(args) == 0 {
		return fmt.Errorf("no arguments")
	}

	f.Progress(0.5)
	f.Log("fake: " + strings.Join(args, " "))
	f.Put(args[len(args)-1], []byte("output:"+strings.Join(args, " ")))
	f.Progress(1)
	return nil
}

// ReadFile implements engine.Engine.
func (f *Fake) ReadFile(name string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, name)
	data, ok := f.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", engine.ErrNotExist, name)
	}
	return append([]byte(nil), data...), nil
}

// DeleteFile implements engine.Engine.
func (f *Fake) DeleteFile(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, name)
	if _, ok := f.files[name]; !ok {
		return fmt.Errorf("%w: %s", engine.ErrNotExist, name)
	}
	delete(f.files, name)
	return nil
}

// OnProgress implements engine.Engine.
func (f *Fake) OnProgress(fn func(float64)) {
	f.mu.Lock()
	f.onProgress = fn
	f.mu.Unlock()
}

// OnLog implements engine.Engine.
func (f *Fake) OnLog(fn func(string)) {
	f.mu.Lock()
	f.onLog = fn
	f.mu.Unlock()
}

// Close implements engine.Engine.
func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Put stores a file as if the engine had produced it.
func (f *Fake) Put(name string, data []byte) {
	f.mu.Lock()
	f.files[name] = data
	f.mu.Unlock()
}

// Progress emits a progress fraction to the registered observer.
func (f *Fake) Progress(frac float64) {
	f.mu.Lock()
	fn := f.onProgress
	f.mu.Unlock()
	if fn != nil {
		fn(frac)
	}
}

// Log emits a log line to the registered observer.
func (f *Fake) Log(line string) {
	f.mu.Lock()
	fn := f.onLog
	f.mu.Unlock()
	if fn != nil {
		fn(line)
	}
}

// Loads returns how many times Load was called.
func (f *Fake) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

// Writes returns the names passed to WriteFile, in call order.
func (f *Fake) Writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

// Execs returns the argument lists passed to Exec, in call order.
func (f *Fake) Execs() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.execs))
	copy(out, f.execs)
	return out
}

// Deletes returns the names passed to DeleteFile, in call order.
func (f *Fake) Deletes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deletes...)
}

// File returns the current contents of name.
func (f *Fake) File(name string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[name]
	return data, ok
}

// Files returns the sorted names currently stored.
func (f *Fake) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.files))
	for name := range f.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
