package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"media-toolbox/internal/logging"
)

// baseArgs precede every invocation: no interactive input, overwrite outputs,
// machine-readable progress on stdout, logs on stderr.
var baseArgs = []string{"-hide_banner", "-nostdin", "-y", "-progress", "pipe:1", "-nostats"}

var errNotLoaded = errors.New("engine: not loaded")

// FFmpegConfig configures an FFmpeg engine.
type FFmpegConfig struct {
	// Binary is the ffmpeg executable name or path.
	Binary string
	// WorkDir is the parent directory for the engine's private filesystem.
	WorkDir string
	// TailLines is how many stderr lines are kept for error reports.
	TailLines    int
	ProbeTimeout time.Duration
}

// FFmpeg runs the ffmpeg binary as a subprocess. Its filesystem is a private
// scratch directory created on Load and removed on Close.
type FFmpeg struct {
	cfg FFmpegConfig

	mu         sync.Mutex
	root       string
	binary     string
	version    string
	onProgress func(float64)
	onLog      func(string)

	processMu sync.Mutex
	processes map[*exec.Cmd]struct{}
}

// NewFFmpeg creates an unloaded FFmpeg engine.
func NewFFmpeg(cfg FFmpegConfig) *FFmpeg {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = 20
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	return &FFmpeg{
		cfg:       cfg,
		processes: make(map[*exec.Cmd]struct{}),
	}
}

// Load locates the binary, checks that it runs, and creates the scratch
// directory.
func (f *FFmpeg) Load(ctx context.Context) error {
	path, err := exec.LookPath(f.cfg.Binary)
	if err != nil {
		return &LoadError{Stage: "locating ffmpeg", Err: err}
	}

	probeCtx, cancel := context.WithTimeout(ctx, f.cfg.ProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(probeCtx, path, "-hide_banner", "-version").Output()
	if err != nil {
		return &LoadError{Stage: "probing ffmpeg", Err: err}
	}

	if err := os.MkdirAll(f.cfg.WorkDir, 0o755); err != nil {
		return &LoadError{Stage: "creating workspace", Err: err}
	}
	root, err := os.MkdirTemp(f.cfg.WorkDir, "engine-")
	if err != nil {
		return &LoadError{Stage: "creating workspace", Err: err}
	}

	version, _, _ := strings.Cut(string(out), "\n")

	f.mu.Lock()
	f.root = root
	f.binary = path
	f.version = strings.TrimSpace(version)
	f.mu.Unlock()

	logging.Debug("ffmpeg engine loaded: %s (workspace %s)", f.version, root)
	return nil
}

// Version returns the first line of `ffmpeg -version`, or "" before Load.
func (f *FFmpeg) Version() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version
}

// OnProgress implements Engine.
func (f *FFmpeg) OnProgress(fn func(float64)) {
	f.mu.Lock()
	f.onProgress = fn
	f.mu.Unlock()
}

// OnLog implements Engine.
func (f *FFmpeg) OnLog(fn func(string)) {
	f.mu.Lock()
	f.onLog = fn
	f.mu.Unlock()
}

func (f *FFmpeg) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	f.mu.Lock()
	root := f.root
	f.mu.Unlock()
	if root == "" {
		return "", errNotLoaded
	}
	return filepath.Join(root, name), nil
}

// WriteFile implements Engine.
func (f *FFmpeg) WriteFile(name string, data []byte) error {
	p, err := f.path(name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o600)
}

// ReadFile implements Engine.
func (f *FFmpeg) ReadFile(name string) ([]byte, error) {
	p, err := f.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return data, err
}

// DeleteFile implements Engine.
func (f *FFmpeg) DeleteFile(name string) error {
	p, err := f.path(name)
	if err != nil {
		return err
	}
	err = os.Remove(p)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	return err
}

// Exec runs ffmpeg with args inside the scratch directory and blocks until
// it exits. Canceling ctx kills the process.
func (f *FFmpeg) Exec(ctx context.Context, args []string) error {
	f.mu.Lock()
	root, bin := f.root, f.binary
	f.mu.Unlock()
	if root == "" {
		return errNotLoaded
	}

	argv := append(append([]string{}, baseArgs...), args...)
	cmd := exec.CommandContext(ctx, bin, argv...)
	cmd.Dir = root

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	f.processMu.Lock()
	f.processes[cmd] = struct{}{}
	f.processMu.Unlock()
	defer func() {
		f.processMu.Lock()
		delete(f.processes, cmd)
		f.processMu.Unlock()
	}()

	parser := newProgressParser(args)
	tail := newLineTail(f.cfg.TailLines)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		scanLines(stdout, func(line string) {
			if frac, ok := parser.progressLine(line); ok {
				f.emitProgress(frac)
			}
		})
	}()
	go func() {
		defer wg.Done()
		scanLines(stderr, func(line string) {
			parser.logLine(line)
			tail.add(line)
			f.emitLog(line)
		})
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return &ExecError{Args: args, ExitCode: code, Tail: tail.lines(), Err: err}
	}

	f.emitProgress(1)
	return nil
}

func (f *FFmpeg) emitProgress(frac float64) {
	f.mu.Lock()
	fn := f.onProgress
	f.mu.Unlock()
	if fn != nil {
		fn(frac)
	}
}

func (f *FFmpeg) emitLog(line string) {
	f.mu.Lock()
	fn := f.onLog
	f.mu.Unlock()
	if fn != nil {
		fn(line)
	}
}

// Usage returns the number of bytes currently held in the scratch directory.
func (f *FFmpeg) Usage() (int64, error) {
	f.mu.Lock()
	root := f.root
	f.mu.Unlock()
	if root == "" {
		return 0, nil
	}

	var size int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}

// Close kills any running ffmpeg process and removes the scratch directory.
func (f *FFmpeg) Close() error {
	f.processMu.Lock()
	for cmd := range f.processes {
		if cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill ffmpeg process %d: %v", cmd.Process.Pid, err)
			}
		}
	}
	f.processMu.Unlock()

	f.mu.Lock()
	root := f.root
	f.root = ""
	f.mu.Unlock()

	if root == "" {
		return nil
	}
	return os.RemoveAll(root)
}

func scanLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanCRLF)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			fn(line)
		}
	}
	// Drain so the process never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, r)
}

// scanCRLF splits on either \n or \r.
func scanCRLF(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

type lineTail struct {
	mu  sync.Mutex
	max int
	buf []string
}

func newLineTail(max int) *lineTail {
	return &lineTail{max: max}
}

func (t *lineTail) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, line)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
}

func (t *lineTail) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.buf...)
}
