package engine

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"testing"
)

func TestValidateName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "plain", input: "input0.mp3"},
		{name: "manifest", input: "concat.txt"},
		{name: "empty", input: "", wantErr: true},
		{name: "dot", input: ".", wantErr: true},
		{name: "parent", input: "..", wantErr: true},
		{name: "slash", input: "../etc/passwd", wantErr: true},
		{name: "backslash", input: `a\b`, wantErr: true},
		{name: "absolute", input: "/tmp/x", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidName) {
				t.Errorf("expected ErrInvalidName, got %v", err)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"00:01:30.50", 90.5, true},
		{"01:30", 90, true},
		{"42", 42, true},
		{"1:00:00", 3600, true},
		{"N/A", 0, false},
		{"", 0, false},
		{"aa:bb", 0, false},
		{"1:2:3:4", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseClock(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseClock(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestProgressParserUsesDurationArgument(t *testing.T) {
	p := newProgressParser([]string{"-i", "input.mp3", "-ss", "10", "-t", "20", "output_0.mp3"})

	// A Duration line must not override -t.
	p.logLine("  Duration: 00:05:00.00, start: 0.000000, bitrate: 128 kb/s")

	frac, ok := p.progressLine("out_time_us=5000000")
	if !ok {
		t.Fatal("expected progress to be reported")
	}
	if frac != 0.25 {
		t.Errorf("expected 0.25, got %v", frac)
	}
}

func TestProgressParserUsesLogDuration(t *testing.T) {
	p := newProgressParser([]string{"-i", "input.mp4", "output.webm"})

	if _, ok := p.progressLine("out_time_us=1000000"); ok {
		t.Error("no progress should be reported before the duration is known")
	}

	p.logLine("  Duration: 00:00:10.00, start: 0.000000, bitrate: 900 kb/s")
	p.logLine("  Duration: 00:00:99.00, start: 0.000000, bitrate: 900 kb/s")

	frac, ok := p.progressLine("out_time_ms=2500000")
	if !ok || frac != 0.25 {
		t.Errorf("expected (0.25, true), got (%v, %v)", frac, ok)
	}

	frac, ok = p.progressLine("out_time_us=50000000")
	if !ok || frac != 1 {
		t.Errorf("progress should clamp at 1, got (%v, %v)", frac, ok)
	}
}

func TestProgressParserEnd(t *testing.T) {
	p := newProgressParser(nil)

	if frac, ok := p.progressLine("progress=end"); !ok || frac != 1 {
		t.Errorf("progress=end should report 1, got (%v, %v)", frac, ok)
	}
	if _, ok := p.progressLine("progress=continue"); ok {
		t.Error("progress=continue should not report")
	}
	if _, ok := p.progressLine("frame=42"); ok {
		t.Error("unrelated keys should not report")
	}
	if _, ok := p.progressLine("garbage"); ok {
		t.Error("lines without '=' should not report")
	}
}

func TestLineTailKeepsLastLines(t *testing.T) {
	tail := newLineTail(2)
	tail.add("one")
	tail.add("two")
	tail.add("three")

	got := tail.lines()
	if len(got) != 2 || got[0] != "two" || got[1] != "three" {
		t.Errorf("unexpected tail: %v", got)
	}
}

func TestExecErrorMessage(t *testing.T) {
	err := &ExecError{ExitCode: 1, Tail: []string{"first", "Unknown encoder 'libfoo'"}, Err: errors.New("exit status 1")}

	if !strings.Contains(err.Error(), "Unknown encoder") {
		t.Errorf("error should include last log line, got %q", err.Error())
	}
	if err.Detail() != "first\nUnknown encoder 'libfoo'" {
		t.Errorf("unexpected detail: %q", err.Detail())
	}
}

func TestFFmpegLoadMissingBinary(t *testing.T) {
	eng := NewFFmpeg(FFmpegConfig{Binary: "definitely-not-ffmpeg-binary", WorkDir: t.TempDir()})

	err := eng.Load(context.Background())
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("expected LoadError, got %v", err)
	}
	if loadErr.Stage != "locating ffmpeg" {
		t.Errorf("unexpected stage %q", loadErr.Stage)
	}
}

func TestFFmpegFileOpsBeforeLoad(t *testing.T) {
	eng := NewFFmpeg(FFmpegConfig{WorkDir: t.TempDir()})

	if err := eng.WriteFile("input.mp3", []byte("x")); err == nil {
		t.Error("WriteFile should fail before Load")
	}
	if err := eng.Exec(context.Background(), []string{"-version"}); err == nil {
		t.Error("Exec should fail before Load")
	}
	if err := eng.Close(); err != nil {
		t.Errorf("Close on unloaded engine should be a no-op, got %v", err)
	}
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not available")
	}
}

func TestFFmpegRoundTrip(t *testing.T) {
	requireFFmpeg(t)

	eng := NewFFmpeg(FFmpegConfig{WorkDir: t.TempDir()})
	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer eng.Close()

	if !strings.HasPrefix(eng.Version(), "ffmpeg version") {
		t.Errorf("unexpected version line %q", eng.Version())
	}

	var mu sync.Mutex
	var fractions []float64
	eng.OnProgress(func(f float64) {
		mu.Lock()
		fractions = append(fractions, f)
		mu.Unlock()
	})

	args := []string{"-f", "lavfi", "-i", "sine=frequency=440:duration=1", "-t", "1", "output.wav"}
	if err := eng.Exec(context.Background(), args); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}

	data, err := eng.ReadFile("output.wav")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(data) < 44 || string(data[:4]) != "RIFF" {
		t.Errorf("output does not look like a WAV file")
	}

	mu.Lock()
	last := fractions[len(fractions)-1]
	mu.Unlock()
	if last != 1 {
		t.Errorf("final progress should be 1, got %v", last)
	}

	if err := eng.DeleteFile("output.wav"); err != nil {
		t.Errorf("DeleteFile failed: %v", err)
	}
	if err := eng.DeleteFile("output.wav"); !errors.Is(err, ErrNotExist) {
		t.Errorf("second delete should report ErrNotExist, got %v", err)
	}
	if _, err := eng.ReadFile("output.wav"); !errors.Is(err, ErrNotExist) {
		t.Errorf("read after delete should report ErrNotExist, got %v", err)
	}
}

func TestFFmpegExecFailure(t *testing.T) {
	requireFFmpeg(t)

	eng := NewFFmpeg(FFmpegConfig{WorkDir: t.TempDir()})
	if err := eng.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer eng.Close()

	err := eng.Exec(context.Background(), []string{"-i", "missing.mp3", "output.mp3"})
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecError, got %v", err)
	}
	if execErr.ExitCode == 0 {
		t.Error("exit code should be non-zero")
	}
	if len(execErr.Tail) == 0 {
		t.Error("expected captured log lines")
	}
}
