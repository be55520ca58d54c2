package memory

import (
	"errors"
	"math"
	"runtime/debug"
	"testing"
	"time"
)

func newTestGuard(limit int64, heap uint64) *Guard {
	g := NewGuard(Config{LimitBytes: limit, HighWaterMark: 0.8, CheckInterval: 10 * time.Millisecond})
	g.readHeap = func() uint64 { return heap }
	g.sample()
	return g
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LimitBytes != 0 {
		t.Errorf("Expected LimitBytes 0, got %d", cfg.LimitBytes)
	}
	if cfg.HighWaterMark != 0.85 {
		t.Errorf("Expected HighWaterMark 0.85, got %f", cfg.HighWaterMark)
	}
	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("Expected CheckInterval 5s, got %v", cfg.CheckInterval)
	}
}

func TestNewGuardAppliesDefaults(t *testing.T) {
	g := NewGuard(Config{LimitBytes: 100, HighWaterMark: 2})
	if g.config.HighWaterMark != 0.85 {
		t.Errorf("Expected out-of-range high water mark to fall back to 0.85, got %f", g.config.HighWaterMark)
	}
	if g.config.CheckInterval != 5*time.Second {
		t.Errorf("Expected default check interval, got %v", g.config.CheckInterval)
	}
	if g.Limit() != 100 {
		t.Errorf("Expected limit 100, got %d", g.Limit())
	}
}

func TestGuardAdmit(t *testing.T) {
	tests := []struct {
		name    string
		limit   int64
		heap    uint64
		request int64
		wantErr bool
	}{
		{"no limit", 0, math.MaxUint32, 1 << 30, false},
		{"well under", 1000, 100, 100, false},
		{"request stays under mark", 1000, 600, 100, false},
		{"request crosses mark", 1000, 700, 101, true},
		{"already over", 1000, 900, 0, true},
		{"unknown length", 1000, 700, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var g *Guard
			if tt.limit == 0 {
				g = &Guard{readHeap: func() uint64 { return tt.heap }, stop: make(chan struct{})}
			} else {
				g = newTestGuard(tt.limit, tt.heap)
			}

			err := g.Admit(tt.request)
			if tt.wantErr && !errors.Is(err, ErrLowMemory) {
				t.Errorf("Expected ErrLowMemory, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Expected admission, got %v", err)
			}
		})
	}
}

func TestGuardUsage(t *testing.T) {
	g := newTestGuard(1000, 250)
	if got := g.Usage(); got != 0.25 {
		t.Errorf("Expected usage 0.25, got %f", got)
	}

	unlimited := &Guard{}
	if got := unlimited.Usage(); got != 0 {
		t.Errorf("Expected usage 0 without a limit, got %f", got)
	}
}

func TestGuardStartSamples(t *testing.T) {
	g := newTestGuard(1000, 100)

	g.readHeap = func() uint64 { return 600 }

	g.Start()
	defer g.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for g.Usage() != 0.6 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected sampled usage 0.6, got %f", g.Usage())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestGuardStopIsIdempotent(t *testing.T) {
	g := newTestGuard(1000, 0)
	g.Start()
	g.Stop()
	g.Stop()
}

func TestConfigure(t *testing.T) {
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })

	tests := []struct {
		name       string
		env        map[string]string
		wantSource string
		wantLimit  int64
		wantRatio  float64
	}{
		{
			name:       "nothing set",
			env:        map[string]string{},
			wantSource: "none",
		},
		{
			name:       "container limit with default ratio",
			env:        map[string]string{"MEMORY_LIMIT": "1000000000"},
			wantSource: "MEMORY_LIMIT",
			wantLimit:  750000000,
			wantRatio:  DefaultMemoryRatio,
		},
		{
			name:       "custom ratio",
			env:        map[string]string{"MEMORY_LIMIT": "1000000000", "MEMORY_RATIO": "0.5"},
			wantSource: "MEMORY_LIMIT",
			wantLimit:  500000000,
			wantRatio:  0.5,
		},
		{
			name:       "ratio out of range",
			env:        map[string]string{"MEMORY_LIMIT": "1000000000", "MEMORY_RATIO": "1.5"},
			wantSource: "MEMORY_LIMIT",
			wantLimit:  750000000,
			wantRatio:  DefaultMemoryRatio,
		},
		{
			name:       "invalid limit",
			env:        map[string]string{"MEMORY_LIMIT": "lots"},
			wantSource: "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			debug.SetMemoryLimit(math.MaxInt64)

			result := configure(func(key string) string { return tt.env[key] })

			if result.Source != tt.wantSource {
				t.Errorf("Source = %q, want %q", result.Source, tt.wantSource)
			}
			if result.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, tt.wantLimit)
			}
			if result.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %f, want %f", result.Ratio, tt.wantRatio)
			}
			if result.Configured() != (tt.wantLimit > 0) {
				t.Errorf("Configured = %v", result.Configured())
			}
			if tt.wantLimit > 0 {
				if got := debug.SetMemoryLimit(-1); got != tt.wantLimit {
					t.Errorf("runtime memory limit = %d, want %d", got, tt.wantLimit)
				}
			}
		})
	}
}

func TestConfigureRespectsGOMEMLIMIT(t *testing.T) {
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
	debug.SetMemoryLimit(512 << 20)

	result := configure(func(key string) string {
		if key == "GOMEMLIMIT" {
			return "512MiB"
		}
		return "1000000000"
	})

	if result.Source != "GOMEMLIMIT" {
		t.Errorf("Source = %q, want GOMEMLIMIT", result.Source)
	}
	if result.GoMemLimit != 512<<20 {
		t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, 512<<20)
	}
}
