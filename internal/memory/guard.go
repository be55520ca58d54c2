package memory

import (
	"errors"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"media-toolbox/internal/logging"
	"media-toolbox/internal/metrics"
)

// ErrLowMemory is returned by Admit while the heap is near its limit.
var ErrLowMemory = errors.New("server is low on memory, try again shortly")

// Config configures a Guard.
type Config struct {
	// LimitBytes is the budget; 0 uses GOMEMLIMIT when set.
	LimitBytes int64
	// HighWaterMark is the fraction of the budget above which new work is
	// refused.
	HighWaterMark float64
	// CheckInterval is how often heap usage is sampled.
	CheckInterval time.Duration
}

// DefaultConfig returns the guard defaults.
func DefaultConfig() Config {
	return Config{
		HighWaterMark: 0.85,
		CheckInterval: 5 * time.Second,
	}
}

// Guard admits or refuses new work based on sampled heap usage.
type Guard struct {
	config Config
	limit  int64
	// readHeap returns the bytes of heap in use.
	readHeap func() uint64

	stop     chan struct{}
	stopOnce sync.Once

	mu      sync.RWMutex
	current uint64
}

// NewGuard creates a guard. It takes one sample immediately.
func NewGuard(config Config) *Guard {
	def := DefaultConfig()
	if config.HighWaterMark <= 0 || config.HighWaterMark > 1 {
		config.HighWaterMark = def.HighWaterMark
	}
	if config.CheckInterval <= 0 {
		config.CheckInterval = def.CheckInterval
	}

	limit := config.LimitBytes
	if limit == 0 {
		if l := debug.SetMemoryLimit(-1); l > 0 && l < math.MaxInt64 {
			limit = l
		}
	}

	g := &Guard{
		config:   config,
		limit:    limit,
		readHeap: heapInUse,
		stop:     make(chan struct{}),
	}
	if limit == 0 {
		logging.Debug("Memory guard: no limit configured, admitting all uploads")
	} else {
		logging.Info("Memory guard: refusing uploads above %.0f%% of %d MB", config.HighWaterMark*100, limit/(1024*1024))
	}
	g.sample()
	return g
}

func heapInUse() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapInuse
}

// Start samples usage every CheckInterval until Stop.
func (g *Guard) Start() {
	if g.limit == 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(g.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.sample()
			case <-g.stop:
				return
			}
		}
	}()
}

// Stop ends sampling. It is safe to call more than once.
func (g *Guard) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
}

func (g *Guard) sample() {
	current := g.readHeap()

	g.mu.Lock()
	g.current = current
	g.mu.Unlock()

	if g.limit > 0 {
		metrics.MemoryUsageRatio.Set(float64(current) / float64(g.limit))
	}
}

// Admit reports whether work that will hold about n more bytes may start.
// A negative n, such as an unknown Content-Length, counts as zero.
func (g *Guard) Admit(n int64) error {
	if g.limit == 0 {
		return nil
	}
	if n < 0 {
		n = 0
	}

	g.mu.RLock()
	current := g.current
	g.mu.RUnlock()

	if float64(current)+float64(n) <= float64(g.limit)*g.config.HighWaterMark {
		return nil
	}

	metrics.MemoryRejectionsTotal.Inc()
	logging.Warn("Memory guard: refusing %d bytes with %d MB in use", n, current/(1024*1024))
	// Finished results may be garbage by now
	go func() {
		runtime.GC()
		g.sample()
	}()
	return ErrLowMemory
}

// Usage returns the last sampled usage as a fraction of the limit, or 0
// without a limit.
func (g *Guard) Usage() float64 {
	if g.limit == 0 {
		return 0
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return float64(g.current) / float64(g.limit)
}

// Limit returns the budget in bytes, or 0 without a limit.
func (g *Guard) Limit() int64 {
	return g.limit
}
