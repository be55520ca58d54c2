package progress

import (
	"math"
	"sync"
)

// Snapshot is the observable state of a Tracker.
type Snapshot struct {
	Percent float64 `json:"percent"`
	Status  string  `json:"status"`
}

// Tracker holds the progress percentage (0..100) and status line of one
// operation. Subscribers receive the latest snapshot; intermediate values may
// be skipped when a subscriber falls behind.
type Tracker struct {
	mu      sync.Mutex
	current Snapshot
	subs    map[chan Snapshot]struct{}
	closed  bool
}

// NewTracker returns a tracker at 0% with an empty status.
func NewTracker() *Tracker {
	return &Tracker{subs: make(map[chan Snapshot]struct{})}
}

// Set updates the percentage, clamped to [0, 100].
func (t *Tracker) Set(percent float64) {
	t.update(func(s *Snapshot) { s.Percent = clamp(percent, 0, 100) })
}

// SetStatus updates the status line.
func (t *Tracker) SetStatus(status string) {
	t.update(func(s *Snapshot) { s.Status = status })
}

// Step updates percentage and status together.
func (t *Tracker) Step(percent float64, status string) {
	t.update(func(s *Snapshot) {
		s.Percent = clamp(percent, 0, 100)
		s.Status = status
	})
}

// Snapshot returns the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Relay returns a callback that maps a phase fraction onto span and records
// it. It is the bridge between engine progress and the overall percentage.
func (t *Tracker) Relay(span Span) func(float64) {
	return func(frac float64) {
		t.Set(span.At(frac))
	}
}

// Subscribe returns a channel that receives the current snapshot immediately
// and every later change. The returned function unsubscribes.
func (t *Tracker) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	t.mu.Lock()
	if t.closed {
		ch <- t.current
		close(ch)
		t.mu.Unlock()
		return ch, func() {}
	}
	t.subs[ch] = struct{}{}
	ch <- t.current
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			if _, ok := t.subs[ch]; ok {
				delete(t.subs, ch)
				close(ch)
			}
			t.mu.Unlock()
		})
	}
}

// Close ends all subscriptions. Later updates are still recorded.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for ch := range t.subs {
		close(ch)
	}
	t.subs = nil
}

func (t *Tracker) update(fn func(*Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.current)
	snap := t.current
	for ch := range t.subs {
		// Replace any unread value with the newest one.
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Span is a sub-range of the overall 0..100 percentage assigned to one phase
// of a pipeline.
type Span struct {
	From float64
	To   float64
}

// At maps a phase fraction in [0, 1] onto the span.
func (s Span) At(frac float64) float64 {
	if math.IsNaN(frac) {
		frac = 0
	}
	return s.From + clamp(frac, 0, 1)*(s.To-s.From)
}

// Part returns the i-th of n equal sub-spans.
func (s Span) Part(i, n int) Span {
	if n <= 0 {
		return s
	}
	width := (s.To - s.From) / float64(n)
	return Span{From: s.From + float64(i)*width, To: s.From + float64(i+1)*width}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
