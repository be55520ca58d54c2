package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"media-toolbox/internal/engine"
	"media-toolbox/internal/logging"
)

// State is the lifecycle state of an engine session.
type State string

const (
	// StateUnloaded means no load has succeeded yet. A failed load returns
	// here so the next EnsureLoaded retries.
	StateUnloaded State = "unloaded"
	// StateLoading means a load is in flight.
	StateLoading State = "loading"
	// StateReady means the engine accepts file and exec calls.
	StateReady State = "ready"
)

var (
	// ErrNotLoaded is returned by Write, Exec and Read before the engine is ready.
	ErrNotLoaded = errors.New("engine is not loaded")
	// ErrClosed is returned by EnsureLoaded after Close.
	ErrClosed = errors.New("engine session is closed")
)

// Observer receives lifecycle measurements. The metrics package provides the
// Prometheus implementation.
type Observer interface {
	ObserveState(session string, state State)
	ObserveLoad(session string, durationSeconds float64, err error)
	ObserveExec(session string, durationSeconds float64, err error)
}

type noopObserver struct{}

func (noopObserver) ObserveState(string, State) {}

func (noopObserver) ObserveLoad(string, float64, error) {}

func (noopObserver) ObserveExec(string, float64, error) {}

// Option configures a Session.
type Option func(*Session)

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(p EventPublisher) Option {
	return func(s *Session) {
		if p != nil {
			s.publisher = p
		}
	}
}

// Session owns one engine instance for one tool page. It loads the engine at
// most once, collapses concurrent loads, and guards file and exec calls until
// the engine is ready.
type Session struct {
	name      string
	eng       engine.Engine
	observer  Observer
	publisher EventPublisher
	group     singleflight.Group

	mu      sync.RWMutex
	state   State
	lastErr error
	closed  bool

	// execMu serializes Exec so progress from the engine belongs to exactly
	// one caller.
	execMu sync.Mutex
	sinkMu sync.Mutex
	sink   func(float64)
}

// New creates an unloaded session around eng.
func New(name string, eng engine.Engine, opts ...Option) *Session {
	s := &Session{
		name:      name,
		eng:       eng,
		observer:  noopObserver{},
		publisher: noopPublisher{},
		state:     StateUnloaded,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.observer.ObserveState(name, StateUnloaded)
	return s
}

// Name returns the session name.
func (s *Session) Name() string {
	return s.name
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Info is a point-in-time view of a session.
type Info struct {
	Name      string `json:"name"`
	State     State  `json:"state"`
	LastError string `json:"lastError,omitempty"`
}

// Info returns the session's name, state and last load error.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{Name: s.name, State: s.state}
	if s.lastErr != nil {
		info.LastError = s.lastErr.Error()
	}
	return info
}

// EnsureLoaded loads the engine if needed and returns it. Concurrent callers
// share a single in-flight load and all receive the same engine. The load is
// not canceled when ctx ends; the caller only stops waiting for it.
func (s *Session) EnsureLoaded(ctx context.Context) (engine.Engine, error) {
	if s.State() == StateReady {
		return s.eng, nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("load", func() (interface{}, error) {
		return nil, s.load(loadCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return s.eng, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Session) load(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.state == StateReady {
		s.mu.Unlock()
		return nil
	}
	s.state = StateLoading
	s.mu.Unlock()

	s.observer.ObserveState(s.name, StateLoading)
	s.publish(EventLoadStart, nil)
	logging.Info("Loading %s engine", s.name)

	s.eng.OnProgress(s.relay)
	s.eng.OnLog(func(line string) {
		logging.Debug("[%s] %s", s.name, line)
	})

	start := time.Now()
	err := s.eng.Load(ctx)
	elapsed := time.Since(start)
	if err != nil {
		var loadErr *engine.LoadError
		if !errors.As(err, &loadErr) {
			err = &engine.LoadError{Stage: "initializing engine", Err: err}
		}

		s.mu.Lock()
		s.state = StateUnloaded
		s.lastErr = err
		s.mu.Unlock()

		s.observer.ObserveLoad(s.name, elapsed.Seconds(), err)
		s.observer.ObserveState(s.name, StateUnloaded)
		s.publish(EventLoadError, map[string]string{"error": err.Error()})
		logging.Error("Failed to load %s engine: %v", s.name, err)
		return err
	}

	s.mu.Lock()
	s.state = StateReady
	s.lastErr = nil
	s.mu.Unlock()

	s.observer.ObserveLoad(s.name, elapsed.Seconds(), nil)
	s.observer.ObserveState(s.name, StateReady)
	s.publish(EventLoadReady, map[string]string{"duration": elapsed.Round(time.Millisecond).String()})
	logging.Info("%s engine ready in %v", s.name, elapsed.Round(time.Millisecond))
	return nil
}

func (s *Session) requireReady() error {
	if s.State() != StateReady {
		return ErrNotLoaded
	}
	return nil
}

// Write stores data under name in the engine's filesystem.
func (s *Session) Write(name string, data []byte) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	return s.eng.WriteFile(name, data)
}

// Exec runs one engine invocation. Engine progress for this call is passed to
// onProgress as a fraction in [0, 1], starting at 0.
func (s *Session) Exec(ctx context.Context, args []string, onProgress func(float64)) error {
	if err := s.requireReady(); err != nil {
		return err
	}

	s.execMu.Lock()
	defer s.execMu.Unlock()

	s.setSink(onProgress)
	defer s.setSink(nil)
	s.relay(0)

	s.publish(EventExecStart, map[string]string{"args": strings.Join(args, " ")})
	logging.Debug("%s exec: %s", s.name, strings.Join(args, " "))

	start := time.Now()
	err := s.eng.Exec(ctx, args)
	elapsed := time.Since(start)

	s.observer.ObserveExec(s.name, elapsed.Seconds(), err)
	fields := map[string]string{"duration": elapsed.Round(time.Millisecond).String()}
	if err != nil {
		fields["error"] = err.Error()
	}
	s.publish(EventExecEnd, fields)
	return err
}

// Read returns the contents of name from the engine's filesystem.
func (s *Session) Read(name string) ([]byte, error) {
	if err := s.requireReady(); err != nil {
		return nil, err
	}
	return s.eng.ReadFile(name)
}

// Remove deletes name from the engine's filesystem. It never fails: missing
// files are ignored and other errors are only logged.
func (s *Session) Remove(name string) {
	if s.State() != StateReady {
		return
	}
	if err := s.eng.DeleteFile(name); err != nil {
		if errors.Is(err, engine.ErrNotExist) {
			return
		}
		logging.Warn("%s: failed to remove %s: %v", s.name, name, err)
	}
}

// Close releases the engine. It is meant for process shutdown; the session is
// not reusable afterwards. A load in flight is waited for first so the engine
// does not acquire resources after it has been closed.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	// Joins the in-flight load, if any; later loads see closed and stop.
	s.group.Do("load", func() (interface{}, error) { return nil, nil })
	return s.eng.Close()
}

func (s *Session) setSink(fn func(float64)) {
	s.sinkMu.Lock()
	s.sink = fn
	s.sinkMu.Unlock()
}

func (s *Session) relay(frac float64) {
	s.sinkMu.Lock()
	fn := s.sink
	s.sinkMu.Unlock()
	if fn != nil {
		fn(frac)
	}
}

func (s *Session) publish(name string, fields map[string]string) {
	s.publisher.Publish(Event{
		Time:    time.Now(),
		Session: s.name,
		Name:    name,
		Fields:  fields,
	})
}
