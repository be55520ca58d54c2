package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"media-toolbox/internal/logging"
)

// Event names published by a Session.
const (
	EventLoadStart = "load_start"
	EventLoadReady = "load_ready"
	EventLoadError = "load_error"
	EventExecStart = "exec_start"
	EventExecEnd   = "exec_end"
)

// Event is a lifecycle notification from a Session.
type Event struct {
	Time    time.Time
	Session string
	Name    string
	Fields  map[string]string
}

// EventPublisher receives session events. Publish must not block.
type EventPublisher interface {
	Publish(e Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// LogPublisher writes events to the debug log.
type LogPublisher struct{}

// Publish implements EventPublisher.
func (LogPublisher) Publish(e Event) {
	if !logging.IsDebugEnabled() {
		return
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(e.Fields[k])
	}
	logging.Debug("engine %s: %s%s", e.Session, e.Name, b.String())
}

// MemoryPublisher keeps published events in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher returns an empty MemoryPublisher.
func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

// Publish implements EventPublisher.
func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

// Events returns a copy of all events published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Names returns the names of all events published so far, in order.
func (p *MemoryPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.events))
	for i, e := range p.events {
		names[i] = e.Name
	}
	return names
}
