package streaming

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"media-toolbox/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a write operation exceeded the configured timeout.
	// This typically occurs when a client is receiving data too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected before the stream completed.
	// This is detected via the request context being canceled.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates that the stream was closed programmatically.
	ErrStreamCanceled = errors.New("stream canceled")

	// ErrFlushUnsupported indicates the response writer cannot flush, so
	// events would never reach the client.
	ErrFlushUnsupported = errors.New("response writer does not support flushing")
)

// EventStreamConfig configures an EventStream.
type EventStreamConfig struct {
	// WriteTimeout bounds a single event write. Zero disables the deadline.
	WriteTimeout time.Duration
	// KeepAlive is how long the stream may stay silent before a comment
	// line is sent to keep proxies from closing it. Zero disables it.
	KeepAlive time.Duration
}

// DefaultEventStreamConfig returns sensible defaults
func DefaultEventStreamConfig() EventStreamConfig {
	return EventStreamConfig{
		WriteTimeout: 10 * time.Second,
		KeepAlive:    15 * time.Second,
	}
}

// EventStream writes Server-Sent Events to an HTTP response.
type EventStream struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	ctx     context.Context
	cancel  context.CancelFunc
	config  EventStreamConfig
	started time.Time

	mu           sync.Mutex
	lastWrite    time.Time
	bytesWritten int64
	events       int
	closed       bool
}

// NewEventStream sends the event-stream headers and starts the keep-alive
// loop. The stream ends when ctx is canceled or Close is called.
func NewEventStream(ctx context.Context, w http.ResponseWriter, config EventStreamConfig) (*EventStream, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, ErrFlushUnsupported
	}

	streamCtx, cancel := context.WithCancel(ctx)
	es := &EventStream{
		w:         w,
		rc:        http.NewResponseController(w),
		ctx:       streamCtx,
		cancel:    cancel,
		config:    config,
		started:   time.Now(),
		lastWrite: time.Now(),
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := es.rc.Flush(); err != nil {
		cancel()
		return nil, err
	}

	if config.KeepAlive > 0 {
		go es.keepAlive()
	}
	return es, nil
}

// Send writes one event with v encoded as JSON in its data field. An empty
// event name produces an unnamed "message" event.
func (es *EventStream) Send(event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", event, err)
	}

	var b bytes.Buffer
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", event)
	}
	fmt.Fprintf(&b, "data: %s\n\n", data)

	if err := es.write(b.Bytes()); err != nil {
		return err
	}
	es.mu.Lock()
	es.events++
	es.mu.Unlock()
	return nil
}

func (es *EventStream) write(p []byte) error {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.closed {
		return ErrStreamCanceled
	}
	select {
	case <-es.ctx.Done():
		return es.contextError()
	default:
	}

	if es.config.WriteTimeout > 0 {
		// Writers that cannot take deadlines still get the event.
		_ = es.rc.SetWriteDeadline(time.Now().Add(es.config.WriteTimeout))
	}

	n, err := es.w.Write(p)
	es.bytesWritten += int64(n)
	if err == nil {
		err = es.rc.Flush()
	}
	if err != nil {
		es.cancel()
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return ErrWriteTimeout
		}
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}

	es.lastWrite = time.Now()
	return nil
}

// keepAlive sends a comment whenever the stream has been idle for the
// configured interval.
func (es *EventStream) keepAlive() {
	ticker := time.NewTicker(es.config.KeepAlive / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			es.mu.Lock()
			idle := time.Since(es.lastWrite)
			closed := es.closed
			es.mu.Unlock()

			if closed {
				return
			}
			if idle >= es.config.KeepAlive {
				if err := es.write([]byte(": keep-alive\n\n")); err != nil {
					logging.Debug("Event stream keep-alive failed: %v", err)
					return
				}
			}

		case <-es.ctx.Done():
			return
		}
	}
}

// contextError returns an appropriate error based on context state
func (es *EventStream) contextError() error {
	if errors.Is(es.ctx.Err(), context.Canceled) && !es.closed {
		return ErrClientGone
	}
	return ErrStreamCanceled
}

// Done is closed when the client goes away or the stream is closed.
func (es *EventStream) Done() <-chan struct{} {
	return es.ctx.Done()
}

// Close stops the stream. Further sends fail with ErrStreamCanceled.
func (es *EventStream) Close() error {
	es.mu.Lock()
	defer es.mu.Unlock()

	if es.closed {
		return nil
	}
	es.closed = true
	es.cancel()

	logging.Debug("Event stream closed: %d events, %d bytes in %v",
		es.events, es.bytesWritten, time.Since(es.started).Round(time.Millisecond))
	return nil
}

// Stats returns streaming statistics
func (es *EventStream) Stats() (events int, bytesWritten int64, duration time.Duration) {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.events, es.bytesWritten, time.Since(es.started)
}
