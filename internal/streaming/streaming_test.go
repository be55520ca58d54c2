package streaming

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDefaultEventStreamConfig(t *testing.T) {
	config := DefaultEventStreamConfig()

	if config.WriteTimeout != 10*time.Second {
		t.Errorf("Expected WriteTimeout=10s, got %v", config.WriteTimeout)
	}
	if config.KeepAlive != 15*time.Second {
		t.Errorf("Expected KeepAlive=15s, got %v", config.KeepAlive)
	}
}

func TestNewEventStreamHeaders(t *testing.T) {
	w := httptest.NewRecorder()

	es, err := NewEventStream(context.Background(), w, EventStreamConfig{})
	if err != nil {
		t.Fatalf("NewEventStream failed: %v", err)
	}
	defer es.Close()

	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	if !w.Flushed {
		t.Error("headers should be flushed immediately")
	}
}

type noFlushWriter struct {
	header http.Header
}

func (n *noFlushWriter) Header() http.Header         { return n.header }
func (n *noFlushWriter) Write(b []byte) (int, error) { return len(b), nil }
func (n *noFlushWriter) WriteHeader(int)             {}

func TestNewEventStreamRequiresFlusher(t *testing.T) {
	_, err := NewEventStream(context.Background(), &noFlushWriter{header: http.Header{}}, EventStreamConfig{})
	if !errors.Is(err, ErrFlushUnsupported) {
		t.Errorf("expected ErrFlushUnsupported, got %v", err)
	}
}

func TestSendFormatsEvents(t *testing.T) {
	w := httptest.NewRecorder()
	es, err := NewEventStream(context.Background(), w, EventStreamConfig{})
	if err != nil {
		t.Fatalf("NewEventStream failed: %v", err)
	}
	defer es.Close()

	if err := es.Send("progress", map[string]int{"percent": 40}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := es.Send("", "plain"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	want := "event: progress\ndata: {\"percent\":40}\n\n" + "data: \"plain\"\n\n"
	if got := w.Body.String(); got != want {
		t.Errorf("body = %q, want %q", got, want)
	}

	events, bytesWritten, _ := es.Stats()
	if events != 2 {
		t.Errorf("events = %d, want 2", events)
	}
	if bytesWritten != int64(len(want)) {
		t.Errorf("bytesWritten = %d, want %d", bytesWritten, len(want))
	}
}

func TestSendRejectsUnencodable(t *testing.T) {
	es, err := NewEventStream(context.Background(), httptest.NewRecorder(), EventStreamConfig{})
	if err != nil {
		t.Fatalf("NewEventStream failed: %v", err)
	}
	defer es.Close()

	if err := es.Send("bad", make(chan int)); err == nil {
		t.Error("expected an encoding error")
	}
}

func TestSendAfterClose(t *testing.T) {
	es, err := NewEventStream(context.Background(), httptest.NewRecorder(), EventStreamConfig{})
	if err != nil {
		t.Fatalf("NewEventStream failed: %v", err)
	}

	if err := es.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := es.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if err := es.Send("progress", 1); !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("expected ErrStreamCanceled, got %v", err)
	}
}

func TestSendAfterClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	es, err := NewEventStream(ctx, httptest.NewRecorder(), EventStreamConfig{})
	if err != nil {
		t.Fatalf("NewEventStream failed: %v", err)
	}
	defer es.Close()

	cancel()
	select {
	case <-es.Done():
	case <-time.After(time.Second):
		t.Fatal("Done should close when the request context ends")
	}
	if err := es.Send("progress", 1); !errors.Is(err, ErrClientGone) {
		t.Errorf("expected ErrClientGone, got %v", err)
	}
}

func TestKeepAliveComments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		es, err := NewEventStream(r.Context(), w, EventStreamConfig{KeepAlive: 20 * time.Millisecond})
		if err != nil {
			t.Errorf("NewEventStream failed: %v", err)
			return
		}
		defer es.Close()
		time.Sleep(100 * time.Millisecond)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body strings.Builder
	buf := make([]byte, 256)
	for {
		n, err := resp.Body.Read(buf)
		body.WriteString(string(buf[:n]))
		if err != nil {
			break
		}
	}
	if !strings.Contains(body.String(), ": keep-alive\n\n") {
		t.Errorf("expected a keep-alive comment, got %q", body.String())
	}
}
