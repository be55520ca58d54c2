package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"media-toolbox/internal/logging"
	"media-toolbox/internal/metrics"
)

func TestResponseWriterWriteHeader(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	if rw.statusCode != http.StatusOK || rw.wroteHeader {
		t.Fatal("unexpected initial state")
	}

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.statusCode != http.StatusNotFound {
		t.Error("Status code should not change after first WriteHeader")
	}
}

func TestResponseWriterWrite(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())

	data := []byte("test data")
	n, err := rw.Write(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n != len(data) || rw.bytesWritten != int64(len(data)) {
		t.Errorf("Expected %d bytes written, got n=%d total=%d", len(data), n, rw.bytesWritten)
	}
	if !rw.wroteHeader {
		t.Error("Expected wroteHeader to be true after Write")
	}
}

func TestLoggerMiddleware(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		status        int
		config        LoggingConfig
		expectLogging bool
		expectLevel   string
	}{
		{"Logs tool requests", "/api/tools/audio-merge", http.StatusAccepted, DefaultLoggingConfig(), true, "INF"},
		{"Logs client errors as warnings", "/api/operations/missing", http.StatusNotFound, DefaultLoggingConfig(), true, "WRN"},
		{"Logs server errors as errors", "/api/tools/pdf-optimizer", http.StatusInternalServerError, DefaultLoggingConfig(), true, "ERR"},
		{"Skips static files when configured", "/static/app.css", http.StatusOK, DefaultLoggingConfig(), false, ""},
		{"Logs static files when enabled", "/static/app.css", http.StatusOK, LoggingConfig{LogStaticFiles: true, SkipExtensions: []string{".css"}}, true, "INF"},
		{"Skips health checks when disabled", "/healthz", http.StatusOK, LoggingConfig{LogHealthChecks: false}, false, ""},
		{"Skips configured paths", "/api/engines", http.StatusOK, LoggingConfig{SkipPaths: []string{"/api/engines"}, LogHealthChecks: true}, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logging.SetOutput(&buf)
			defer logging.SetOutput(nil)

			handler := Logger(tt.config)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("ok"))
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			req.Header.Set("User-Agent", "test agent")
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}

			logged := strings.Contains(buf.String(), tt.path)
			if logged != tt.expectLogging {
				t.Errorf("logged=%v, want %v; output: %q", logged, tt.expectLogging, buf.String())
			}
			if tt.expectLogging && !strings.Contains(buf.String(), tt.expectLevel) {
				t.Errorf("expected level %s in %q", tt.expectLevel, buf.String())
			}
			if tt.expectLogging && !strings.Contains(buf.String(), `"test agent"`) {
				t.Errorf("user agent should be quoted: %q", buf.String())
			}
		})
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"line\nbreak", "line break"},
		{"cr\rlf", "cr lf"},
		{"nul\x00byte", "nulbyte"},
		{"\x1b[31mred", "[31mred"},
		{"tab\tkept", "tab\tkept"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.in); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.RemoteAddr = "127.0.0.1:5555"
	if got := getClientIP(req); got != "127.0.0.1" {
		t.Errorf("getClientIP() = %q", got)
	}

	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	if got := getClientIP(req); got != "10.0.0.1" {
		t.Errorf("getClientIP() with XFF = %q", got)
	}
}

func TestCompressionMiddleware(t *testing.T) {
	tests := []struct {
		name              string
		path              string
		responseBody      string
		contentType       string
		acceptEncoding    string
		expectCompression bool
	}{
		{"Compresses large HTML", "/", strings.Repeat("Hello, World! ", 200), "text/html; charset=utf-8", "gzip", true},
		{"Compresses JSON", "/api/engines", strings.Repeat(`{"key":"value"}`, 200), "application/json", "gzip", true},
		{"Doesn't compress small responses", "/", "Small", "text/html", "gzip", false},
		{"Doesn't compress media", "/x", strings.Repeat("data", 500), "audio/mpeg", "gzip", false},
		{"Doesn't compress downloads", "/api/operations/abc/outputs/0", strings.Repeat("data", 500), "application/json", "gzip", false},
		{"Doesn't compress event streams", "/api/operations/abc/events", strings.Repeat("data", 500), "text/plain", "gzip", false},
		{"Respects client without gzip support", "/", strings.Repeat("data", 500), "text/html", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(tt.responseBody))
			}))

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			isCompressed := w.Header().Get("Content-Encoding") == "gzip"
			if isCompressed != tt.expectCompression {
				t.Fatalf("Expected compression=%v, got compression=%v", tt.expectCompression, isCompressed)
			}

			body := w.Body.Bytes()
			if isCompressed {
				gr, err := gzip.NewReader(w.Body)
				if err != nil {
					t.Fatalf("Failed to create gzip reader: %v", err)
				}
				defer gr.Close()
				if body, err = io.ReadAll(gr); err != nil {
					t.Fatalf("Failed to decompress: %v", err)
				}
			}
			if string(body) != tt.responseBody {
				t.Error("body does not match what the handler wrote")
			}
		})
	}
}

func TestCompressionLevels(t *testing.T) {
	for _, level := range []int{gzip.BestSpeed, gzip.BestCompression} {
		cfg := DefaultCompressionConfig()
		cfg.Level = level
		handler := Compression(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			for i := 0; i < 50; i++ {
				_, _ = w.Write([]byte(strings.Repeat("Hello, World! ", 10)))
			}
		}))

		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if w.Header().Get("Content-Encoding") != "gzip" {
			t.Errorf("level %d: expected response to be compressed", level)
		}
	}
}

func TestGzipResponseWriterBuffering(t *testing.T) {
	grw := newGzipResponseWriter(httptest.NewRecorder(), DefaultCompressionConfig())

	smallData := []byte("small")
	if n, err := grw.Write(smallData); err != nil || n != len(smallData) {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if !bytes.Equal(grw.buffer, smallData) {
		t.Error("small writes should stay buffered")
	}
}

func TestCrossOriginIsolation(t *testing.T) {
	handler := CrossOriginIsolation(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tools/audio-merge", http.NoBody))

	want := map[string]string{
		"Cross-Origin-Opener-Policy":   "same-origin",
		"Cross-Origin-Embedder-Policy": "require-corp",
		"X-Content-Type-Options":       "nosniff",
	}
	for k, v := range want {
		if got := w.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/", "/"},
		{"/health", "/health"},
		{"/api/engines", "/api/engines"},
		{"/api/operations/abc", "/api/operations/abc"},
		{"/api/operations/abc/events", "/api/operations/abc/{path}"},
		{"/a/b/c/d/e/f", "/a/b/c/{path}"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.expected {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.expected)
		}
	}
}

func TestMetricsMiddlewareUsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics(DefaultMetricsConfig()))
	r.HandleFunc("/api/operations/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods(http.MethodGet)

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/api/operations/{id}", "418")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"one", "two"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/operations/"+id, http.NoBody))
		if w.Code != http.StatusTeapot {
			t.Fatalf("unexpected status %d", w.Code)
		}
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("expected both requests under one label, got %v", got)
	}
}

func TestMetricsMiddlewareSkipPaths(t *testing.T) {
	called := false
	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	counter := metrics.HTTPRequestsTotal.WithLabelValues(http.MethodGet, "/healthz", "200")
	before := testutil.ToFloat64(counter)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody))

	if !called {
		t.Error("Expected handler to be called")
	}
	if testutil.ToFloat64(counter) != before {
		t.Error("health checks should not be recorded")
	}
}

func BenchmarkCompressionMiddleware(b *testing.B) {
	handler := Compression(DefaultCompressionConfig())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(strings.Repeat("Hello, World! ", 200)))
	}))
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Accept-Encoding", "gzip")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
