package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/mux"

	"media-toolbox/internal/catalog"
	"media-toolbox/internal/engine/enginetest"
	"media-toolbox/internal/operations"
	"media-toolbox/internal/session"
)

// testEnv bundles handlers wired to fake engines.
type testEnv struct {
	h      *Handlers
	router *mux.Router
	fakes  map[catalog.ID]*enginetest.Fake
}

func newTestEnv(t *testing.T, limits map[string]int64) *testEnv {
	t.Helper()

	c := catalog.New(limits)
	reg := operations.NewRegistry(context.Background(), c)
	t.Cleanup(reg.Wait)

	fakes := make(map[catalog.ID]*enginetest.Fake)
	sessions := make(map[catalog.ID]*session.Session)
	for _, id := range c.EngineTools() {
		f := enginetest.New()
		fakes[id] = f
		sessions[id] = session.New(string(id), f)
	}

	h := New(c, reg, sessions)
	return &testEnv{h: h, router: newTestRouter(h), fakes: fakes}
}

// newTestRouter registers the same routes as the server.
func newTestRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/tools/{tool}", h.ToolPage).Methods("GET")
	r.PathPrefix("/static/").Handler(h.Static())

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tools/{tool}", h.StartTool).Methods("POST")
	api.HandleFunc("/operations/{id}", h.GetOperation).Methods("GET")
	api.HandleFunc("/operations/{id}/events", h.OperationEvents).Methods("GET")
	api.HandleFunc("/operations/{id}/outputs/{index:[0-9]+}", h.DownloadOutput).Methods("GET")
	api.HandleFunc("/engines", h.ListEngines).Methods("GET")
	return r
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
}

func parseHTML(t *testing.T, w *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("failed to parse HTML: %v", err)
	}
	return doc
}

func TestIndexPage(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.get("/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}

	doc := parseHTML(t, w)
	cards := doc.Find(".tool-card")
	if cards.Length() != 5 {
		t.Fatalf("expected 5 tool cards, got %d", cards.Length())
	}

	first := cards.First()
	if href, _ := first.Find("a").Attr("href"); href != "/tools/pdf-optimizer" {
		t.Errorf("first card links to %q", href)
	}
	if got := strings.TrimSpace(first.Find(".limit").Text()); got != "Up to 100MB per file" {
		t.Errorf("limit text = %q", got)
	}
	if doc.Find("nav a[aria-current]").Length() != 0 {
		t.Error("index page should not mark a tool as current")
	}
}

func TestToolPages(t *testing.T) {
	env := newTestEnv(t, map[string]int64{"video-converter": 1024})

	tests := []struct {
		tool     string
		field    string
		multiple bool
		limit    string
		check    func(t *testing.T, doc *goquery.Document)
	}{
		{
			tool: "pdf-optimizer", field: "file", limit: "100MB",
			check: func(t *testing.T, doc *goquery.Document) {
				if sel, _ := doc.Find("select[name=quality] option[selected]").Attr("value"); sel != "medium" {
					t.Errorf("default quality = %q", sel)
				}
			},
		},
		{
			tool: "audio-merge", field: "files", multiple: true, limit: "200MB",
			check: func(t *testing.T, doc *goquery.Document) {
				if n := doc.Find("select[name=format] option").Length(); n != 4 {
					t.Errorf("expected 4 audio formats, got %d", n)
				}
			},
		},
		{
			tool: "audio-split", field: "file", limit: "200MB",
			check: func(t *testing.T, doc *goquery.Document) {
				if doc.Find(".segment input[name=start]").Length() != 1 {
					t.Error("split page should start with one segment row")
				}
			},
		},
		{
			tool: "image-converter", field: "file", limit: "50MB",
			check: func(t *testing.T, doc *goquery.Document) {
				if v, _ := doc.Find("input[name=quality]").Attr("value"); v != "80" {
					t.Errorf("default image quality = %q", v)
				}
				if v, _ := doc.Find("select[name=format] option[selected]").Attr("value"); v != "webp" {
					t.Errorf("default image format = %q", v)
				}
			},
		},
		{
			tool: "video-converter", field: "file", limit: "1024MB",
			check: func(t *testing.T, doc *goquery.Document) {
				if n := doc.Find("select[name=format] option").Length(); n != 4 {
					t.Errorf("expected 4 video formats, got %d", n)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.tool, func(t *testing.T) {
			w := env.get("/tools/" + tt.tool)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			doc := parseHTML(t, w)

			input := doc.Find("input[type=file]")
			if name, _ := input.Attr("name"); name != tt.field {
				t.Errorf("file field = %q, want %q", name, tt.field)
			}
			if _, multiple := input.Attr("multiple"); multiple != tt.multiple {
				t.Errorf("multiple = %v, want %v", multiple, tt.multiple)
			}
			tool, _ := env.h.catalog.Get(catalog.ID(tt.tool))
			if accept, _ := input.Attr("accept"); accept != tool.Accept {
				t.Errorf("accept = %q, want %q", accept, tool.Accept)
			}
			if !strings.Contains(doc.Find(".file-picker span").Text(), tt.limit) {
				t.Errorf("limit %s not shown: %q", tt.limit, doc.Find(".file-picker span").Text())
			}
			if href, _ := doc.Find("nav a[aria-current=page]").Attr("href"); href != "/tools/"+tt.tool {
				t.Errorf("current nav entry = %q", href)
			}
			if form, _ := doc.Find("#tool-form").Attr("data-tool"); form != tt.tool {
				t.Errorf("form data-tool = %q", form)
			}
			wantMax := strconv.FormatInt(tool.Rule().MaxBytes, 10)
			if maxBytes, _ := doc.Find("#tool-form").Attr("data-max-bytes"); maxBytes != wantMax {
				t.Errorf("form data-max-bytes = %q, want %s", maxBytes, wantMax)
			}
			if limit, _ := doc.Find("#tool-form").Attr("data-limit"); limit != tt.limit {
				t.Errorf("form data-limit = %q, want %s", limit, tt.limit)
			}
			tt.check(t, doc)
		})
	}
}

func TestToolPageNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	if w := env.get("/tools/nope"); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestStaticAssets(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		path     string
		contains string
	}{
		{"/static/app.js", "EventSource"},
		{"/static/app.js", "dataset.maxBytes"},
		{"/static/app.css", ".tool-card"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := env.get(tt.path)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("%s should contain %q", tt.path, tt.contains)
			}
		})
	}

	if w := env.get("/static/missing.js"); w.Code != http.StatusNotFound {
		t.Errorf("missing asset status = %d", w.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.get("/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HealthResponse
	decode(t, w, &resp)

	if resp.Status != statusHealthy || !resp.Ready {
		t.Errorf("unexpected health %+v", resp)
	}
	if len(resp.Engines) != 3 {
		t.Fatalf("expected 3 engines, got %d", len(resp.Engines))
	}
	for _, e := range resp.Engines {
		if e.State != session.StateUnloaded {
			t.Errorf("%s state = %s", e.Name, e.State)
		}
	}
	if resp.GoVersion == "" || resp.NumCPU == 0 {
		t.Error("system info should be filled in")
	}
}

func TestHealthDegradedAfterLoadFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.fakes[catalog.VideoConverter].LoadFunc = func(context.Context) error {
		return errors.New("binary missing")
	}

	w := env.postTool(t, "video-converter", []formFile{{field: "file", name: "clip.mp4", contentType: "video/mp4", data: []byte("video")}}, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("start status = %d: %s", w.Code, w.Body.String())
	}
	op := env.waitFor(t, w)
	if op.Status != operations.StatusFailed {
		t.Fatalf("operation should fail, got %s", op.Status)
	}

	var resp HealthResponse
	decode(t, env.get("/health"), &resp)
	if resp.Status != statusDegraded {
		t.Errorf("status = %s, want degraded", resp.Status)
	}
}

func TestLivenessCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.get("/livez")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "alive") {
		t.Errorf("GET /livez = %d %q", w.Code, w.Body.String())
	}

	head := env.do(httptest.NewRequest(http.MethodHead, "/livez", nil))
	if head.Code != http.StatusOK || head.Body.Len() != 0 {
		t.Errorf("HEAD /livez = %d with %d body bytes", head.Code, head.Body.Len())
	}
}

func TestReadinessCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	if w := env.get("/readyz"); w.Code != http.StatusOK {
		t.Errorf("status = %d before shutdown", w.Code)
	}
	env.h.SetShuttingDown()
	w := env.get("/readyz")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "not_ready") {
		t.Errorf("status = %d %q during shutdown", w.Code, w.Body.String())
	}
}

func TestGetVersion(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.get("/version")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if cc := w.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q", cc)
	}
	var info map[string]string
	decode(t, w, &info)
	if info["version"] == "" || info["goVersion"] == "" {
		t.Errorf("incomplete build info %v", info)
	}
}

func TestListEngines(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.postTool(t, "audio-split", []formFile{{field: "file", name: "song.mp3", contentType: "audio/mpeg", data: []byte("audio")}},
		map[string][]string{"start": {"00:00"}, "end": {"00:10"}})
	if w.Code != http.StatusAccepted {
		t.Fatalf("start status = %d: %s", w.Code, w.Body.String())
	}
	env.waitFor(t, w)

	var infos []session.Info
	decode(t, env.get("/api/engines"), &infos)
	if len(infos) != 3 {
		t.Fatalf("expected 3 engines, got %d", len(infos))
	}
	states := map[string]session.State{}
	for _, info := range infos {
		states[info.Name] = info.State
	}
	if states["audio-split"] != session.StateReady {
		t.Errorf("audio-split should be ready, got %s", states["audio-split"])
	}
	if states["audio-merge"] != session.StateUnloaded {
		t.Errorf("audio-merge should still be unloaded, got %s", states["audio-merge"])
	}
}

func waitDone(t *testing.T, job *operations.Job) {
	t.Helper()
	select {
	case <-job.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("operation did not finish")
	}
}
