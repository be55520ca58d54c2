package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"

	"media-toolbox/internal/catalog"
	"media-toolbox/internal/logging"
	"media-toolbox/internal/media"
	"media-toolbox/internal/mediatypes"
	"media-toolbox/internal/startup"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

type pageData struct {
	Title   string
	Version string
	Tools   []catalog.Tool
	Tool    *catalog.Tool
	Limit   string
	// MaxBytes lets the page refuse oversized files before uploading them.
	MaxBytes int64

	AudioFormats []mediatypes.AudioFormat
	VideoFormats []mediatypes.VideoFormat
	ImageFormats []mediatypes.ImageFormat
	Qualities    []mediatypes.Quality

	DefaultQuality      int
	DefaultMaxDimension int
	DefaultMaxSizeMB    float64
}

func parsePages() *template.Template {
	funcs := template.FuncMap{
		"limitLabel": func(t catalog.Tool) string { return t.Rule().LimitLabel() },
	}
	return template.Must(template.New("pages").Funcs(funcs).ParseFS(templateFS, "templates/*.html"))
}

func (h *Handlers) newPageData(title string) pageData {
	return pageData{
		Title:               title,
		Version:             startup.Version,
		Tools:               h.catalog.All(),
		AudioFormats:        mediatypes.AudioFormats,
		VideoFormats:        mediatypes.VideoFormats,
		ImageFormats:        mediatypes.ImageFormats,
		Qualities:           mediatypes.Qualities,
		DefaultQuality:      media.DefaultQuality,
		DefaultMaxDimension: media.DefaultMaxWidthOrHeight,
		DefaultMaxSizeMB:    media.DefaultMaxSizeMB,
	}
}

// Index renders the tool list.
func (h *Handlers) Index(w http.ResponseWriter, _ *http.Request) {
	h.render(w, "index.html", h.newPageData("Tools"))
}

// ToolPage renders the page of one tool.
func (h *Handlers) ToolPage(w http.ResponseWriter, r *http.Request) {
	tool, ok := h.catalog.Get(catalog.ID(mux.Vars(r)["tool"]))
	if !ok {
		http.Error(w, "Tool not found", http.StatusNotFound)
		return
	}

	data := h.newPageData(tool.Title)
	data.Tool = &tool
	rule := tool.Rule()
	data.Limit = rule.LimitLabel()
	data.MaxBytes = rule.MaxBytes
	h.render(w, "tool.html", data)
}

// Static serves the embedded stylesheet and script under /static/.
func (h *Handlers) Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}

// render executes into a buffer first so a template error never leaves a
// half-written page.
func (h *Handlers) render(w http.ResponseWriter, name string, data pageData) {
	var buf bytes.Buffer
	if err := h.pages.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Error("failed to render %s: %v", name, err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if _, err := buf.WriteTo(w); err != nil {
		logging.Debug("failed to write %s: %v", name, err)
	}
}
