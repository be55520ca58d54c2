package handlers

import (
	"html/template"
	"sync/atomic"
	"time"

	"media-toolbox/internal/catalog"
	"media-toolbox/internal/operations"
	"media-toolbox/internal/session"
)

// Handlers serves the tool pages and the operations API.
type Handlers struct {
	catalog  *catalog.Catalog
	registry *operations.Registry
	sessions map[catalog.ID]*session.Session
	pages    *template.Template
	started  time.Time
	memory   Admitter

	shuttingDown atomic.Bool
}

// Admitter decides whether an upload of about n bytes may be accepted.
// *memory.Guard implements it.
type Admitter interface {
	Admit(n int64) error
}

// New creates the handlers. sessions holds the engine session of every tool
// that needs one.
func New(c *catalog.Catalog, reg *operations.Registry, sessions map[catalog.ID]*session.Session) *Handlers {
	return &Handlers{
		catalog:  c,
		registry: reg,
		sessions: sessions,
		pages:    parsePages(),
		started:  time.Now(),
	}
}

// sessionInfos returns the engine sessions in catalog order.
func (h *Handlers) sessionInfos() []session.Info {
	var infos []session.Info
	for _, id := range h.catalog.EngineTools() {
		if s, ok := h.sessions[id]; ok {
			infos = append(infos, s.Info())
		}
	}
	return infos
}

// SetMemoryGuard makes StartTool consult a before reading an upload.
func (h *Handlers) SetMemoryGuard(a Admitter) {
	h.memory = a
}
