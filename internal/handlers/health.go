package handlers

import (
	"net/http"
	"runtime"
	"time"

	"media-toolbox/internal/session"
	"media-toolbox/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status  string `json:"status"`
	Ready   bool   `json:"ready"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`

	// Engine sessions and work in progress
	Engines          []session.Info `json:"engines"`
	ActiveOperations int            `json:"activeOperations"`
	RetainedBytes    int64          `json:"retainedBytes"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service. A session whose last
// load failed makes the service degraded; loads are retried on the next use,
// so the status code stays 200.
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:           statusHealthy,
		Ready:            !h.shuttingDown.Load(),
		Version:          startup.Version,
		Uptime:           time.Since(h.started).Round(time.Second).String(),
		Engines:          h.sessionInfos(),
		ActiveOperations: h.registry.Running(),
		RetainedBytes:    h.registry.RetainedBytes(),
		GoVersion:        runtime.Version(),
		NumCPU:           runtime.NumCPU(),
		NumGoroutine:     runtime.NumGoroutine(),
	}

	for _, info := range response.Engines {
		if info.LastError != "" {
			response.Status = statusDegraded
			break
		}
	}

	writeJSONCode(w, response, http.StatusOK)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	// For HEAD requests, only send headers (no body)
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeJSONStatus(w, "alive")
}

// ReadinessCheck returns 200 until shutdown begins
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if h.shuttingDown.Load() {
		writeJSONCode(w, map[string]string{"status": "not_ready"}, http.StatusServiceUnavailable)
		return
	}
	writeJSONCode(w, map[string]string{"status": "ready"}, http.StatusOK)
}

// SetShuttingDown makes the readiness probe fail so load balancers stop
// sending new work.
func (h *Handlers) SetShuttingDown() {
	h.shuttingDown.Store(true)
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONCode(w, startup.GetBuildInfo(), http.StatusOK)
}

// ListEngines returns the state of every engine session.
func (h *Handlers) ListEngines(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-cache")
	writeJSONCode(w, h.sessionInfos(), http.StatusOK)
}
