package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"media-toolbox/internal/catalog"
	"media-toolbox/internal/engine"
	"media-toolbox/internal/handlers"
	"media-toolbox/internal/logging"
	"media-toolbox/internal/media"
	"media-toolbox/internal/memory"
	"media-toolbox/internal/metrics"
	"media-toolbox/internal/middleware"
	"media-toolbox/internal/operations"
	"media-toolbox/internal/session"
	"media-toolbox/internal/startup"
)

func main() {
	startTime := time.Now()

	// Set GOMEMLIMIT before uploads start arriving
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		logging.Fatal("Configuration error: %v", err)
	}

	tools := catalog.New(config.Limits)

	// Initialize image backend
	if err := media.InitVips(); err != nil {
		logging.Warn("libvips unavailable, WebP output disabled: %v", err)
	}
	defer media.ShutdownVips()

	// Initialize engine sessions; engines load on first use
	engines := make(map[string]*engine.FFmpeg)
	sessions := make(map[catalog.ID]*session.Session)
	var sessionNames []string
	observer := metrics.NewSessionObserver()
	for _, id := range tools.EngineTools() {
		ff := engine.NewFFmpeg(engine.FFmpegConfig{
			Binary:  config.FFmpegPath,
			WorkDir: filepath.Join(config.WorkDir, string(id)),
		})
		engines[string(id)] = ff
		sessions[id] = session.New(string(id), ff, session.WithObserver(observer), session.WithPublisher(session.LogPublisher{}))
		sessionNames = append(sessionNames, string(id))
	}
	startup.LogEngineInit(config.FFmpegPath, sessionNames)
	startup.LogImageInit(media.IsVipsAvailable())

	// Operations run under the process context so shutdown stops them
	baseCtx, cancelOperations := context.WithCancel(context.Background())
	registry := operations.NewRegistry(baseCtx, tools)

	// Initialize metrics
	var toolNames []string
	for _, t := range tools.All() {
		toolNames = append(toolNames, string(t.ID))
	}
	metrics.InitializeMetrics(toolNames, sessionNames)
	metrics.SetAppInfo(startup.Version, startup.Commit, startup.GoVersion)

	collector := metrics.NewCollector(&toolboxStats{engines: engines, registry: registry}, time.Minute)
	collector.Start()

	// Refuse uploads while the heap is near its limit
	guard := memory.NewGuard(memory.DefaultConfig())
	guard.Start()

	// Initialize handlers
	h := handlers.New(tools, registry, sessions)
	h.SetMemoryGuard(guard)

	// Setup router
	router := setupRouter(h)

	startup.LogRoutes(router, config.LogStaticFiles, config.LogHealthChecks)

	// Metrics run inside the router so they can label by route template
	router.Use(middleware.Metrics(middleware.DefaultMetricsConfig()))

	// Apply isolation headers
	isolated := middleware.CrossOriginIsolation(router)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogStaticFiles = config.LogStaticFiles
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	loggedHandler := middleware.Logger(loggingConfig)(isolated)

	// Apply compression middleware
	compressionConfig := middleware.DefaultCompressionConfig()
	handler := middleware.Compression(compressionConfig)(loggedHandler)

	// Create server
	srv := &http.Server{
		Addr:         net.JoinHostPort(config.BindAddr, config.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Minute, // large uploads
		WriteTimeout: 0,                // event streams and downloads
		IdleTimeout:  60 * time.Second,
	}

	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config)
	}

	// Start graceful shutdown handler
	done := make(chan struct{})
	go func() {
		handleShutdown(srv, metricsSrv, h, registry, cancelOperations, sessions, collector, guard)
		close(done)
	}()

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		BindAddr:        config.BindAddr,
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("Server error: %v", err)
	}
	<-done
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// Pages
	r.HandleFunc("/", h.Index).Methods("GET")
	r.HandleFunc("/tools/{tool}", h.ToolPage).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/tools/{tool}", h.StartTool).Methods("POST")
	api.HandleFunc("/operations/{id}", h.GetOperation).Methods("GET")
	api.HandleFunc("/operations/{id}/events", h.OperationEvents).Methods("GET")
	api.HandleFunc("/operations/{id}/outputs/{index:[0-9]+}", h.DownloadOutput).Methods("GET")
	api.HandleFunc("/engines", h.ListEngines).Methods("GET")

	// Static files
	r.PathPrefix("/static/").Handler(h.Static())

	return r
}

func startMetricsServer(config *startup.Config) *http.Server {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              net.JoinHostPort(config.BindAddr, config.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("Metrics server error: %v", err)
		}
	}()
	return srv
}

func handleShutdown(
	srv, metricsSrv *http.Server,
	h *handlers.Handlers,
	registry *operations.Registry,
	cancelOperations context.CancelFunc,
	sessions map[catalog.ID]*session.Session,
	collector *metrics.Collector,
	guard *memory.Guard,
) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())
	h.SetShuttingDown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// No operation may start once Wait begins.
	registry.Close()

	startup.ShutdownStep("Stopping operations", func() error {
		cancelOperations()
		registry.Wait()
		return nil
	})
	startup.ShutdownStep("Shutting down HTTP server", func() error {
		return srv.Shutdown(ctx)
	})
	if metricsSrv != nil {
		startup.ShutdownStep("Shutting down metrics server", func() error {
			return metricsSrv.Shutdown(ctx)
		})
	}
	startup.ShutdownStep("Closing engines", func() error {
		var errs []error
		for id, s := range sessions {
			if err := s.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
			}
		}
		return errors.Join(errs...)
	})

	collector.Stop()
	guard.Stop()

	startup.LogShutdownComplete()
}

// toolboxStats feeds the metrics collector.
type toolboxStats struct {
	engines  map[string]*engine.FFmpeg
	registry *operations.Registry
}

func (s *toolboxStats) GetStats() metrics.Stats {
	stats := metrics.Stats{
		WorkspaceBytes: make(map[string]int64, len(s.engines)),
		RetainedBytes:  s.registry.RetainedBytes(),
	}
	for name, ff := range s.engines {
		usage, err := ff.Usage()
		if err != nil {
			logging.Debug("workspace usage for %s: %v", name, err)
			continue
		}
		stats.WorkspaceBytes[name] = usage
	}
	return stats
}
