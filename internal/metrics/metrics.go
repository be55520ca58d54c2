package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_toolbox_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_toolbox_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_toolbox_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Engine session metrics
var (
	EngineLoadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_toolbox_engine_loads_total",
			Help: "Total number of engine load attempts",
		},
		[]string{"session", "status"},
	)

	EngineLoadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_toolbox_engine_load_duration_seconds",
			Help:    "Engine load duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"session"},
	)

	EngineState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_toolbox_engine_state",
			Help: "Engine session lifecycle state (1 for the current state)",
		},
		[]string{"session", "state"},
	)

	EngineExecTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_toolbox_engine_exec_total",
			Help: "Total number of engine invocations",
		},
		[]string{"session", "status"},
	)

	EngineExecDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_toolbox_engine_exec_duration_seconds",
			Help:    "Engine invocation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"session"},
	)

	EngineWorkspaceBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_toolbox_engine_workspace_bytes",
			Help: "Bytes currently held in an engine's scratch filesystem",
		},
		[]string{"session"},
	)
)

// Operation metrics
var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_toolbox_operations_total",
			Help: "Total number of tool operations by outcome",
		},
		[]string{"tool", "status"},
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_toolbox_operation_duration_seconds",
			Help:    "Tool operation duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"tool"},
	)

	OperationsInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_toolbox_operations_in_progress",
			Help: "Number of tool operations currently running",
		},
		[]string{"tool"},
	)

	OperationInputBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_toolbox_operation_input_bytes_total",
			Help: "Total bytes submitted to tool operations",
		},
		[]string{"tool"},
	)

	OperationOutputBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_toolbox_operation_output_bytes_total",
			Help: "Total bytes produced by successful tool operations",
		},
		[]string{"tool"},
	)

	UploadRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_toolbox_upload_rejections_total",
			Help: "Total number of files rejected at intake",
		},
		[]string{"tool", "reason"},
	)

	RetainedOutputBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_toolbox_retained_output_bytes",
			Help: "Bytes of finished results held in memory for download",
		},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_toolbox_memory_usage_ratio",
			Help: "Heap in use as a fraction of the memory limit",
		},
	)

	MemoryRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_toolbox_memory_rejections_total",
			Help: "Total number of uploads refused because memory was low",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_toolbox_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}

// StatusLabel maps an error to the status label used by the counters above.
func StatusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
