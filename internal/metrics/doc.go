// Package metrics provides Prometheus instrumentation for the media-toolbox
// application.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "media_toolbox_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Engine Session Metrics
//
// Recorded by the observer returned from [NewSessionObserver]:
//   - EngineLoadsTotal: Counter of load attempts by session and status
//   - EngineLoadDuration: Histogram of load time by session
//   - EngineState: Gauge set to 1 for the current state of each session
//   - EngineExecTotal: Counter of engine invocations by session and status
//   - EngineExecDuration: Histogram of invocation time by session
//   - EngineWorkspaceBytes: Gauge of scratch filesystem usage by session
//
// ## Operation Metrics
//
//   - OperationsTotal: Counter by tool and status (succeeded/failed/rejected/busy)
//   - OperationDuration: Histogram of operation time by tool
//   - OperationsInProgress: Gauge of running operations by tool
//   - OperationInputBytes, OperationOutputBytes: Byte counters by tool
//   - UploadRejectionsTotal: Counter of intake rejections by tool and reason
//   - RetainedOutputBytes: Gauge of result bytes held for download
//
// # Collector
//
// [Collector] periodically pulls [Stats] from a [StatsProvider] and updates
// the workspace and retained-output gauges:
//
//	collector := metrics.NewCollector(provider, 30*time.Second)
//	collector.Start()
//	defer collector.Stop()
//
// # Prometheus Queries
//
// Failure rate by tool:
//
//	sum(rate(media_toolbox_operations_total{status="failed"}[5m])) by (tool)
//
// P95 engine invocation time:
//
//	histogram_quantile(0.95, sum(rate(media_toolbox_engine_exec_duration_seconds_bucket[5m])) by (le, session))
package metrics
