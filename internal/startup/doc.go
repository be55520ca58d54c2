// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// [LoadConfig] starts from defaults, applies the file named by CONFIG_FILE
// (.yaml/.yml, .toml or .json, see [FileConfig]) and then the environment,
// which always wins:
//
//   - PORT: HTTP server port (default: 8080)
//   - BIND_ADDR: Listen address (default: 127.0.0.1)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - WORK_DIR: Parent of the engines' scratch directories (default: $TMPDIR/media-toolbox)
//   - FFMPEG_PATH: FFmpeg binary name or path (default: ffmpeg)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_STATIC_FILES: Log static file requests (default: false)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//
// Per-tool upload limits can only be set in the file:
//
//	limits_mb:
//	  video-converter: 1000
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo].
//
// # Lifecycle Logging
//
//   - [LogEngineInit]: engine sessions and FFmpeg availability
//   - [LogRoutes]: registered HTTP routes (debug level) and access log filters
//   - [LogServerStarted]: server endpoints and startup duration
//   - [LogShutdownInitiated], [ShutdownStep], [LogShutdownComplete]: graceful
//     shutdown, one timed line per step
package startup
