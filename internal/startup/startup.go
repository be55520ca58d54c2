package startup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"media-toolbox/internal/logging"
)

// Set with -ldflags "-X media-toolbox/internal/startup.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo is reported by /version and `media-toolbox version`.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the build information of the running binary.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

func section(title string) {
	logging.Info("")
	logging.Info("== %s ==", title)
}

func logStart() {
	logging.Info("media-toolbox %s (commit %s, built %s)", Version, Commit, BuildTime)
	logging.Info("%s %s/%s, GOMAXPROCS=%d of %d CPUs",
		runtime.Version(), runtime.GOOS, runtime.GOARCH, runtime.GOMAXPROCS(0), runtime.NumCPU())
}

// LogEngineInit lists the engine sessions and checks that the FFmpeg binary
// runs. Engines themselves load on first use, so a missing binary only
// affects the audio and video tools.
func LogEngineInit(ffmpegPath string, sessions []string) {
	section("Engines")
	logging.Info("  Sessions: %s", strings.Join(sessions, ", "))

	version, err := ffmpegVersion(ffmpegPath)
	if err != nil {
		logging.Warn("  FFmpeg unavailable: %v", err)
		logging.Warn("  Audio and video tools will fail until %s is installed", ffmpegPath)
		return
	}
	logging.Info("  FFmpeg: %s", version)
}

// LogImageInit reports whether WebP output is available.
func LogImageInit(vipsAvailable bool) {
	if vipsAvailable {
		logging.Info("  WebP: libvips")
		return
	}
	logging.Warn("  WebP: unavailable (libvips not loaded)")
}

// LogRoutes lists the router's routes at debug level along with the access
// log filters.
func LogRoutes(router *mux.Router, logStaticFiles, logHealthChecks bool) {
	section("HTTP")
	if logging.IsDebugEnabled() {
		err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
			path, err := route.GetPathTemplate()
			if err != nil {
				return nil
			}
			methods, err := route.GetMethods()
			if err != nil {
				methods = []string{"*"}
			}
			logging.Debug("  %-10s %s", strings.Join(methods, ","), path)
			return nil
		})
		if err != nil {
			logging.Warn("  Failed to list routes: %v", err)
		}
	}
	logging.Info("  Access log: static files %s, health checks %s", onOff(logStaticFiles), onOff(logHealthChecks))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// ServerConfig describes the listening server for LogServerStarted.
type ServerConfig struct {
	BindAddr        string
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogServerStarted reports the listening addresses.
func LogServerStarted(config ServerConfig) {
	section("Ready")
	logging.Info("  Tools:   http://%s:%s/ (started in %v)", config.BindAddr, config.Port, config.StartupDuration.Round(time.Millisecond))
	if config.MetricsEnabled {
		logging.Info("  Metrics: http://%s:%s/metrics", config.BindAddr, config.MetricsPort)
	}
}

// LogShutdownInitiated marks the start of a graceful shutdown.
func LogShutdownInitiated(signal string) {
	section("Shutdown (" + signal + ")")
}

// ShutdownStep runs fn and logs how it went. Failures are logged, not
// returned, so the remaining steps still run.
func ShutdownStep(name string, fn func() error) {
	start := time.Now()
	logging.Debug("  %s...", name)
	if err := fn(); err != nil {
		logging.Warn("  %s failed: %v", name, err)
		return
	}
	logging.Info("  [OK] %s (%v)", name, time.Since(start).Round(time.Millisecond))
}

// LogShutdownComplete marks the end of a graceful shutdown.
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// prepareWorkDir creates dir if needed and checks that engines can write
// scratch files in it.
func prepareWorkDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	err = errors.Join(f.Close(), os.Remove(name))
	if err != nil {
		logging.Warn("Failed to remove %s: %v", name, err)
	}
	return nil
}

// ffmpegVersion resolves binary and returns the first line of its -version
// output.
func ffmpegVersion(binary string) (string, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH", binary)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := exec.CommandContext(ctx, path, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", path, err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}
