package startup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"media-toolbox/internal/logging"
)

// Config holds all application configuration
type Config struct {
	Port            string
	BindAddr        string
	MetricsPort     string
	MetricsEnabled  bool
	WorkDir         string
	FFmpegPath      string
	LogStaticFiles  bool
	LogHealthChecks bool

	// ConfigFile is the file the settings below were read from, if any.
	ConfigFile string
	// Limits overrides per-tool upload limits in megabytes, keyed by tool ID.
	Limits map[string]int64
}

// FileConfig is the on-disk configuration. Zero values mean "unspecified".
type FileConfig struct {
	Port           string           `json:"port" yaml:"port" toml:"port"`
	BindAddr       string           `json:"bind_addr" yaml:"bind_addr" toml:"bind_addr"`
	MetricsPort    string           `json:"metrics_port" yaml:"metrics_port" toml:"metrics_port"`
	MetricsEnabled *bool            `json:"metrics_enabled" yaml:"metrics_enabled" toml:"metrics_enabled"`
	WorkDir        string           `json:"work_dir" yaml:"work_dir" toml:"work_dir"`
	FFmpegPath     string           `json:"ffmpeg_path" yaml:"ffmpeg_path" toml:"ffmpeg_path"`
	Limits         map[string]int64 `json:"limits_mb" yaml:"limits_mb" toml:"limits_mb"`
}

// LoadFile reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	if path == "" {
		return fc, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	case ".json":
		err = json.Unmarshal(b, &fc)
	case ".toml":
		err = toml.Unmarshal(b, &fc)
	default:
		return fc, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return fc, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return fc, nil
}

// LoadConfig loads configuration from CONFIG_FILE, if set, and then from
// environment variables, which take precedence.
func LoadConfig() (*Config, error) {
	logStart()
	section("Configuration")

	config, err := resolveConfig()
	if err != nil {
		return nil, err
	}

	if config.ConfigFile != "" {
		logging.Info("  CONFIG_FILE:         %s", config.ConfigFile)
	}
	logging.Info("  PORT:                %s", config.Port)
	logging.Info("  BIND_ADDR:           %s", config.BindAddr)
	logging.Info("  METRICS_PORT:        %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:     %v", config.MetricsEnabled)
	logging.Info("  WORK_DIR:            %s", config.WorkDir)
	logging.Info("  FFMPEG_PATH:         %s", config.FFmpegPath)
	logging.Info("  LOG_STATIC_FILES:    %v", config.LogStaticFiles)
	logging.Info("  LOG_HEALTH_CHECKS:   %v", config.LogHealthChecks)
	logging.Info("  LOG_LEVEL:           %s", logging.GetLevel())
	for _, tool := range sortedKeys(config.Limits) {
		logging.Info("  Limit %-16s %dMB", tool+":", config.Limits[tool])
	}

	if err := prepareWorkDir(config.WorkDir); err != nil {
		return nil, fmt.Errorf("work directory: %w", err)
	}
	logging.Info("  [OK] Work directory is writable")

	return config, nil
}

// ResolveConfig returns the merged configuration without logging it or
// preparing directories. One-shot commands use it.
func ResolveConfig() (*Config, error) {
	return resolveConfig()
}

// resolveConfig merges defaults, the config file and the environment without
// touching the filesystem beyond reading the file.
func resolveConfig() (*Config, error) {
	config := &Config{
		Port:            "8080",
		BindAddr:        "127.0.0.1",
		MetricsPort:     "9090",
		MetricsEnabled:  true,
		WorkDir:         filepath.Join(os.TempDir(), "media-toolbox"),
		FFmpegPath:      "ffmpeg",
		LogHealthChecks: true,
		Limits:          map[string]int64{},
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fc, err := LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config.ConfigFile = path
		applyFile(config, fc)
	}

	config.Port = getEnv("PORT", config.Port)
	config.BindAddr = getEnv("BIND_ADDR", config.BindAddr)
	config.MetricsPort = getEnv("METRICS_PORT", config.MetricsPort)
	config.MetricsEnabled = getEnvBool("METRICS_ENABLED", config.MetricsEnabled)
	config.WorkDir = getEnv("WORK_DIR", config.WorkDir)
	config.FFmpegPath = getEnv("FFMPEG_PATH", config.FFmpegPath)
	config.LogStaticFiles = getEnvBool("LOG_STATIC_FILES", config.LogStaticFiles)
	config.LogHealthChecks = getEnvBool("LOG_HEALTH_CHECKS", config.LogHealthChecks)

	workDir, err := filepath.Abs(config.WorkDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve work directory path: %w", err)
	}
	config.WorkDir = workDir

	return config, nil
}

func applyFile(config *Config, fc FileConfig) {
	if fc.Port != "" {
		config.Port = fc.Port
	}
	if fc.BindAddr != "" {
		config.BindAddr = fc.BindAddr
	}
	if fc.MetricsPort != "" {
		config.MetricsPort = fc.MetricsPort
	}
	if fc.MetricsEnabled != nil {
		config.MetricsEnabled = *fc.MetricsEnabled
	}
	if fc.WorkDir != "" {
		config.WorkDir = fc.WorkDir
	}
	if fc.FFmpegPath != "" {
		config.FFmpegPath = fc.FFmpegPath
	}
	for tool, limit := range fc.Limits {
		if limit <= 0 {
			logging.Warn("  Ignoring non-positive limit for %s: %d", tool, limit)
			continue
		}
		config.Limits[tool] = limit
	}
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
