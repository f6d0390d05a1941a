package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// AppConfig captures configuration for the server, loader, analysis defaults and observability.
type AppConfig struct {
	Server   ServerConfig   `toml:"server" yaml:"server"`
	Paths    PathsConfig    `toml:"paths" yaml:"paths"`
	Analysis AnalysisConfig `toml:"analysis" yaml:"analysis"`
	Loader   LoaderConfig   `toml:"loader" yaml:"loader"`
	Logging  LoggingConfig  `toml:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `toml:"metrics" yaml:"metrics"`
}

// ServerConfig controls network settings.
type ServerConfig struct {
	Listen string `toml:"listen" yaml:"listen"`
}

// PathsConfig configures the on-disk layout.
type PathsConfig struct {
	ProfileDir string `toml:"profile_dir" yaml:"profile_dir"`
	// OutputDir enables the export log when set.
	OutputDir string `toml:"output_dir" yaml:"output_dir"`
}

// AnalysisConfig selects the default profile and batch parallelism.
type AnalysisConfig struct {
	Profile string `toml:"profile" yaml:"profile"`
	Workers int    `toml:"workers" yaml:"workers"`
}

// LoaderConfig controls document acquisition.
type LoaderConfig struct {
	Extensions    []string      `toml:"extensions" yaml:"extensions"`
	WatchDebounce Duration `toml:"watch_debounce" yaml:"watch_debounce"`
}

// LoggingConfig sets the log level and toggles request logs.
type LoggingConfig struct {
	Level       string `toml:"level" yaml:"level"`
	RequestLogs *bool  `toml:"request_logs" yaml:"request_logs"`
}

// Duration is a time.Duration written as a Go duration string ("250ms", "1s") in config files.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("parse duration: %w", err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// MetricsConfig enables counters/telemetry endpoints.
type MetricsConfig struct {
	Enabled *bool `toml:"enabled" yaml:"enabled"`
}

// DefaultConfig returns the baseline configuration used when no file is supplied.
func DefaultConfig() AppConfig {
	return AppConfig{
		Server:   ServerConfig{Listen: ":8080"},
		Paths:    PathsConfig{ProfileDir: "data/profiles"},
		Analysis: AnalysisConfig{Profile: "standard", Workers: 4},
		Loader: LoaderConfig{
			Extensions:    []string{".txt", ".pdf"},
			WatchDebounce: Duration(250 * time.Millisecond),
		},
		Logging: LoggingConfig{Level: "info", RequestLogs: boolPtr(true)},
		Metrics: MetricsConfig{Enabled: boolPtr(true)},
	}
}

// Load reads the provided config path, merging it onto the defaults.
func Load(path string) (AppConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var fileCfg AppConfig
	switch ext {
	case ".toml":
		if err := toml.Unmarshal(content, &fileCfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse toml: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &fileCfg); err != nil {
			return AppConfig{}, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return AppConfig{}, errors.New("config file must be .toml, .yaml, or .yml")
	}

	merged := mergeConfig(cfg, fileCfg)
	if err := merged.Validate(); err != nil {
		return AppConfig{}, err
	}
	return merged, nil
}

func mergeConfig(base, override AppConfig) AppConfig {
	if override.Server.Listen != "" {
		base.Server.Listen = override.Server.Listen
	}
	if override.Paths.ProfileDir != "" {
		base.Paths.ProfileDir = override.Paths.ProfileDir
	}
	if override.Paths.OutputDir != "" {
		base.Paths.OutputDir = override.Paths.OutputDir
	}

	if override.Analysis.Profile != "" {
		base.Analysis.Profile = override.Analysis.Profile
	}
	if override.Analysis.Workers != 0 {
		base.Analysis.Workers = override.Analysis.Workers
	}

	if len(override.Loader.Extensions) > 0 {
		base.Loader.Extensions = override.Loader.Extensions
	}
	if override.Loader.WatchDebounce != 0 {
		base.Loader.WatchDebounce = override.Loader.WatchDebounce
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.RequestLogs != nil {
		base.Logging.RequestLogs = override.Logging.RequestLogs
	}

	if override.Metrics.Enabled != nil {
		base.Metrics.Enabled = override.Metrics.Enabled
	}

	return base
}

// Validate rejects settings that cannot be acted on.
func (cfg AppConfig) Validate() error {
	if cfg.Analysis.Workers < 1 {
		return fmt.Errorf("analysis.workers must be >= 1, got %d", cfg.Analysis.Workers)
	}
	if cfg.Loader.WatchDebounce < 0 {
		return errors.New("loader.watch_debounce must not be negative")
	}
	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		return err
	}
	return nil
}

// ParseLevel maps a level name onto slog.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid logging.level %q", name)
	}
	return level, nil
}

// RequestLogsEnabled defaults to true when unset.
func (cfg AppConfig) RequestLogsEnabled() bool {
	return cfg.Logging.RequestLogs == nil || *cfg.Logging.RequestLogs
}

// MetricsEnabled reports whether telemetry should be initialized.
func (cfg AppConfig) MetricsEnabled() bool {
	return cfg.Metrics.Enabled != nil && *cfg.Metrics.Enabled
}

func boolPtr(v bool) *bool {
	return &v
}
