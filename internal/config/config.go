// Package config loads the patchflow service configuration from a YAML
// file with environment-variable overrides on top.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/patchflow/patchflow/internal/dedup"
)

// DefaultPath is where Load looks when no path is given
const DefaultPath = "patchflow.yaml"

// Duration is a time.Duration that unmarshals from YAML strings like "30s"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to the standard library duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full service configuration
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Window    WindowConfig    `yaml:"window"`
	Retry     RetryConfig     `yaml:"retry"`
	Processor ProcessorConfig `yaml:"processor"`
	Notify    NotifyConfig    `yaml:"notify"`
	Log       LogConfig       `yaml:"log"`
}

// StorageConfig configures the persistence backend
type StorageConfig struct {
	// Path is the SQLite database file path
	Path string `yaml:"path"`
}

// DedupConfig configures the deduplication engine
type DedupConfig struct {
	SemanticThreshold float64 `yaml:"semantic_threshold"`
	SimilarThreshold  float64 `yaml:"similar_threshold"`
	LookbackHours     int     `yaml:"lookback_hours"`
	MaxCandidates     int     `yaml:"max_candidates"`
}

// WindowConfig configures the operational time-of-day window
type WindowConfig struct {
	Start    string `yaml:"start"`    // "HH:MM"
	End      string `yaml:"end"`      // "HH:MM"
	Timezone string `yaml:"timezone"` // IANA name
}

// RetryConfig configures the enrichment retry controller
type RetryConfig struct {
	MaxRetries int      `yaml:"max_retries"`
	BaseDelay  Duration `yaml:"base_delay"`
	MaxDelay   Duration `yaml:"max_delay"`
}

// ProcessorConfig configures the enrichment processor
type ProcessorConfig struct {
	MaxConcurrent int      `yaml:"max_concurrent"`
	CacheTTL      Duration `yaml:"cache_ttl"`
}

// NotifyConfig configures the notification sink
type NotifyConfig struct {
	FlushInterval Duration `yaml:"flush_interval"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is a logrus level name: debug, info, warn, error
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file or overrides exist
func Default() *Config {
	d := dedup.DefaultConfig()
	return &Config{
		Storage: StorageConfig{Path: ".patchflow/patchflow.db"},
		Dedup: DedupConfig{
			SemanticThreshold: d.SemanticThreshold,
			SimilarThreshold:  d.SimilarThreshold,
			LookbackHours:     int(d.LookbackWindow / time.Hour),
			MaxCandidates:     d.MaxCandidates,
		},
		Window: WindowConfig{
			Start:    "09:00",
			End:      "17:00",
			Timezone: "UTC",
		},
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  Duration(time.Second),
			MaxDelay:   Duration(30 * time.Second),
		},
		Processor: ProcessorConfig{
			MaxConcurrent: 4,
			CacheTTL:      Duration(5 * time.Minute),
		},
		Notify: NotifyConfig{
			FlushInterval: Duration(30 * time.Second),
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the config file at path (DefaultPath when empty), applies
// environment overrides, and validates the result. A missing file is not
// an error: defaults plus environment apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to env overrides
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers PATCHFLOW_* environment variables over the loaded values
func (c *Config) applyEnv() {
	if v := os.Getenv("PATCHFLOW_DB_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("PATCHFLOW_WINDOW_START"); v != "" {
		c.Window.Start = v
	}
	if v := os.Getenv("PATCHFLOW_WINDOW_END"); v != "" {
		c.Window.End = v
	}
	if v := os.Getenv("PATCHFLOW_WINDOW_TIMEZONE"); v != "" {
		c.Window.Timezone = v
	}
	if v := os.Getenv("PATCHFLOW_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("PATCHFLOW_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Processor.MaxConcurrent = n
		}
	}

	// Dedup overrides share the engine's own env contract
	d := dedup.LoadFromEnv()
	defaults := dedup.DefaultConfig()
	if d.SemanticThreshold != defaults.SemanticThreshold {
		c.Dedup.SemanticThreshold = d.SemanticThreshold
	}
	if d.SimilarThreshold != defaults.SimilarThreshold {
		c.Dedup.SimilarThreshold = d.SimilarThreshold
	}
	if d.LookbackWindow != defaults.LookbackWindow {
		c.Dedup.LookbackHours = int(d.LookbackWindow / time.Hour)
	}
	if d.MaxCandidates != defaults.MaxCandidates {
		c.Dedup.MaxCandidates = d.MaxCandidates
	}
}

// DedupEngine converts the dedup section into the engine's own config type
func (c *Config) DedupEngine() dedup.Config {
	return dedup.Config{
		SemanticThreshold: c.Dedup.SemanticThreshold,
		SimilarThreshold:  c.Dedup.SimilarThreshold,
		LookbackWindow:    time.Duration(c.Dedup.LookbackHours) * time.Hour,
		MaxCandidates:     c.Dedup.MaxCandidates,
	}
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}
	if err := c.DedupEngine().Validate(); err != nil {
		return fmt.Errorf("invalid dedup config: %w", err)
	}
	if !validClockTime(c.Window.Start) || !validClockTime(c.Window.End) {
		return fmt.Errorf("window times must be HH:MM (got %q-%q)", c.Window.Start, c.Window.End)
	}
	if c.Window.Timezone == "" {
		return fmt.Errorf("window timezone is required")
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("max retries must be non-negative (got %d)", c.Retry.MaxRetries)
	}
	if c.Retry.BaseDelay <= 0 {
		return fmt.Errorf("base delay must be positive (got %v)", c.Retry.BaseDelay)
	}
	if c.Processor.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent must be positive (got %d)", c.Processor.MaxConcurrent)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Log.Level)
	}
	return nil
}

// validClockTime checks an "HH:MM" time-of-day string
func validClockTime(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	hh, err := strconv.Atoi(s[:2])
	if err != nil || hh < 0 || hh > 23 {
		return false
	}
	mm, err := strconv.Atoi(s[3:])
	if err != nil || mm < 0 || mm > 59 {
		return false
	}
	return true
}
