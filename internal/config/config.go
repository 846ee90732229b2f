// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: environment variables > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vitalis-app/sentinel/internal/anomaly"
	"github.com/vitalis-app/sentinel/internal/models"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "15s", "30s", "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
// Bad values are reported as *yaml.TypeError so decoding carries on and the
// field keeps its previous value.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return &yaml.TypeError{Errors: []string{
				fmt.Sprintf("line %d: invalid duration %q: %v", value.Line, value.Value, err),
			}}
		}
		d.Duration = parsed
		return nil
	default:
		return &yaml.TypeError{Errors: []string{
			fmt.Sprintf("line %d: unsupported duration format", value.Line),
		}}
	}
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds all sentinel configuration.
type Config struct {
	Collection    CollectionConfig    `yaml:"collection"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Anomaly       AnomalyConfig       `yaml:"anomaly"`
	Forecast      ForecastConfig      `yaml:"forecast"`
	Thresholds    models.Thresholds   `yaml:"thresholds"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Storage       StorageConfig       `yaml:"storage"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// CollectionConfig holds sampling settings.
type CollectionConfig struct {
	Interval  Duration `yaml:"interval"`
	CPUWindow Duration `yaml:"cpu_window"`
}

// PipelineConfig holds decision tick settings.
type PipelineConfig struct {
	Interval         Duration `yaml:"interval"`
	Window           Duration `yaml:"window"`
	MinRows          int      `yaml:"min_rows"`
	ScoreRows        int      `yaml:"score_rows"`
	HorizonTicks     int      `yaml:"horizon_ticks"`
	DiskHorizonTicks int      `yaml:"disk_horizon_ticks"`
}

// AnomalyConfig holds isolation forest settings.
type AnomalyConfig struct {
	Contamination float64 `yaml:"contamination"`
	Sensitivity   float64 `yaml:"sensitivity"`
	Trees         int     `yaml:"trees"`
	SampleSize    int     `yaml:"sample_size"`
	Seed          int64   `yaml:"seed"`
}

// ForecastConfig holds trend projection settings.
type ForecastConfig struct {
	SaturationSamples int `yaml:"saturation_samples"`
}

// NotificationsConfig holds alert delivery settings.
type NotificationsConfig struct {
	Cooldown     Duration            `yaml:"cooldown"`
	KeyCooldowns map[string]Duration `yaml:"key_cooldowns"`
	WebhookURL   string              `yaml:"webhook_url"`
	Token        string              `yaml:"token"`
	MaxRetries   int                 `yaml:"max_retries"`
	SpoolDir     string              `yaml:"spool_dir"`
	SpoolMaxMB   int                 `yaml:"spool_max_mb"`
	TopProcesses int                 `yaml:"top_processes"`
}

// StorageConfig holds the SQLite metric store settings.
type StorageConfig struct {
	DBPath        string   `yaml:"db_path"`
	RetentionDays int      `yaml:"retention_days"`
	PruneInterval Duration `yaml:"prune_interval"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MetricsConfig holds the Prometheus endpoint settings. An empty Addr
// disables the endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Collection: CollectionConfig{
			Interval:  Duration{2 * time.Second},
			CPUWindow: Duration{500 * time.Millisecond},
		},
		Pipeline: PipelineConfig{
			Interval:         Duration{30 * time.Second},
			Window:           Duration{10 * time.Minute},
			MinRows:          anomaly.MinRows,
			ScoreRows:        5,
			HorizonTicks:     10,
			DiskHorizonTicks: 60,
		},
		Anomaly: AnomalyConfig{
			Contamination: anomaly.DefaultContamination,
			Sensitivity:   anomaly.DefaultSensitivity,
			Trees:         anomaly.DefaultTrees,
			SampleSize:    anomaly.DefaultSampleSize,
			Seed:          anomaly.DefaultSeed,
		},
		Forecast: ForecastConfig{
			SaturationSamples: 30,
		},
		Thresholds: models.DefaultThresholds(),
		Notifications: NotificationsConfig{
			Cooldown:     Duration{300 * time.Second},
			MaxRetries:   3,
			SpoolDir:     "./spool",
			SpoolMaxMB:   10,
			TopProcesses: 5,
		},
		Storage: StorageConfig{
			DBPath:        "./sentinel.db",
			RetentionDays: 10,
			PruneInterval: Duration{time.Hour},
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "./sentinel.log",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
	}
}

// LoadFromBytes parses YAML configuration from a byte slice and merges with
// defaults. Fields whose values have the wrong type keep their defaults and
// are reported as warnings; malformed YAML is an error.
func LoadFromBytes(data []byte) (*Config, []string, error) {
	cfg := DefaultConfig()
	var warnings []string

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			var typeErr *yaml.TypeError
			if !errors.As(err, &typeErr) {
				return nil, nil, fmt.Errorf("parsing config data: %w", err)
			}
			warnings = append(warnings, typeErr.Errors...)
		}
	}

	// Environment variable overrides (highest precedence)
	warnings = append(warnings, applyEnvOverrides(cfg)...)
	warnings = append(warnings, cfg.Sanitize()...)

	return cfg, warnings, nil
}

// Load reads configuration from a YAML file and merges with defaults.
// If path is empty or the file does not exist, only defaults and environment
// variables are used.
func Load(path string) (*Config, []string, error) {
	if path == "" {
		return LoadFromBytes(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("reading config file: %w", err)
		}
		return LoadFromBytes(nil)
	}

	return LoadFromBytes(data)
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// applyEnvOverrides applies SENTINEL_* environment variables. Numeric values
// that fail to parse are ignored and reported.
func applyEnvOverrides(cfg *Config) []string {
	var warnings []string

	str := func(name string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	float := func(name string, dst *float64) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: ignoring non-numeric value %q", name, v))
			return
		}
		*dst = f
	}
	integer := func(name string, dst *int) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: ignoring non-numeric value %q", name, v))
			return
		}
		*dst = n
	}
	duration := func(name string, dst *Duration) {
		v := os.Getenv(name)
		if v == "" {
			return
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: ignoring invalid duration %q", name, v))
			return
		}
		dst.Duration = d
	}

	str("SENTINEL_DB_PATH", &cfg.Storage.DBPath)
	str("SENTINEL_LOG_LEVEL", &cfg.Logging.Level)
	str("SENTINEL_LOG_FILE", &cfg.Logging.File)
	str("SENTINEL_WEBHOOK_URL", &cfg.Notifications.WebhookURL)
	str("SENTINEL_WEBHOOK_TOKEN", &cfg.Notifications.Token)
	str("SENTINEL_METRICS_ADDR", &cfg.Metrics.Addr)
	float("SENTINEL_CONTAMINATION", &cfg.Anomaly.Contamination)
	float("SENTINEL_SENSITIVITY", &cfg.Anomaly.Sensitivity)
	integer("SENTINEL_RETENTION_DAYS", &cfg.Storage.RetentionDays)
	duration("SENTINEL_COOLDOWN", &cfg.Notifications.Cooldown)

	return warnings
}

// Sanitize resets out-of-range values to safe ones and reports each change.
func (c *Config) Sanitize() []string {
	var warnings []string
	def := DefaultConfig()

	positive := func(name string, d *Duration, fallback Duration) {
		if d.Duration <= 0 {
			warnings = append(warnings, fmt.Sprintf("%s must be positive, using %s", name, fallback.Duration))
			*d = fallback
		}
	}
	positive("collection.interval", &c.Collection.Interval, def.Collection.Interval)
	positive("pipeline.interval", &c.Pipeline.Interval, def.Pipeline.Interval)
	positive("pipeline.window", &c.Pipeline.Window, def.Pipeline.Window)
	positive("storage.prune_interval", &c.Storage.PruneInterval, def.Storage.PruneInterval)

	if c.Notifications.Cooldown.Duration < 0 {
		warnings = append(warnings, "notifications.cooldown is negative, using 0")
		c.Notifications.Cooldown = Duration{}
	}
	for key, d := range c.Notifications.KeyCooldowns {
		if d.Duration < 0 {
			warnings = append(warnings, fmt.Sprintf("notifications.key_cooldowns.%s is negative, using 0", key))
			c.Notifications.KeyCooldowns[key] = Duration{}
		}
	}

	if clamped := anomaly.ClampContamination(c.Anomaly.Contamination); clamped != c.Anomaly.Contamination {
		warnings = append(warnings, fmt.Sprintf("anomaly.contamination %v out of range, using %v", c.Anomaly.Contamination, clamped))
		c.Anomaly.Contamination = clamped
	}
	if math.IsNaN(c.Anomaly.Sensitivity) || math.IsInf(c.Anomaly.Sensitivity, 0) || c.Anomaly.Sensitivity <= 0 {
		warnings = append(warnings, fmt.Sprintf("anomaly.sensitivity must be positive, using %v", def.Anomaly.Sensitivity))
		c.Anomaly.Sensitivity = def.Anomaly.Sensitivity
	}

	if c.Pipeline.MinRows < anomaly.MinRows {
		warnings = append(warnings, fmt.Sprintf("pipeline.min_rows below %d, using %d", anomaly.MinRows, anomaly.MinRows))
		c.Pipeline.MinRows = anomaly.MinRows
	}
	if c.Storage.RetentionDays <= 0 {
		warnings = append(warnings, fmt.Sprintf("storage.retention_days must be positive, using %d", def.Storage.RetentionDays))
		c.Storage.RetentionDays = def.Storage.RetentionDays
	}

	if c.Thresholds == nil {
		c.Thresholds = models.DefaultThresholds()
	}
	for name, th := range c.Thresholds {
		if math.IsNaN(th.Warn) || math.IsNaN(th.Critical) ||
			th.Warn <= 0 || th.Critical > 100 || th.Warn >= th.Critical {
			fallback := models.DefaultThresholds().For(name)
			warnings = append(warnings, fmt.Sprintf("thresholds.%s invalid (warn %v, critical %v), using %v/%v",
				name, th.Warn, th.Critical, fallback.Warn, fallback.Critical))
			c.Thresholds[name] = fallback
		}
	}

	return warnings
}

// Retention returns how long stored samples are kept.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Storage.RetentionDays) * 24 * time.Hour
}
