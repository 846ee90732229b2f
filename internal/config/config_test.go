package config

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vitalis-app/sentinel/internal/anomaly"
	"github.com/vitalis-app/sentinel/internal/models"
)

func TestLoad_DefaultsWhenMissing(t *testing.T) {
	cfg, warnings, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, 2*time.Second, cfg.Collection.Interval.Duration)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.Interval.Duration)
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.Window.Duration)
	assert.Equal(t, 300*time.Second, cfg.Notifications.Cooldown.Duration)
	assert.Equal(t, 10, cfg.Storage.RetentionDays)
	assert.Equal(t, 240*time.Hour, cfg.Retention())
	assert.InDelta(t, anomaly.DefaultContamination, cfg.Anomaly.Contamination, 1e-9)
	assert.Equal(t, 90.0, cfg.Thresholds.For("cpu").Critical)
}

func TestLoadFromBytes_OverridesDefaults(t *testing.T) {
	data := []byte(`
pipeline:
  interval: 1m
anomaly:
  contamination: 0.1
thresholds:
  cpu:
    warn: 60
    critical: 80
notifications:
  key_cooldowns:
    system: 10m
`)
	cfg, warnings, err := LoadFromBytes(data)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, time.Minute, cfg.Pipeline.Interval.Duration)
	assert.InDelta(t, 0.1, cfg.Anomaly.Contamination, 1e-9)
	assert.Equal(t, 80.0, cfg.Thresholds.For("cpu").Critical)
	// untouched resources keep their defaults
	assert.Equal(t, 95.0, cfg.Thresholds.For("memory").Critical)
	assert.Equal(t, 10*time.Minute, cfg.Notifications.KeyCooldowns["system"].Duration)
}

func TestLoadFromBytes_BadValuesKeepDefaults(t *testing.T) {
	data := []byte(`
anomaly:
  contamination: lots
notifications:
  cooldown: soon
`)
	cfg, warnings, err := LoadFromBytes(data)
	require.NoError(t, err)
	assert.Len(t, warnings, 2)
	assert.InDelta(t, anomaly.DefaultContamination, cfg.Anomaly.Contamination, 1e-9)
	assert.Equal(t, 300*time.Second, cfg.Notifications.Cooldown.Duration)
}

func TestLoadFromBytes_MalformedYAML(t *testing.T) {
	_, _, err := LoadFromBytes([]byte("pipeline: [unclosed"))
	assert.Error(t, err)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		check  func(*testing.T, *Config)
	}{
		{
			name:   "negative cooldown becomes zero",
			mutate: func(c *Config) { c.Notifications.Cooldown = Duration{-time.Second} },
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, time.Duration(0), c.Notifications.Cooldown.Duration)
			},
		},
		{
			name:   "contamination clamped",
			mutate: func(c *Config) { c.Anomaly.Contamination = 0.9 },
			check: func(t *testing.T, c *Config) {
				assert.InDelta(t, anomaly.MaxContamination, c.Anomaly.Contamination, 1e-9)
			},
		},
		{
			name:   "inverted threshold reset",
			mutate: func(c *Config) { c.Thresholds["disk"] = models.Threshold{Warn: 95, Critical: 85} },
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 85.0, c.Thresholds.For("disk").Warn)
				assert.Equal(t, 95.0, c.Thresholds.For("disk").Critical)
			},
		},
		{
			name:   "NaN threshold reset",
			mutate: func(c *Config) { c.Thresholds["cpu"] = models.Threshold{Warn: math.NaN(), Critical: 90} },
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 75.0, c.Thresholds.For("cpu").Warn)
				assert.Equal(t, 90.0, c.Thresholds.For("cpu").Critical)
			},
		},
		{
			name:   "NaN sensitivity reset",
			mutate: func(c *Config) { c.Anomaly.Sensitivity = math.NaN() },
			check: func(t *testing.T, c *Config) {
				assert.InDelta(t, anomaly.DefaultSensitivity, c.Anomaly.Sensitivity, 1e-9)
			},
		},
		{
			name:   "zero interval reset",
			mutate: func(c *Config) { c.Pipeline.Interval = Duration{} },
			check: func(t *testing.T, c *Config) {
				assert.Equal(t, 30*time.Second, c.Pipeline.Interval.Duration)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			warnings := cfg.Sanitize()
			assert.Len(t, warnings, 1)
			tt.check(t, cfg)
		})
	}
}

func TestLoadFromBytes_NaNThresholdFallsBack(t *testing.T) {
	data := []byte(`
thresholds:
  memory:
    warn: .nan
    critical: .nan
`)
	cfg, warnings, err := LoadFromBytes(data)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "thresholds.memory")
	assert.Equal(t, 80.0, cfg.Thresholds.For("memory").Warn)
	assert.Equal(t, 95.0, cfg.Thresholds.For("memory").Critical)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SENTINEL_DB_PATH", "/tmp/env.db")
	t.Setenv("SENTINEL_SENSITIVITY", "1.5")
	t.Setenv("SENTINEL_RETENTION_DAYS", "many")

	cfg, warnings, err := LoadFromBytes([]byte("storage:\n  db_path: ./file.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/env.db", cfg.Storage.DBPath)
	assert.InDelta(t, 1.5, cfg.Anomaly.Sensitivity, 1e-9)
	assert.Equal(t, 10, cfg.Storage.RetentionDays)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "SENTINEL_RETENTION_DAYS")
}

func TestWriteConfig_RoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "sentinel.yaml")

	cfg := DefaultConfig()
	cfg.Pipeline.Interval = Duration{45 * time.Second}
	require.NoError(t, WriteConfig(cfg, path))

	loaded, warnings, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, 45*time.Second, loaded.Pipeline.Interval.Duration)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("anomaly:\n  sensitivity: 1\n"), 0640))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zap.NewNop(), func(c *Config) { reloaded <- c })
	}()

	// the watcher registers asynchronously; keep rewriting until it notices.
	// Writes are spaced wider than the reload debounce.
	deadline := time.After(10 * time.Second)
	tick := time.NewTicker(500 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case cfg := <-reloaded:
			assert.InDelta(t, 2.0, cfg.Anomaly.Sensitivity, 1e-9)
			cancel()
			assert.NoError(t, <-done)
			return
		case <-tick.C:
			require.NoError(t, os.WriteFile(path, []byte("anomaly:\n  sensitivity: 2\n"), 0640))
		case <-deadline:
			t.Fatal("config change was not picked up")
		}
	}
}

func TestWatch_RequiresPath(t *testing.T) {
	assert.Error(t, Watch(context.Background(), "", zap.NewNop(), func(*Config) {}))
}
