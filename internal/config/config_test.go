package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, time.Second, cfg.Simulation.TickInterval)
	assert.Equal(t, 800*time.Millisecond, cfg.Simulation.ValidationLatencyMin)
	assert.Equal(t, 1200*time.Millisecond, cfg.Simulation.ValidationLatencyMax)
	assert.Equal(t, 24*time.Hour, cfg.Simulation.ValidationFreshness)
	assert.Equal(t, "127.0.0.1:8080", cfg.GetAPIAddress())
	assert.True(t, cfg.IsAPIEnabled())
	assert.False(t, cfg.IsDaemonMode())
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().API.Port, cfg.API.Port)
}

func TestLoadOverridesDefaults(t *testing.T) {
	content := []byte(`
api:
  port: 9090
  listen_addr: 0.0.0.0
simulation:
  tick_interval: 250000000
  seed: 42
state:
  path: /tmp/scandeck-test-state.json
logging:
  level: debug
  format: json
`)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.GetAPIAddress())
	assert.Equal(t, 250*time.Millisecond, cfg.Simulation.TickInterval)
	assert.Equal(t, int64(42), cfg.Simulation.Seed)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Untouched sections keep their defaults.
	assert.Equal(t, 24*time.Hour, cfg.Simulation.ValidationFreshness)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api: [broken"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero tick interval", func(c *Config) { c.Simulation.TickInterval = 0 }},
		{"negative latency min", func(c *Config) { c.Simulation.ValidationLatencyMin = -time.Second }},
		{"latency max below min", func(c *Config) {
			c.Simulation.ValidationLatencyMin = time.Second
			c.Simulation.ValidationLatencyMax = time.Millisecond
		}},
		{"zero freshness", func(c *Config) { c.Simulation.ValidationFreshness = 0 }},
		{"state enabled without path", func(c *Config) { c.State.Path = "" }},
		{"bad api port", func(c *Config) { c.API.Port = 70000 }},
		{"empty listen address", func(c *Config) { c.API.ListenAddr = "" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateDisabledSubsystems(t *testing.T) {
	cfg := Default()
	cfg.API.Enabled = false
	cfg.API.Port = 0 // port is not checked when the API is off
	assert.NoError(t, cfg.Validate())

	cfg = Default()
	cfg.State.Disabled = true
	cfg.State.Path = ""
	assert.NoError(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved", "config.yaml")

	cfg := Default()
	cfg.API.Port = 9999
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, loaded.API.Port)
	assert.Equal(t, cfg.Simulation.TickInterval, loaded.Simulation.TickInterval)
}
