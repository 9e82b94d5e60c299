// Package config defines the scandeck daemon configuration: where the
// API listens, how the simulation clock runs, and where console state is
// persisted. Configuration is loaded from a YAML file with defaults
// applied for every field that is omitted.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete daemon configuration
type Config struct {
	// Daemon configuration
	Daemon DaemonConfig `yaml:"daemon" json:"daemon"`

	// Simulation configuration
	Simulation SimulationConfig `yaml:"simulation" json:"simulation"`

	// State persistence configuration
	State StateConfig `yaml:"state" json:"state"`

	// API configuration
	API APIConfig `yaml:"api" json:"api"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// DaemonConfig holds daemon-specific settings
type DaemonConfig struct {
	// PID file location
	PIDFile string `yaml:"pid_file" json:"pid_file"`

	// Working directory
	WorkDir string `yaml:"work_dir" json:"work_dir"`

	// Enable daemon mode (fork to background)
	Daemonize bool `yaml:"daemonize" json:"daemonize"`

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Cron expression for periodic state snapshots
	SnapshotSchedule string `yaml:"snapshot_schedule" json:"snapshot_schedule"`

	// Cron expression for the custom-template revalidation sweep
	RevalidateSchedule string `yaml:"revalidate_schedule" json:"revalidate_schedule"`
}

// SimulationConfig holds the clock and probability settings for the
// progress engine and the validation simulator.
type SimulationConfig struct {
	// Interval between progress ticks
	TickInterval time.Duration `yaml:"tick_interval" json:"tick_interval"`

	// Lower bound of simulated validation latency
	ValidationLatencyMin time.Duration `yaml:"validation_latency_min" json:"validation_latency_min"`

	// Upper bound of simulated validation latency
	ValidationLatencyMax time.Duration `yaml:"validation_latency_max" json:"validation_latency_max"`

	// Delay between templates in a batch validation
	BatchThrottle time.Duration `yaml:"batch_throttle" json:"batch_throttle"`

	// How long a valid verdict stays fresh before revalidation runs again
	ValidationFreshness time.Duration `yaml:"validation_freshness" json:"validation_freshness"`

	// Optional fixed RNG seed; zero means seed from the system clock
	Seed int64 `yaml:"seed" json:"seed"`
}

// StateConfig holds state persistence settings
type StateConfig struct {
	// Path of the JSON state file
	Path string `yaml:"path" json:"path"`

	// Disable persistence entirely
	Disabled bool `yaml:"disabled" json:"disabled"`
}

// APIConfig holds API server settings
type APIConfig struct {
	// Enable API server
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Listen address
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`

	// Listen port
	Port int `yaml:"port" json:"port"`

	// CORS settings
	CORS CORSConfig `yaml:"cors" json:"cors"`

	// Request timeout
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`

	// Maximum request size
	MaxRequestSize int64 `yaml:"max_request_size" json:"max_request_size"`
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	// Enable CORS
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Allowed origins
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`

	// Allowed methods
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`

	// Allowed headers
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`

	// Log format (text, json)
	Format string `yaml:"format" json:"format"`

	// Log output (stdout, stderr, file path)
	Output string `yaml:"output" json:"output"`

	// Enable request logging for API
	RequestLogging bool `yaml:"request_logging" json:"request_logging"`
}

// Default returns a configuration with sensible defaults
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			PIDFile:            "/var/run/scandeck.pid",
			WorkDir:            "/var/lib/scandeck",
			Daemonize:          false,
			ShutdownTimeout:    30 * time.Second,
			SnapshotSchedule:   "@every 1m",
			RevalidateSchedule: "@daily",
		},
		Simulation: SimulationConfig{
			TickInterval:         time.Second,
			ValidationLatencyMin: 800 * time.Millisecond,
			ValidationLatencyMax: 1200 * time.Millisecond,
			BatchThrottle:        100 * time.Millisecond,
			ValidationFreshness:  24 * time.Hour,
			Seed:                 0,
		},
		State: StateConfig{
			Path:     "/var/lib/scandeck/state.json",
			Disabled: false,
		},
		API: APIConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1",
			Port:       8080,
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
			},
			RequestTimeout: 30 * time.Second,
			MaxRequestSize: 4 * 1024 * 1024, // 4MB, template uploads included
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "text",
			Output:         "stdout",
			RequestLogging: true,
		},
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	// Start with defaults
	config := Default()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config, nil // Return defaults if no config file
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Marshal to YAML
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Write file
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate simulation configuration
	if c.Simulation.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive")
	}
	if c.Simulation.ValidationLatencyMin < 0 {
		return fmt.Errorf("validation latency min must not be negative")
	}
	if c.Simulation.ValidationLatencyMax < c.Simulation.ValidationLatencyMin {
		return fmt.Errorf("validation latency max must not be below min")
	}
	if c.Simulation.ValidationFreshness <= 0 {
		return fmt.Errorf("validation freshness must be positive")
	}

	// Validate state configuration
	if !c.State.Disabled && c.State.Path == "" {
		return fmt.Errorf("state path is required when persistence is enabled")
	}

	// Validate API configuration
	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			return fmt.Errorf("API port must be between 1 and 65535")
		}
		if c.API.ListenAddr == "" {
			return fmt.Errorf("API listen address is required when API is enabled")
		}
	}

	// Validate logging configuration
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	return nil
}

// IsDaemonMode returns true if running in daemon mode
func (c *Config) IsDaemonMode() bool {
	return c.Daemon.Daemonize
}

// GetAPIAddress returns the full API address
func (c *Config) GetAPIAddress() string {
	return fmt.Sprintf("%s:%d", c.API.ListenAddr, c.API.Port)
}

// IsAPIEnabled returns true if API server is enabled
func (c *Config) IsAPIEnabled() bool {
	return c.API.Enabled
}

// GetLogOutput returns the log output destination
func (c *Config) GetLogOutput() string {
	return c.Logging.Output
}
