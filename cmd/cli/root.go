// Package cli provides command-line interface commands for the scandeck
// console. This package implements the Cobra-based CLI structure with
// commands for scan lifecycle control, template management, findings
// triage, and daemon operations.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/scandeck/scandeck/internal/config"
	"github.com/scandeck/scandeck/internal/logging"
)

const (
	// Default configuration constants.
	defaultAPIPort      = 8080 // default console API port
	defaultTickInterval = "1s" // default progress tick interval
)

var (
	cfgFile string
	verbose bool
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scandeck",
	Short: "Security Scan Management Console",
	Long: `Scandeck is a management console for template-driven security scanning.
It tracks scan jobs through their lifecycle, maintains a template catalog
with validation verdicts, and collects findings for triage, all served
over a REST API with a live WebSocket feed.`,
	Version: getVersion(),
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in current directory
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// Read in environment variables that match
	viper.AutomaticEnv()
	viper.SetEnvPrefix("SCANDECK")

	// Set defaults for common configuration
	setConfigDefaults()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	// Initialize structured logging after config is loaded
	initLogging()
}

// setConfigDefaults sets default values for configuration.
func setConfigDefaults() {
	// API configuration
	viper.SetDefault("api.enabled", true)
	viper.SetDefault("api.listen_addr", "127.0.0.1")
	viper.SetDefault("api.port", defaultAPIPort)

	// Simulation configuration
	viper.SetDefault("simulation.tick_interval", defaultTickInterval)
	viper.SetDefault("simulation.validation_freshness", "24h")

	// Logging configuration
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.request_logging", true)
}

// getConfigFilePath returns the active config file path for commands
// that load the full configuration.
func getConfigFilePath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return "config.yaml"
}

// getVersion returns the version string.
func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	// Try to load full config for logging settings
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		// If config loading fails, use default logging
		logger := logging.NewDefault()
		logging.SetDefault(logger)
		return
	}

	// Convert config logging to our logging config
	logConfig := logging.Config{
		Level:     logging.LogLevel(cfg.Logging.Level),
		Format:    logging.LogFormat(cfg.Logging.Format),
		Output:    cfg.Logging.Output,
		AddSource: cfg.Logging.Level == "debug",
	}

	// Create logger
	logger, err := logging.New(logConfig)
	if err != nil {
		// Fall back to default if creation fails
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}

	// Set as default logger
	logging.SetDefault(logger)

	// Log initialization if verbose
	if verbose {
		logging.Info("Structured logging initialized", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	}
}

// formatDuration renders a duration in a human-friendly form for status
// output.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return d.String()
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	return fmt.Sprintf("%dm%ds", m, s)
}
