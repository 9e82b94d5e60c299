// Package cli provides command-line interface commands for the scandeck
// console. This file implements the daemon lifecycle commands.
package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scandeck/scandeck/internal/config"
	"github.com/scandeck/scandeck/internal/daemon"
)

const (
	// Daemon operation constants.
	daemonStopProgressStep = 5  // show progress every N seconds
	daemonStopTimeout      = 30 // seconds to wait before force kill
	statusLineLength       = 30 // characters for status separator line
)

var (
	daemonPidFile string
	daemonPort    int
)

// daemonCmd represents the daemon command.
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run scandeck as a background daemon",
	Long: `Run scandeck as a background daemon service that serves the console
API, advances running scans, and persists operator state. The daemon can
be started, stopped, and monitored using subcommands.`,
	Example: `  scandeck daemon start
  scandeck daemon stop
  scandeck daemon status`,
}

// daemonStartCmd represents the daemon start command.
var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scandeck daemon",
	Long: `Start the scandeck daemon service. The daemon serves the console
API and runs the scan progress loop until stopped.`,
	Example: `  scandeck daemon start
  scandeck daemon start --port 8080`,
	Run: runDaemonStart,
}

// daemonStopCmd represents the daemon stop command.
var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running scandeck daemon",
	Long: `Stop the currently running scandeck daemon service. This will
gracefully shut down the API server and write a final state snapshot.`,
	Example: `  scandeck daemon stop
  scandeck daemon stop --pid-file /var/run/scandeck.pid`,
	Run: runDaemonStop,
}

// daemonStatusCmd represents the daemon status command.
var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of the scandeck daemon",
	Long: `Check whether the scandeck daemon is currently running and display
information about its status and configuration.`,
	Example: `  scandeck daemon status
  scandeck daemon status --pid-file /var/run/scandeck.pid`,
	Run: runDaemonStatus,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	daemonCmd.AddCommand(daemonStatusCmd)

	// Persistent flags for all daemon commands
	daemonCmd.PersistentFlags().StringVar(&daemonPidFile, "pid-file", "/tmp/scandeck.pid", "Path to PID file")

	// Flags for start command
	daemonStartCmd.Flags().IntVar(&daemonPort, "port", defaultAPIPort, "Port for API server")
}

func runDaemonStart(cmd *cobra.Command, _ []string) {
	// Check if daemon is already running
	if isDaemonRunning() {
		fmt.Fprintf(os.Stderr, "Daemon is already running (PID file: %s)\n", daemonPidFile)
		fmt.Fprintf(os.Stderr, "Use 'scandeck daemon stop' to stop it first\n")
		os.Exit(1)
	}

	// Setup configuration
	cfg, err := config.Load(getConfigFilePath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.Daemon.PIDFile = daemonPidFile
	if cmd.Flags().Changed("port") {
		cfg.API.Port = daemonPort
	}

	if verbose {
		fmt.Printf("Starting daemon with configuration:\n")
		fmt.Printf("  PID file: %s\n", daemonPidFile)
		fmt.Printf("  API address: %s\n", cfg.GetAPIAddress())
		fmt.Printf("  State file: %s\n", cfg.State.Path)
	}

	// Create and start daemon
	d := daemon.New(cfg)

	fmt.Printf("Starting scandeck daemon...\n")
	if err := d.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting daemon: %v\n", err)
		os.Exit(1)
	}
}

func runDaemonStop(_ *cobra.Command, _ []string) {
	if !isDaemonRunning() {
		fmt.Printf("Daemon is not running (no PID file found at %s)\n", daemonPidFile)
		return
	}

	pid, err := readPIDFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading PID file: %v\n", err)
		os.Exit(1)
	}

	// Send SIGTERM to daemon
	process, err := os.FindProcess(pid)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error finding daemon process: %v\n", err)
		os.Exit(1)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		fmt.Fprintf(os.Stderr, "Error sending stop signal to daemon: %v\n", err)
		os.Exit(1)
	}

	// Wait for daemon to stop (up to configured timeout)
	fmt.Printf("Stopping daemon (PID %d)...\n", pid)
	for i := 0; i < daemonStopTimeout; i++ {
		if !isDaemonRunning() {
			fmt.Println("Daemon stopped successfully")
			return
		}
		time.Sleep(1 * time.Second)
		if i%daemonStopProgressStep == (daemonStopProgressStep - 1) {
			fmt.Printf("Waiting for daemon to stop... (%d seconds)\n", i+1)
		}
	}

	// If still running after the timeout, force kill
	fmt.Printf("Daemon did not stop gracefully, sending SIGKILL...\n")
	if err := process.Signal(syscall.SIGKILL); err != nil {
		fmt.Fprintf(os.Stderr, "Error force-killing daemon: %v\n", err)
		os.Exit(1)
	}

	time.Sleep(2 * time.Second)
	if !isDaemonRunning() {
		fmt.Println("Daemon force-stopped")
	} else {
		fmt.Fprintf(os.Stderr, "Failed to stop daemon\n")
		os.Exit(1)
	}
}

func runDaemonStatus(_ *cobra.Command, _ []string) {
	fmt.Printf("Scandeck Daemon Status\n")
	fmt.Println(strings.Repeat("=", statusLineLength))

	if !isDaemonRunning() {
		fmt.Printf("Status: Not running\n")
		fmt.Printf("PID file: %s (not found)\n", daemonPidFile)
		return
	}

	pid, err := readPIDFile()
	if err != nil {
		fmt.Printf("Status: Unknown (error reading PID file: %v)\n", err)
		return
	}

	fmt.Printf("Status: Running\n")
	fmt.Printf("PID: %d\n", pid)
	fmt.Printf("PID file: %s\n", daemonPidFile)

	if info, err := os.Stat(daemonPidFile); err == nil {
		fmt.Printf("Started: %s\n", info.ModTime().Format("2006-01-02 15:04:05"))
		fmt.Printf("Uptime: %s\n", formatDuration(time.Since(info.ModTime())))
	}

	fmt.Printf("\nTo stop daemon: scandeck daemon stop\n")
}

func isDaemonRunning() bool {
	if _, err := os.Stat(daemonPidFile); os.IsNotExist(err) {
		return false
	}

	pid, err := readPIDFile()
	if err != nil {
		return false
	}

	// Check if process exists
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Send signal 0 to check if process is alive
	err = process.Signal(syscall.Signal(0))
	return err == nil
}

func readPIDFile() (int, error) {
	// #nosec G304 - daemonPidFile is a controlled path from command line flags
	data, err := os.ReadFile(daemonPidFile)
	if err != nil {
		return 0, err
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in file: %v", err)
	}

	return pid, nil
}
