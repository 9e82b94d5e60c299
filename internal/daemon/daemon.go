// Package daemon provides the background service functionality for
// scandeck. It wires the record store, lifecycle controller, progress
// engine, and validation simulator together, runs the API server, and
// schedules periodic maintenance jobs.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/scandeck/scandeck/internal/api"
	"github.com/scandeck/scandeck/internal/config"
	"github.com/scandeck/scandeck/internal/engine"
	"github.com/scandeck/scandeck/internal/lifecycle"
	"github.com/scandeck/scandeck/internal/logging"
	"github.com/scandeck/scandeck/internal/metrics"
	"github.com/scandeck/scandeck/internal/store"
	"github.com/scandeck/scandeck/internal/validation"
)

// File permission constants.
const (
	DefaultDirPermissions  = 0o750
	DefaultFilePermissions = 0o600
)

// Daemon represents the main daemon process.
type Daemon struct {
	config     *config.Config
	store      *store.Store
	controller *lifecycle.Controller
	engine     *engine.Engine
	validator  *validation.Simulator
	apiServer  *api.Server
	scheduler  *cron.Cron
	pidFile    string
	logger     *log.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// New creates a new daemon instance.
func New(cfg *config.Config) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		config:  cfg,
		pidFile: cfg.Daemon.PIDFile,
		logger:  log.New(os.Stdout, "[daemon] ", log.LstdFlags|log.Lshortfile),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// Start starts the daemon.
func (d *Daemon) Start() error {
	d.logger.Println("Starting scandeck daemon...")

	// Validate configuration
	if err := d.config.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	// Route structured logging per configuration
	appLogger, err := logging.New(logging.Config{
		Level:  logging.LogLevel(d.config.Logging.Level),
		Format: logging.LogFormat(d.config.Logging.Format),
		Output: d.config.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logging.SetDefault(appLogger)

	// Create working directory if needed
	if d.config.Daemon.WorkDir != "" {
		if err := os.MkdirAll(d.config.Daemon.WorkDir, DefaultDirPermissions); err != nil {
			return fmt.Errorf("failed to create working directory: %w", err)
		}
	}

	// Create PID file
	if err := d.createPIDFile(); err != nil {
		return fmt.Errorf("failed to create PID file: %w", err)
	}

	// Setup signal handling
	d.setupSignalHandlers()

	// Build the console state and its simulators
	if err := d.initConsole(); err != nil {
		d.cleanup()
		return fmt.Errorf("failed to initialize console state: %w", err)
	}

	// Initialize API server if enabled
	if err := d.initAPIServer(); err != nil {
		d.cleanup()
		return fmt.Errorf("failed to initialize API server: %w", err)
	}

	// Schedule maintenance jobs
	if err := d.initScheduler(); err != nil {
		d.cleanup()
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	d.logger.Println("Daemon started successfully")
	return d.run()
}

// Stop stops the daemon gracefully.
func (d *Daemon) Stop() error {
	d.logger.Println("Stopping daemon...")

	d.cancel()

	select {
	case <-d.done:
		d.logger.Println("Daemon stopped gracefully")
	case <-time.After(d.config.Daemon.ShutdownTimeout):
		d.logger.Println("Shutdown timeout reached, forcing exit")
	}

	d.cleanup()
	return nil
}

// initConsole builds the store, seeds the demo corpus, overlays
// persisted operator state, and wires the controller, engine, and
// validator.
func (d *Daemon) initConsole() error {
	d.store = store.New()
	d.store.Seed()

	if !d.config.State.Disabled {
		if err := d.store.LoadState(d.config.State.Path); err != nil {
			// A corrupt state file should not keep the console down.
			d.logger.Printf("State load failed, continuing from seed data: %v", err)
		}
	}

	d.controller = lifecycle.New(d.store, nil)

	engineOpts := []engine.Option{
		engine.WithInterval(d.config.Simulation.TickInterval),
	}
	if d.config.Simulation.Seed != 0 {
		engineOpts = append(engineOpts, engine.WithSeed(d.config.Simulation.Seed))
	}
	d.engine = engine.New(d.store, engineOpts...)

	validatorOpts := []validation.Option{
		validation.WithLatency(
			d.config.Simulation.ValidationLatencyMin,
			d.config.Simulation.ValidationLatencyMax),
		validation.WithThrottle(d.config.Simulation.BatchThrottle),
		validation.WithFreshness(d.config.Simulation.ValidationFreshness),
	}
	if d.config.Simulation.Seed != 0 {
		validatorOpts = append(validatorOpts, validation.WithSeed(d.config.Simulation.Seed))
	}
	d.validator = validation.New(d.store, validatorOpts...)

	return nil
}

// initAPIServer initializes the API server.
func (d *Daemon) initAPIServer() error {
	if !d.config.IsAPIEnabled() {
		d.logger.Println("API server disabled, skipping initialization")
		return nil
	}

	d.logger.Printf("Initializing API server on %s", d.config.GetAPIAddress())

	apiServer, err := api.New(d.config, d.store, d.controller, d.engine, d.validator)
	if err != nil {
		return fmt.Errorf("API server creation failed: %w", err)
	}

	d.apiServer = apiServer
	d.logger.Println("API server initialized")
	return nil
}

// initScheduler registers the periodic maintenance jobs: state
// snapshots and the daily custom-template revalidation sweep.
func (d *Daemon) initScheduler() error {
	d.scheduler = cron.New()

	if !d.config.State.Disabled {
		if _, err := d.scheduler.AddFunc(d.config.Daemon.SnapshotSchedule, d.snapshotState); err != nil {
			return fmt.Errorf("invalid snapshot schedule: %w", err)
		}
	}

	if _, err := d.scheduler.AddFunc(d.config.Daemon.RevalidateSchedule, d.revalidateCustomTemplates); err != nil {
		return fmt.Errorf("invalid revalidate schedule: %w", err)
	}

	d.scheduler.Start()
	return nil
}

// snapshotState writes the durable subset of store state to disk.
func (d *Daemon) snapshotState() {
	err := d.store.SaveState(d.config.State.Path)
	metrics.GetGlobalMetrics().IncrementStateSaves(err == nil)
	metrics.RecordStateSave(err == nil)
	if err != nil {
		d.logger.Printf("State snapshot failed: %v", err)
	}
}

// revalidateCustomTemplates sweeps the custom catalog so stale verdicts
// get refreshed.
func (d *Daemon) revalidateCustomTemplates() {
	if _, err := d.validator.ValidateCustom(d.ctx); err != nil {
		d.logger.Printf("Custom template sweep failed: %v", err)
	}
}

// createPIDFile creates the PID file.
func (d *Daemon) createPIDFile() error {
	if d.pidFile == "" {
		return nil // No PID file configured
	}

	dir := filepath.Dir(d.pidFile)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return fmt.Errorf("failed to create PID file directory: %w", err)
	}

	if err := d.checkExistingPID(); err != nil {
		return err
	}

	pid := os.Getpid()
	if err := os.WriteFile(d.pidFile, []byte(strconv.Itoa(pid)), DefaultFilePermissions); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}

	d.logger.Printf("Created PID file: %s (PID: %d)", d.pidFile, pid)
	return nil
}

// checkExistingPID checks if a PID file exists and if the process is still running.
func (d *Daemon) checkExistingPID() error {
	if _, err := os.Stat(d.pidFile); os.IsNotExist(err) {
		return nil // No PID file exists
	}

	data, err := os.ReadFile(d.pidFile)
	if err != nil {
		return fmt.Errorf("failed to read existing PID file: %w", err)
	}

	pid, err := strconv.Atoi(string(data))
	if err != nil {
		// Invalid PID file, remove it
		_ = os.Remove(d.pidFile)
		return nil
	}

	if d.isProcessRunning(pid) {
		return fmt.Errorf("daemon already running with PID %d", pid)
	}

	// Remove stale PID file
	_ = os.Remove(d.pidFile)
	return nil
}

// isProcessRunning checks if a process with the given PID is running.
func (d *Daemon) isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// setupSignalHandlers sets up signal handling for graceful shutdown.
func (d *Daemon) setupSignalHandlers() {
	sigChan := make(chan os.Signal, 1)

	signal.Notify(sigChan,
		syscall.SIGTERM, // Termination signal
		syscall.SIGINT,  // Interrupt signal (Ctrl+C)
		syscall.SIGUSR1, // Dump status
	)

	go func() {
		for sig := range sigChan {
			d.logger.Printf("Received signal: %v", sig)

			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				d.logger.Println("Initiating graceful shutdown...")
				d.cancel()
				return
			case syscall.SIGUSR1:
				d.logger.Println("Received SIGUSR1 - dumping status...")
				d.dumpStatus()
			}
		}
	}()
}

// run executes the main daemon loop.
func (d *Daemon) run() error {
	// Start the progress engine
	go d.engine.Run(d.ctx)

	// Start metrics system updates
	go metrics.GetGlobalMetrics().StartPeriodicUpdates(d.ctx, 15*time.Second)

	// Start API server if configured
	if d.apiServer != nil {
		go func() {
			d.logger.Printf("Starting API server on %s", d.config.GetAPIAddress())
			if err := d.apiServer.Start(d.ctx); err != nil {
				d.logger.Printf("API server error: %v", err)
				d.cancel()
			}
		}()
	}

	<-d.ctx.Done()
	d.logger.Println("Shutdown signal received")
	close(d.done)
	return nil
}

// cleanup performs cleanup tasks.
func (d *Daemon) cleanup() {
	d.logger.Println("Performing cleanup...")

	// Stop the maintenance scheduler
	if d.scheduler != nil {
		stopCtx := d.scheduler.Stop()
		<-stopCtx.Done()
	}

	// Stop API server
	if d.apiServer != nil {
		if err := d.apiServer.Stop(); err != nil {
			d.logger.Printf("Error stopping API server: %v", err)
		} else {
			d.logger.Println("API server stopped")
		}
	}

	// Final state snapshot so operator judgments survive the restart
	if d.store != nil && !d.config.State.Disabled {
		if err := d.store.SaveState(d.config.State.Path); err != nil {
			d.logger.Printf("Final state snapshot failed: %v", err)
		} else {
			d.logger.Println("State saved")
		}
	}

	// Remove PID file
	if d.pidFile != "" {
		if err := os.Remove(d.pidFile); err != nil {
			d.logger.Printf("Error removing PID file: %v", err)
		} else {
			d.logger.Printf("Removed PID file: %s", d.pidFile)
		}
	}

	d.logger.Println("Cleanup completed")
}

// GetPID returns the daemon's PID.
func (d *Daemon) GetPID() int {
	return os.Getpid()
}

// IsRunning checks if the daemon is running.
func (d *Daemon) IsRunning() bool {
	select {
	case <-d.ctx.Done():
		return false
	default:
		return true
	}
}

// dumpStatus dumps the current daemon status to the log.
func (d *Daemon) dumpStatus() {
	d.logger.Println("=== DAEMON STATUS DUMP ===")
	d.logger.Printf("PID: %d", os.Getpid())

	if d.store != nil {
		stats := d.store.Stats()
		d.logger.Printf("Scans: %d total, %d active", stats.TotalScans, stats.ActiveScans)
		d.logger.Printf("Templates: %d (%d official, %d custom)",
			stats.TotalTemplates, stats.OfficialTemplates, stats.CustomTemplates)
		d.logger.Printf("Findings: %d", stats.TotalFindings)
	}

	if d.apiServer != nil && d.config.API.Enabled {
		d.logger.Printf("API Server: RUNNING on %s", d.config.GetAPIAddress())
	} else {
		d.logger.Println("API Server: DISABLED")
	}

	d.logger.Printf("Working Directory: %s", d.config.Daemon.WorkDir)
	d.logger.Println("=== END STATUS DUMP ===")
}

// GetConfig returns the daemon configuration.
func (d *Daemon) GetConfig() *config.Config {
	return d.config
}
