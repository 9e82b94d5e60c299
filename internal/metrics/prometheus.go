// Package metrics provides Prometheus-based metrics collection for scandeck.
// This complements the lightweight registry with industry-standard Prometheus
// collectors for proper observability and monitoring integration.
package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all scandeck metrics
	namespace = "scandeck"

	// Subsystems
	subsystemScan       = "scan"
	subsystemEngine     = "engine"
	subsystemValidation = "validation"
	subsystemStore      = "store"
	subsystemSystem     = "system"
	subsystemAPI        = "api"
)

// PrometheusMetrics holds all Prometheus metric collectors
type PrometheusMetrics struct {
	// Scan lifecycle metrics
	scanCommands  *prometheus.CounterVec
	scansCreated  prometheus.Counter
	scanDuration  *prometheus.HistogramVec
	scansByStatus *prometheus.GaugeVec
	activeScans   prometheus.Gauge

	// Engine metrics
	engineTicks        prometheus.Counter
	engineTicksSkipped prometheus.Counter
	tickDuration       prometheus.Histogram
	findingsEmitted    *prometheus.CounterVec
	scansDequeued      prometheus.Counter

	// Validation metrics
	validationsTotal   *prometheus.CounterVec
	validationDuration prometheus.Histogram

	// Store metrics
	stateSaves    *prometheus.CounterVec
	recordsByKind *prometheus.GaugeVec

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec
	wsClients    prometheus.Gauge

	// System metrics
	memoryUsage prometheus.Gauge
	goroutines  prometheus.Gauge
	uptime      prometheus.Gauge

	// Performance tracking
	startTime  time.Time
	lastUpdate time.Time
	mu         sync.RWMutex
	registry   *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	// Initialize all metrics
	pm.initScanMetrics()
	pm.initEngineMetrics()
	pm.initValidationMetrics()
	pm.initStoreMetrics()
	pm.initAPIMetrics()
	pm.initSystemMetrics()

	// Register all metrics with the registry
	pm.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

// initScanMetrics initializes scan lifecycle metrics
func (pm *PrometheusMetrics) initScanMetrics() {
	pm.scanCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "commands_total",
			Help:      "Total number of lifecycle commands by command and outcome",
		},
		[]string{"command", "outcome"},
	)

	pm.scansCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "created_total",
			Help:      "Total number of scans created",
		},
	)

	pm.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of scans from start to terminal state",
			Buckets:   []float64{10.0, 30.0, 60.0, 120.0, 300.0, 600.0, 1800.0, 3600.0},
		},
		[]string{"status"},
	)

	pm.scansByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "by_status",
			Help:      "Number of scans currently in each lifecycle state",
		},
		[]string{"status"},
	)

	pm.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of scans that are queued, running, or paused",
		},
	)
}

// initEngineMetrics initializes simulation engine metrics
func (pm *PrometheusMetrics) initEngineMetrics() {
	pm.engineTicks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemEngine,
			Name:      "ticks_total",
			Help:      "Total number of progress ticks executed",
		},
	)

	pm.engineTicksSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemEngine,
			Name:      "ticks_skipped_total",
			Help:      "Total number of ticks skipped because the previous pass was still running",
		},
	)

	pm.tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemEngine,
			Name:      "tick_duration_seconds",
			Help:      "Duration of engine tick passes in seconds",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	pm.findingsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemEngine,
			Name:      "findings_total",
			Help:      "Total number of findings synthesized by severity",
		},
		[]string{"severity"},
	)

	pm.scansDequeued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemEngine,
			Name:      "dequeued_total",
			Help:      "Total number of queued scans promoted to running",
		},
	)
}

// initValidationMetrics initializes template validation metrics
func (pm *PrometheusMetrics) initValidationMetrics() {
	pm.validationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemValidation,
			Name:      "total",
			Help:      "Total number of template validations by result",
		},
		[]string{"result"},
	)

	pm.validationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemValidation,
			Name:      "duration_seconds",
			Help:      "Duration of template validations in seconds",
			Buckets:   []float64{0.5, 0.8, 1.0, 1.2, 1.5, 2.0, 5.0},
		},
	)
}

// initStoreMetrics initializes record store metrics
func (pm *PrometheusMetrics) initStoreMetrics() {
	pm.stateSaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemStore,
			Name:      "state_saves_total",
			Help:      "Total number of state snapshot writes by status",
		},
		[]string{"status"},
	)

	pm.recordsByKind = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemStore,
			Name:      "records",
			Help:      "Number of records held by the store, by kind",
		},
		[]string{"kind"},
	)
}

// initAPIMetrics initializes API-related metrics
func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
		},
		[]string{"method", "path"},
	)

	pm.httpErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "errors_total",
			Help:      "Total number of HTTP errors by method, path and error type",
		},
		[]string{"method", "path", "error_type"},
	)

	pm.wsClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "websocket_clients",
			Help:      "Number of connected WebSocket clients",
		},
	)
}

// initSystemMetrics initializes system-related metrics
func (pm *PrometheusMetrics) initSystemMetrics() {
	pm.memoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "memory_bytes",
			Help:      "Current memory usage in bytes",
		},
	)

	pm.goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	pm.uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "uptime_seconds",
			Help:      "Application uptime in seconds",
		},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() {
	// Scan metrics
	pm.registry.MustRegister(pm.scanCommands)
	pm.registry.MustRegister(pm.scansCreated)
	pm.registry.MustRegister(pm.scanDuration)
	pm.registry.MustRegister(pm.scansByStatus)
	pm.registry.MustRegister(pm.activeScans)

	// Engine metrics
	pm.registry.MustRegister(pm.engineTicks)
	pm.registry.MustRegister(pm.engineTicksSkipped)
	pm.registry.MustRegister(pm.tickDuration)
	pm.registry.MustRegister(pm.findingsEmitted)
	pm.registry.MustRegister(pm.scansDequeued)

	// Validation metrics
	pm.registry.MustRegister(pm.validationsTotal)
	pm.registry.MustRegister(pm.validationDuration)

	// Store metrics
	pm.registry.MustRegister(pm.stateSaves)
	pm.registry.MustRegister(pm.recordsByKind)

	// API metrics
	pm.registry.MustRegister(pm.httpRequests)
	pm.registry.MustRegister(pm.httpDuration)
	pm.registry.MustRegister(pm.httpErrors)
	pm.registry.MustRegister(pm.wsClients)

	// System metrics
	pm.registry.MustRegister(pm.memoryUsage)
	pm.registry.MustRegister(pm.goroutines)
	pm.registry.MustRegister(pm.uptime)
}

// GetRegistry returns the Prometheus registry for HTTP handler
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Scan Metrics Methods

// IncrementScanCommands counts a lifecycle command and whether it applied
func (pm *PrometheusMetrics) IncrementScanCommands(command string, applied bool) {
	outcome := "applied"
	if !applied {
		outcome = "ignored"
	}
	pm.scanCommands.WithLabelValues(command, outcome).Inc()
}

// IncrementScansCreated increments the scans created counter
func (pm *PrometheusMetrics) IncrementScansCreated() {
	pm.scansCreated.Inc()
}

// RecordScanDuration records the wall-clock duration of a finished scan
func (pm *PrometheusMetrics) RecordScanDuration(status string, duration time.Duration) {
	pm.scanDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// SetScansByStatus sets the gauge for a single lifecycle state
func (pm *PrometheusMetrics) SetScansByStatus(status string, count int) {
	pm.scansByStatus.WithLabelValues(status).Set(float64(count))
}

// SetActiveScans sets the number of active scans
func (pm *PrometheusMetrics) SetActiveScans(count int) {
	pm.activeScans.Set(float64(count))
}

// Engine Metrics Methods

// IncrementEngineTicks increments the tick counter
func (pm *PrometheusMetrics) IncrementEngineTicks() {
	pm.engineTicks.Inc()
}

// IncrementEngineTicksSkipped increments the skipped-tick counter
func (pm *PrometheusMetrics) IncrementEngineTicksSkipped() {
	pm.engineTicksSkipped.Inc()
}

// RecordTickDuration records how long a tick pass took
func (pm *PrometheusMetrics) RecordTickDuration(duration time.Duration) {
	pm.tickDuration.Observe(duration.Seconds())
}

// IncrementFindingsEmitted counts synthesized findings by severity
func (pm *PrometheusMetrics) IncrementFindingsEmitted(severity string, count int) {
	pm.findingsEmitted.WithLabelValues(severity).Add(float64(count))
}

// IncrementScansDequeued increments the dequeue counter
func (pm *PrometheusMetrics) IncrementScansDequeued() {
	pm.scansDequeued.Inc()
}

// Validation Metrics Methods

// IncrementValidationsTotal counts a completed validation by result
func (pm *PrometheusMetrics) IncrementValidationsTotal(result string) {
	pm.validationsTotal.WithLabelValues(result).Inc()
}

// RecordValidationDuration records validation latency
func (pm *PrometheusMetrics) RecordValidationDuration(duration time.Duration) {
	pm.validationDuration.Observe(duration.Seconds())
}

// Store Metrics Methods

// IncrementStateSaves counts a state snapshot write
func (pm *PrometheusMetrics) IncrementStateSaves(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	pm.stateSaves.WithLabelValues(status).Inc()
}

// SetRecordsByKind sets the record count gauge for a collection
func (pm *PrometheusMetrics) SetRecordsByKind(kind string, count int) {
	pm.recordsByKind.WithLabelValues(kind).Set(float64(count))
}

// API Metrics Methods

// IncrementHTTPRequests increments HTTP request counter
func (pm *PrometheusMetrics) IncrementHTTPRequests(method, path, status string) {
	pm.httpRequests.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPDuration records HTTP request duration
func (pm *PrometheusMetrics) RecordHTTPDuration(method, path string, duration time.Duration) {
	pm.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// IncrementHTTPErrors increments HTTP error counter
func (pm *PrometheusMetrics) IncrementHTTPErrors(method, path, errorType string) {
	pm.httpErrors.WithLabelValues(method, path, errorType).Inc()
}

// SetWebSocketClients sets the connected WebSocket client gauge
func (pm *PrometheusMetrics) SetWebSocketClients(count int) {
	pm.wsClients.Set(float64(count))
}

// System Metrics Methods

// UpdateSystemMetrics updates all system metrics with current values
func (pm *PrometheusMetrics) UpdateSystemMetrics() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	// Update memory usage
	pm.memoryUsage.Set(float64(memStats.Alloc))

	// Update goroutine count
	pm.goroutines.Set(float64(runtime.NumGoroutine()))

	// Update uptime
	uptime := time.Since(pm.startTime).Seconds()
	pm.uptime.Set(uptime)

	// Update last update time
	pm.lastUpdate = time.Now()
}

// Utility Methods

// GetUptime returns the application uptime
func (pm *PrometheusMetrics) GetUptime() time.Duration {
	return time.Since(pm.startTime)
}

// GetLastUpdate returns the last metrics update time
func (pm *PrometheusMetrics) GetLastUpdate() time.Time {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.lastUpdate
}

// StartPeriodicUpdates starts a goroutine that periodically updates system metrics
func (pm *PrometheusMetrics) StartPeriodicUpdates(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Update immediately
	pm.UpdateSystemMetrics()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.UpdateSystemMetrics()
		}
	}
}

// Global instance for easy access
var globalMetrics *PrometheusMetrics
var metricsOnce sync.Once

// GetGlobalMetrics returns the global Prometheus metrics instance
func GetGlobalMetrics() *PrometheusMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}
