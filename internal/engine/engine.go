// Package engine implements the progress simulation loop. A background
// ticker advances every running scan once per interval: progress creeps
// forward at a fixed step, findings accumulate probabilistically,
// throughput and resource gauges jitter around their baselines, and a
// scan that reaches 100% is finalized and hands the runner slot to the
// next queued scan.
package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/scandeck/scandeck/internal/logging"
	"github.com/scandeck/scandeck/internal/metrics"
	"github.com/scandeck/scandeck/internal/store"
)

// Simulation tuning. A scan gains half a percent per tick, so a full
// run takes 200 ticks regardless of its template count.
const (
	progressStep = 0.5

	findingProbability  = 0.35
	criticalCutoff      = 0.03
	highCutoff          = 0.12
	mediumCutoff        = 0.30
	lowCutoff           = 0.55
	maxInfoPerTick      = 3
	minRequestsPerSec   = 20
	templateSwitchProb  = 0.15
	throughputFactor    = 0.8
	cpuJitterRange      = 8
	memJitterRange      = 100
	minCPUPercent       = 30
	maxCPUPercent       = 99
	minMemoryMB         = 1200
	launchCPUPercent    = 45
	launchMemoryMB      = 1800
	elapsedSeedFloorSec = 300
	elapsedSeedSpanSec  = 600
)

// templateNamePool is the set of template names a running scan cycles
// through while it works.
var templateNamePool = []string{
	"CVE-2024-3400", "CVE-2024-21762", "CVE-2023-46805", "CVE-2023-44228",
	"CVE-2023-42793", "CVE-2023-34362", "CVE-2023-27997", "CVE-2023-23397",
	"CVE-2023-20198", "CVE-2022-40684", "CVE-2022-26134", "CVE-2021-44228",
	"exposed-env", "subdomain-takeover", "cors-misconfig", "open-redirect",
	"git-config", "nginx-version", "wordpress-login", "default-admin-creds",
	"ssl-cert-expiry", "dns-zone-transfer", "crlf-injection", "apache-server-status",
}

// Engine advances running scans on a fixed interval.
type Engine struct {
	store    *store.Store
	interval time.Duration
	now      func() time.Time

	// mu serializes tick passes. A tick that fires while the previous
	// pass is still running is skipped, never overlapped.
	mu  sync.Mutex
	rng *rand.Rand

	// elapsed tracks wall-clock seconds per running scan. Scans observed
	// for the first time mid-flight get a plausible seed; scans launched
	// by the engine start from zero.
	elapsed map[string]int

	logger *logging.Logger
	prom   *metrics.PrometheusMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects a clock, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSeed fixes the RNG seed for reproducible runs.
func WithSeed(seed int64) Option {
	return func(e *Engine) { e.rng = rand.New(rand.NewSource(seed)) }
}

// WithInterval overrides the tick interval.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

// New creates a progress engine bound to the store.
func New(st *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		interval: time.Second,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		elapsed:  make(map[string]int),
		logger:   logging.Default().WithComponent("engine"),
		prom:     metrics.GetGlobalMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run drives the tick loop until the context is canceled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("Engine started", "interval", e.interval)
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine stopped")
			return
		case <-ticker.C:
			if !e.mu.TryLock() {
				e.prom.IncrementEngineTicksSkipped()
				metrics.Counter(metrics.MetricEngineTicksSkipped, nil)
				continue
			}
			e.tickLocked()
			e.mu.Unlock()
		}
	}
}

// Tick executes a single synchronous pass. Tests drive the engine with
// this instead of waiting on the wall clock.
func (e *Engine) Tick() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickLocked()
}

func (e *Engine) tickLocked() {
	started := time.Now()

	for _, id := range e.store.RunningScanIDs() {
		if e.advance(id) {
			e.promoteNextQueued()
		}
	}
	e.pruneElapsed()

	e.prom.IncrementEngineTicks()
	e.prom.RecordTickDuration(time.Since(started))
	metrics.Counter(metrics.MetricEngineTicks, nil)
	metrics.RecordTickDuration(time.Since(started))
}

// advance applies one tick of progress to a single scan. The status is
// re-checked inside the store's write lock, so a pause or stop that
// landed after the running snapshot was taken wins and the tick becomes
// a no-op. Returns true if the scan completed on this tick.
func (e *Engine) advance(scanID string) bool {
	var completed bool
	now := e.now()

	e.store.UpdateScan(scanID, func(s *store.Scan) bool {
		if s.Status != store.ScanRunning {
			return false
		}

		prevElapsed, seen := e.elapsed[scanID]
		switch {
		case !seen && s.ElapsedTime == "0s":
			prevElapsed = 0
		case !seen:
			prevElapsed = e.rng.Intn(elapsedSeedSpanSec) + elapsedSeedFloorSec
		case s.ElapsedTime == "0s":
			// Restarted since the last pass.
			prevElapsed = 0
		}
		newElapsed := prevElapsed + 1
		e.elapsed[scanID] = newElapsed

		newProgress := math.Min(s.Progress+progressStep, 100)
		ratio := newProgress / 100
		templatesProcessed := min(roundToInt(float64(s.TemplatesTotal)*ratio), s.TemplatesTotal)
		targetsScanned := min(max(s.TargetsScanned, roundToInt(float64(s.TargetsTotal)*ratio)), s.TargetsTotal)

		if e.rng.Float64() < findingProbability {
			roll := e.rng.Float64()
			switch {
			case roll < criticalCutoff:
				s.FindingsCount[store.SeverityCritical]++
				e.prom.IncrementFindingsEmitted(string(store.SeverityCritical), 1)
				metrics.IncrementFindingsEmitted(string(store.SeverityCritical), 1)
			case roll < highCutoff:
				s.FindingsCount[store.SeverityHigh]++
				e.prom.IncrementFindingsEmitted(string(store.SeverityHigh), 1)
				metrics.IncrementFindingsEmitted(string(store.SeverityHigh), 1)
			case roll < mediumCutoff:
				s.FindingsCount[store.SeverityMedium]++
				e.prom.IncrementFindingsEmitted(string(store.SeverityMedium), 1)
				metrics.IncrementFindingsEmitted(string(store.SeverityMedium), 1)
			case roll < lowCutoff:
				s.FindingsCount[store.SeverityLow]++
				e.prom.IncrementFindingsEmitted(string(store.SeverityLow), 1)
				metrics.IncrementFindingsEmitted(string(store.SeverityLow), 1)
			default:
				n := e.rng.Intn(maxInfoPerTick) + 1
				s.FindingsCount[store.SeverityInfo] += n
				e.prom.IncrementFindingsEmitted(string(store.SeverityInfo), n)
				metrics.IncrementFindingsEmitted(string(store.SeverityInfo), n)
			}
		}
		s.TotalFindings = store.SumFindings(s.FindingsCount)

		baseRate := s.Config.RateLimit
		if baseRate <= 0 {
			baseRate = store.DefaultRateLimit
		}
		requestsPerSec := max(minRequestsPerSec,
			roundToInt(float64(baseRate)*(0.7+e.rng.Float64()*0.5)))

		currentTemplate := s.CurrentTemplate
		if e.rng.Float64() < templateSwitchProb {
			currentTemplate = templateNamePool[e.rng.Intn(len(templateNamePool))]
		}

		cpu := min(maxCPUPercent,
			max(minCPUPercent, s.CPUPercent+roundToInt((e.rng.Float64()-0.5)*cpuJitterRange)))
		mem := max(minMemoryMB, s.MemoryMB+roundToInt((e.rng.Float64()-0.5)*memJitterRange))

		completed = newProgress >= 100

		if completed {
			s.Progress = 100
			s.TemplatesProcessed = s.TemplatesTotal
			s.TargetsScanned = s.TargetsTotal
			s.RequestsPerSec = 0
			s.CurrentTemplate = ""
			s.CPUPercent = 0
			s.MemoryMB = 0
			s.Status = store.ScanCompleted
			done := now
			s.CompletedAt = &done
			if s.StartedAt != nil {
				e.prom.RecordScanDuration(string(store.ScanCompleted), now.Sub(*s.StartedAt))
			}
			metrics.Counter(metrics.MetricScansCompleted, nil)
		} else {
			s.Progress = newProgress
			s.TemplatesProcessed = templatesProcessed
			s.TargetsScanned = targetsScanned
			s.RequestsPerSec = requestsPerSec
			s.CurrentTemplate = currentTemplate
			s.CPUPercent = cpu
			s.MemoryMB = mem
		}
		s.EstimatedTimeRemaining = formatETA(newProgress)
		s.ElapsedTime = formatElapsed(newElapsed)
		return true
	})

	if completed {
		e.logger.InfoScan("Scan completed", scanID)
	}
	return completed
}

// promoteNextQueued moves the first queued scan into the freed runner
// slot. At most one scan is promoted per completion.
func (e *Engine) promoteNextQueued() {
	queuedID, ok := e.store.FirstQueuedScan()
	if !ok {
		return
	}
	now := e.now()
	promoted := e.store.UpdateScan(queuedID, func(s *store.Scan) bool {
		if s.Status != store.ScanQueued {
			return false
		}
		e.elapsed[queuedID] = 0
		s.Status = store.ScanRunning
		started := now
		s.StartedAt = &started
		baseRate := s.Config.RateLimit
		if baseRate <= 0 {
			baseRate = store.DefaultRateLimit
		}
		s.RequestsPerSec = roundToInt(float64(baseRate) * throughputFactor)
		s.CPUPercent = launchCPUPercent
		s.MemoryMB = launchMemoryMB
		return true
	})
	if promoted {
		e.prom.IncrementScansDequeued()
		metrics.Counter(metrics.MetricScansDequeued, nil)
		e.logger.InfoScan("Scan dequeued", queuedID)
	}
}

// pruneElapsed drops elapsed counters for scans that no longer exist.
func (e *Engine) pruneElapsed() {
	if len(e.elapsed) == 0 {
		return
	}
	known := make(map[string]bool)
	for _, s := range e.store.Scans() {
		known[s.ID] = true
	}
	for id := range e.elapsed {
		if !known[id] {
			delete(e.elapsed, id)
		}
	}
}

// formatElapsed renders seconds as "Xm YYs".
func formatElapsed(totalSeconds int) string {
	m := totalSeconds / 60
	s := totalSeconds % 60
	return formatMinSec(m, s)
}

// formatETA projects the time remaining from the fixed progress step.
func formatETA(progress float64) string {
	if progress >= 100 {
		return "0s"
	}
	estSeconds := roundToInt((100 - progress) / progressStep)
	return formatMinSec(estSeconds/60, estSeconds%60)
}

func formatMinSec(m, s int) string {
	return fmt.Sprintf("%dm %02ds", m, s)
}

func roundToInt(v float64) int {
	return int(math.Round(v))
}
