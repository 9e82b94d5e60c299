// Package lifecycle implements the scan state machine. Every command an
// operator can issue against a scan goes through the Controller, which
// enforces the allowed transitions and applies their side effects
// atomically against the record store.
//
// Commands issued against a scan in the wrong state are idempotent
// no-ops: the UI may race the progress engine (a pause can arrive just
// as a scan completes), so a guarded command that finds the scan in an
// unexpected state simply reports that it did not apply.
package lifecycle

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/scandeck/scandeck/internal/logging"
	"github.com/scandeck/scandeck/internal/metrics"
	"github.com/scandeck/scandeck/internal/store"
)

// Launch parameters applied when a scan enters the running state.
const (
	initialCPUPercent = 45
	initialMemoryMB   = 1800
	throughputFactor  = 0.8
)

// Defaults for newly created scans until real totals are known.
const (
	defaultTemplatesTotal = 100
	defaultTargetsTotal   = 5
)

// Controller drives scan lifecycle transitions against the store.
type Controller struct {
	store  *store.Store
	now    func() time.Time
	logger *logging.Logger
	prom   *metrics.PrometheusMetrics
}

// New creates a lifecycle controller. The clock is injectable for tests;
// pass nil to use the system clock.
func New(st *store.Store, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{
		store:  st,
		now:    now,
		logger: logging.Default().WithComponent("lifecycle"),
		prom:   metrics.GetGlobalMetrics(),
	}
}

// launchThroughput is the requests/sec a scan reports the moment it
// starts, before the per-tick jitter takes over.
func launchThroughput(rateLimit int) int {
	if rateLimit <= 0 {
		rateLimit = store.DefaultRateLimit
	}
	return int(math.Round(float64(rateLimit) * throughputFactor))
}

// Create registers a new scan from the given configuration. If no other
// scan is running the scan starts immediately; otherwise it joins the
// queue and the engine promotes it when the runner frees up.
func (c *Controller) Create(cfg store.ScanConfig) *store.Scan {
	now := c.now()
	scan := &store.Scan{
		ID:                     "scan-" + uuid.New().String(),
		Name:                   cfg.Name,
		Description:            cfg.Description,
		Status:                 store.ScanQueued,
		TemplatesTotal:         defaultTemplatesTotal,
		TargetsTotal:           defaultTargetsTotal,
		FindingsCount:          store.EmptyFindingsCount(),
		EstimatedTimeRemaining: "~calculating",
		ElapsedTime:            "0s",
		CreatedAt:              now,
		Config:                 cfg,
	}
	if len(cfg.TemplateIDs) > 0 {
		scan.TemplatesTotal = len(cfg.TemplateIDs)
	}
	if tl := c.targetCount(cfg.TargetListID); tl > 0 {
		scan.TargetsTotal = tl
	}

	if !c.store.RunningScanExists() {
		scan.Status = store.ScanRunning
		started := now
		scan.StartedAt = &started
		scan.RequestsPerSec = launchThroughput(cfg.RateLimit)
		scan.CPUPercent = initialCPUPercent
		scan.MemoryMB = initialMemoryMB
	}

	c.store.AddScan(scan)
	c.prom.IncrementScansCreated()
	metrics.Counter(metrics.MetricScansCreated, nil)
	c.logger.InfoScan("Scan created", scan.ID, "name", scan.Name, "status", scan.Status)
	return scan.Clone()
}

func (c *Controller) targetCount(targetListID string) int {
	for _, tl := range c.store.TargetLists() {
		if tl.ID == targetListID {
			return len(tl.Targets)
		}
	}
	return 0
}

// Pause suspends a running scan. Returns false if the scan was not
// running (or does not exist) and the command was ignored.
func (c *Controller) Pause(scanID string) bool {
	now := c.now()
	applied := c.store.UpdateScan(scanID, func(s *store.Scan) bool {
		if s.Status != store.ScanRunning {
			return false
		}
		s.Status = store.ScanPaused
		paused := now
		s.PausedAt = &paused
		s.RequestsPerSec = 0
		return true
	})
	c.prom.IncrementScanCommands("pause", applied)
	metrics.IncrementScanCommand("pause", applied)
	if applied {
		c.logger.InfoScan("Scan paused", scanID)
	}
	return applied
}

// Resume continues a paused scan. Progress, findings, and elapsed time
// carry over untouched; only the throughput is re-established.
func (c *Controller) Resume(scanID string) bool {
	applied := c.store.UpdateScan(scanID, func(s *store.Scan) bool {
		if s.Status != store.ScanPaused {
			return false
		}
		s.Status = store.ScanRunning
		s.PausedAt = nil
		s.RequestsPerSec = launchThroughput(s.Config.RateLimit)
		return true
	})
	c.prom.IncrementScanCommands("resume", applied)
	metrics.IncrementScanCommand("resume", applied)
	if applied {
		c.logger.InfoScan("Scan resumed", scanID)
	}
	return applied
}

// Stop terminates a running or paused scan. Partial progress and
// accumulated findings are retained for inspection.
func (c *Controller) Stop(scanID string) bool {
	now := c.now()
	var duration time.Duration
	applied := c.store.UpdateScan(scanID, func(s *store.Scan) bool {
		if s.Status != store.ScanRunning && s.Status != store.ScanPaused {
			return false
		}
		s.Status = store.ScanStopped
		stopped := now
		s.StoppedAt = &stopped
		s.RequestsPerSec = 0
		if s.StartedAt != nil {
			duration = now.Sub(*s.StartedAt)
		}
		return true
	})
	c.prom.IncrementScanCommands("stop", applied)
	metrics.IncrementScanCommand("stop", applied)
	if applied {
		if duration > 0 {
			c.prom.RecordScanDuration(string(store.ScanStopped), duration)
		}
		c.logger.InfoScan("Scan stopped", scanID)
	}
	return applied
}

// Restart resets a scan to a pristine state and re-launches it. The
// restart is permitted from any state. If another scan is already
// running the scan re-enters the queue instead of starting.
func (c *Controller) Restart(scanID string) bool {
	now := c.now()
	hasRunning := c.hasOtherRunning(scanID)
	applied := c.store.UpdateScan(scanID, func(s *store.Scan) bool {
		s.Progress = 0
		s.TemplatesProcessed = 0
		s.TargetsScanned = 0
		s.CurrentTemplate = ""
		s.FindingsCount = store.EmptyFindingsCount()
		s.TotalFindings = 0
		s.ElapsedTime = "0s"
		s.EstimatedTimeRemaining = "~calculating"
		s.CompletedAt = nil
		s.StoppedAt = nil
		s.PausedAt = nil

		if hasRunning {
			s.Status = store.ScanQueued
			s.StartedAt = nil
			s.RequestsPerSec = 0
			s.CPUPercent = 0
			s.MemoryMB = 0
		} else {
			s.Status = store.ScanRunning
			started := now
			s.StartedAt = &started
			s.RequestsPerSec = launchThroughput(s.Config.RateLimit)
			s.CPUPercent = initialCPUPercent
			s.MemoryMB = initialMemoryMB
		}
		return true
	})
	c.prom.IncrementScanCommands("restart", applied)
	metrics.IncrementScanCommand("restart", applied)
	if applied {
		c.logger.InfoScan("Scan restarted", scanID, "queued", hasRunning)
	}
	return applied
}

// hasOtherRunning reports whether a scan other than scanID is running.
// A running scan restarting itself should relaunch, not self-queue.
func (c *Controller) hasOtherRunning(scanID string) bool {
	for _, id := range c.store.RunningScanIDs() {
		if id != scanID {
			return true
		}
	}
	return false
}

// Fail marks a scan as failed. Nothing inside the console transitions a
// scan here on its own; the state exists for external error injection,
// for example a scanner process crash reported by a supervisor.
func (c *Controller) Fail(scanID string) bool {
	applied := c.store.UpdateScan(scanID, func(s *store.Scan) bool {
		if s.Status != store.ScanRunning && s.Status != store.ScanPaused {
			return false
		}
		s.Status = store.ScanFailed
		s.RequestsPerSec = 0
		s.CPUPercent = 0
		s.MemoryMB = 0
		return true
	})
	c.prom.IncrementScanCommands("fail", applied)
	metrics.IncrementScanCommand("fail", applied)
	if applied {
		c.logger.InfoScan("Scan failed", scanID)
	}
	return applied
}

// Delete removes scans and cascades their findings.
func (c *Controller) Delete(scanIDs []string) int {
	removed := c.store.DeleteScans(scanIDs)
	c.prom.IncrementScanCommands("delete", removed > 0)
	metrics.IncrementScanCommand("delete", removed > 0)
	return removed
}
