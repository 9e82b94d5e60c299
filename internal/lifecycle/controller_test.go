package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scandeck/scandeck/internal/metrics"
	"github.com/scandeck/scandeck/internal/store"
)

func fixedClock() func() time.Time {
	now := time.Date(2024, time.July, 15, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func newController(t *testing.T) (*Controller, *store.Store) {
	t.Helper()
	st := store.New()
	return New(st, fixedClock()), st
}

func TestCreateStartsWhenIdle(t *testing.T) {
	c, _ := newController(t)

	scan := c.Create(store.DefaultScanConfig("First Scan"))

	assert.Equal(t, store.ScanRunning, scan.Status, "scan should start immediately when nothing is running")
	require.NotNil(t, scan.StartedAt)
	assert.Equal(t, 120, scan.RequestsPerSec, "launch throughput is 80 percent of the rate limit")
	assert.Equal(t, initialCPUPercent, scan.CPUPercent)
	assert.Equal(t, initialMemoryMB, scan.MemoryMB)
	assert.Equal(t, "0s", scan.ElapsedTime)
	assert.Equal(t, "~calculating", scan.EstimatedTimeRemaining)
}

func TestCreateQueuesBehindRunningScan(t *testing.T) {
	c, _ := newController(t)

	first := c.Create(store.DefaultScanConfig("First Scan"))
	second := c.Create(store.DefaultScanConfig("Second Scan"))

	assert.Equal(t, store.ScanRunning, first.Status)
	assert.Equal(t, store.ScanQueued, second.Status)
	assert.Nil(t, second.StartedAt)
	assert.Equal(t, 0, second.RequestsPerSec)
}

func TestCreateTotalsFromConfig(t *testing.T) {
	c, st := newController(t)
	st.AddTargetLists([]*store.TargetList{
		{ID: "tl-big", Name: "Big", Targets: []string{"a.com", "b.com", "c.com", "d.com"}},
	})

	cfg := store.DefaultScanConfig("Sized Scan")
	cfg.TemplateIDs = []string{"cve-1", "cve-2", "cve-3"}
	cfg.TargetListID = "tl-big"
	scan := c.Create(cfg)

	assert.Equal(t, 3, scan.TemplatesTotal)
	assert.Equal(t, 4, scan.TargetsTotal)
}

func TestCreateDefaultTotals(t *testing.T) {
	c, _ := newController(t)

	scan := c.Create(store.DefaultScanConfig("Default Scan"))

	assert.Equal(t, defaultTemplatesTotal, scan.TemplatesTotal)
	assert.Equal(t, defaultTargetsTotal, scan.TargetsTotal, "unknown target list falls back to the default total")
}

func TestPause(t *testing.T) {
	c, st := newController(t)
	scan := c.Create(store.DefaultScanConfig("Scan"))

	assert.True(t, c.Pause(scan.ID))

	got, err := st.Scan(scan.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ScanPaused, got.Status)
	assert.NotNil(t, got.PausedAt)
	assert.Equal(t, 0, got.RequestsPerSec)

	// Pausing again is a no-op.
	assert.False(t, c.Pause(scan.ID))
}

func TestResumePreservesProgress(t *testing.T) {
	c, st := newController(t)
	scan := c.Create(store.DefaultScanConfig("Scan"))

	st.UpdateScan(scan.ID, func(s *store.Scan) bool {
		s.Progress = 42.5
		s.FindingsCount[store.SeverityHigh] = 3
		s.TotalFindings = 3
		s.ElapsedTime = "5m 00s"
		return true
	})
	require.True(t, c.Pause(scan.ID))
	require.True(t, c.Resume(scan.ID))

	got, err := st.Scan(scan.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ScanRunning, got.Status)
	assert.Nil(t, got.PausedAt)
	assert.Equal(t, 42.5, got.Progress, "progress must carry over a pause/resume cycle")
	assert.Equal(t, 3, got.TotalFindings)
	assert.Equal(t, "5m 00s", got.ElapsedTime)
	assert.Equal(t, 120, got.RequestsPerSec)
}

func TestResumeRequiresPaused(t *testing.T) {
	c, _ := newController(t)
	scan := c.Create(store.DefaultScanConfig("Scan"))

	assert.False(t, c.Resume(scan.ID), "resume on a running scan must not apply")
	assert.False(t, c.Resume("scan-missing"))
}

func TestStop(t *testing.T) {
	c, st := newController(t)
	scan := c.Create(store.DefaultScanConfig("Scan"))

	st.UpdateScan(scan.ID, func(s *store.Scan) bool {
		s.Progress = 30
		s.FindingsCount[store.SeverityMedium] = 7
		s.TotalFindings = 7
		return true
	})
	assert.True(t, c.Stop(scan.ID))

	got, err := st.Scan(scan.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ScanStopped, got.Status)
	assert.NotNil(t, got.StoppedAt)
	assert.Equal(t, 0, got.RequestsPerSec)
	assert.Equal(t, float64(30), got.Progress, "partial progress is retained after stop")
	assert.Equal(t, 7, got.TotalFindings)

	// Stop from stopped is a no-op; so is restart-independent commands.
	assert.False(t, c.Stop(scan.ID))
	assert.False(t, c.Pause(scan.ID))
}

func TestStopFromPaused(t *testing.T) {
	c, st := newController(t)
	scan := c.Create(store.DefaultScanConfig("Scan"))
	require.True(t, c.Pause(scan.ID))

	assert.True(t, c.Stop(scan.ID))
	got, err := st.Scan(scan.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ScanStopped, got.Status)
}

func TestRestartResetsState(t *testing.T) {
	c, st := newController(t)
	scan := c.Create(store.DefaultScanConfig("Scan"))

	st.UpdateScan(scan.ID, func(s *store.Scan) bool {
		s.Progress = 88
		s.TemplatesProcessed = 90
		s.TargetsScanned = 4
		s.FindingsCount[store.SeverityCritical] = 2
		s.TotalFindings = 2
		s.ElapsedTime = "10m 00s"
		s.CurrentTemplate = "CVE-2024-3400"
		return true
	})
	require.True(t, c.Stop(scan.ID))

	assert.True(t, c.Restart(scan.ID))

	got, err := st.Scan(scan.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ScanRunning, got.Status, "no other scan running, restart relaunches immediately")
	assert.Equal(t, float64(0), got.Progress)
	assert.Equal(t, 0, got.TemplatesProcessed)
	assert.Equal(t, 0, got.TargetsScanned)
	assert.Equal(t, 0, got.TotalFindings)
	assert.Equal(t, "0s", got.ElapsedTime)
	assert.Empty(t, got.CurrentTemplate)
	assert.Nil(t, got.StoppedAt)
	assert.Nil(t, got.CompletedAt)
	assert.NotNil(t, got.StartedAt)
	assert.Equal(t, 120, got.RequestsPerSec)
}

func TestRestartQueuesBehindOtherRunningScan(t *testing.T) {
	c, st := newController(t)
	first := c.Create(store.DefaultScanConfig("First"))
	second := c.Create(store.DefaultScanConfig("Second"))
	_ = first

	assert.True(t, c.Restart(second.ID))

	got, err := st.Scan(second.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ScanQueued, got.Status)
	assert.Nil(t, got.StartedAt)
	assert.Equal(t, 0, got.RequestsPerSec)
}

func TestRestartRunningScanRelaunchesItself(t *testing.T) {
	c, st := newController(t)
	scan := c.Create(store.DefaultScanConfig("Scan"))

	st.UpdateScan(scan.ID, func(s *store.Scan) bool {
		s.Progress = 50
		return true
	})
	assert.True(t, c.Restart(scan.ID))

	got, err := st.Scan(scan.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ScanRunning, got.Status,
		"a running scan restarting itself must not queue behind itself")
	assert.Equal(t, float64(0), got.Progress)
}

func TestFail(t *testing.T) {
	c, st := newController(t)
	scan := c.Create(store.DefaultScanConfig("Scan"))

	assert.True(t, c.Fail(scan.ID))
	got, err := st.Scan(scan.ID)
	require.NoError(t, err)
	assert.Equal(t, store.ScanFailed, got.Status)
	assert.Equal(t, 0, got.RequestsPerSec)

	assert.False(t, c.Fail(scan.ID), "fail from failed is a no-op")
}

func TestDeleteCascades(t *testing.T) {
	c, st := newController(t)
	scan := c.Create(store.DefaultScanConfig("Scan"))
	st.AddFindings([]*store.Finding{
		{ID: "f1", ScanID: scan.ID, Severity: store.SeverityHigh},
	})

	assert.Equal(t, 1, c.Delete([]string{scan.ID}))
	assert.Empty(t, st.Scans())
	assert.Empty(t, st.Findings())
}

func TestCommandsOnMissingScan(t *testing.T) {
	c, _ := newController(t)

	assert.False(t, c.Pause("scan-missing"))
	assert.False(t, c.Stop("scan-missing"))
	assert.False(t, c.Restart("scan-missing"))
	assert.False(t, c.Fail("scan-missing"))
	assert.Equal(t, 0, c.Delete([]string{"scan-missing"}))
}

func TestCommandsFeedMetricsRegistry(t *testing.T) {
	original := metrics.Default()
	defer metrics.SetDefault(original)
	metrics.SetDefault(metrics.NewRegistry())

	c, _ := newController(t)
	scan := c.Create(store.DefaultScanConfig("Metered"))
	require.True(t, c.Pause(scan.ID))
	require.False(t, c.Pause(scan.ID))

	var created, applied, ignored float64
	for _, m := range metrics.GetMetrics() {
		switch m.Name {
		case metrics.MetricScansCreated:
			created = m.Value
		case metrics.MetricScanCommands:
			switch m.Labels[metrics.LabelStatus] {
			case "applied":
				applied = m.Value
			case "ignored":
				ignored = m.Value
			}
		}
	}
	assert.Equal(t, float64(1), created)
	assert.Equal(t, float64(1), applied, "the first pause applies")
	assert.Equal(t, float64(1), ignored, "the repeated pause is counted as ignored")
}
