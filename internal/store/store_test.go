package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScan(id string, status ScanStatus) *Scan {
	return &Scan{
		ID:            id,
		Name:          "Test " + id,
		Status:        status,
		FindingsCount: EmptyFindingsCount(),
		ElapsedTime:   "0s",
		CreatedAt:     time.Now(),
		Config:        DefaultScanConfig("Test " + id),
	}
}

func TestAddScanPrepends(t *testing.T) {
	s := New()
	s.AddScan(newTestScan("scan-a", ScanCompleted))
	s.AddScan(newTestScan("scan-b", ScanRunning))

	scans := s.Scans()
	require.Len(t, scans, 2)
	assert.Equal(t, "scan-b", scans[0].ID, "newest scan should be first")
	assert.Equal(t, "scan-a", scans[1].ID)
}

func TestScanLookup(t *testing.T) {
	s := New()
	s.AddScan(newTestScan("scan-a", ScanRunning))

	scan, err := s.Scan("scan-a")
	require.NoError(t, err)
	assert.Equal(t, "scan-a", scan.ID)

	_, err = s.Scan("scan-missing")
	assert.Error(t, err)
}

func TestScansReturnsCopies(t *testing.T) {
	s := New()
	s.AddScan(newTestScan("scan-a", ScanRunning))

	scans := s.Scans()
	scans[0].Progress = 99
	scans[0].FindingsCount[SeverityCritical] = 42

	fresh, err := s.Scan("scan-a")
	require.NoError(t, err)
	assert.Equal(t, float64(0), fresh.Progress, "mutating a snapshot must not affect the store")
	assert.Equal(t, 0, fresh.FindingsCount[SeverityCritical])
}

func TestUpdateScanGuard(t *testing.T) {
	s := New()
	s.AddScan(newTestScan("scan-a", ScanPaused))

	// Closure declines because the scan is not running.
	applied := s.UpdateScan("scan-a", func(scan *Scan) bool {
		if scan.Status != ScanRunning {
			return false
		}
		scan.Progress = 50
		return true
	})
	assert.False(t, applied)

	scan, err := s.Scan("scan-a")
	require.NoError(t, err)
	assert.Equal(t, float64(0), scan.Progress)

	// Unknown scan.
	assert.False(t, s.UpdateScan("scan-missing", func(*Scan) bool { return true }))
}

func TestRunningAndQueuedQueries(t *testing.T) {
	s := New()
	assert.False(t, s.RunningScanExists())

	s.AddScan(newTestScan("scan-done", ScanCompleted))
	s.AddScan(newTestScan("scan-q2", ScanQueued))
	s.AddScan(newTestScan("scan-q1", ScanQueued))
	s.AddScan(newTestScan("scan-run", ScanRunning))

	assert.True(t, s.RunningScanExists())
	assert.Equal(t, []string{"scan-run"}, s.RunningScanIDs())

	// First queued in store order (newest first).
	id, ok := s.FirstQueuedScan()
	require.True(t, ok)
	assert.Equal(t, "scan-q1", id)
}

func TestDeleteScansCascadesFindings(t *testing.T) {
	s := New()
	s.AddScan(newTestScan("scan-a", ScanCompleted))
	s.AddScan(newTestScan("scan-b", ScanCompleted))
	s.AddFindings([]*Finding{
		{ID: "f1", ScanID: "scan-a", Severity: SeverityHigh},
		{ID: "f2", ScanID: "scan-a", Severity: SeverityInfo},
		{ID: "f3", ScanID: "scan-b", Severity: SeverityLow},
	})

	removed := s.DeleteScans([]string{"scan-a", "scan-missing"})
	assert.Equal(t, 1, removed)

	assert.Len(t, s.Scans(), 1)
	findings := s.Findings()
	require.Len(t, findings, 1, "findings of the deleted scan must be cascaded")
	assert.Equal(t, "f3", findings[0].ID)
}

func TestFindingTriage(t *testing.T) {
	s := New()
	s.AddFindings([]*Finding{{ID: "f1", ScanID: "scan-a", Severity: SeverityMedium}})

	assert.True(t, s.ToggleFalsePositive("f1"))
	f, err := s.Finding("f1")
	require.NoError(t, err)
	assert.True(t, f.IsFalsePositive)

	assert.True(t, s.ToggleFalsePositive("f1"))
	f, err = s.Finding("f1")
	require.NoError(t, err)
	assert.False(t, f.IsFalsePositive, "toggle must flip back")

	assert.True(t, s.SetFindingNotes("f1", "confirmed on retest"))
	f, err = s.Finding("f1")
	require.NoError(t, err)
	assert.Equal(t, "confirmed on retest", f.Notes)

	assert.False(t, s.ToggleFalsePositive("f-missing"))
	assert.False(t, s.SetFindingNotes("f-missing", "x"))
}

func TestSubscribeReceivesEvents(t *testing.T) {
	s := New()
	events, cancel := s.Subscribe()
	defer cancel()

	s.AddScan(newTestScan("scan-a", ScanQueued))

	select {
	case ev := <-events:
		assert.Equal(t, EventScanAdded, ev.Kind)
		assert.Equal(t, "scan-a", ev.ID)
	case <-time.After(time.Second):
		t.Fatal("expected a scan_added event")
	}

	s.UpdateScan("scan-a", func(scan *Scan) bool {
		scan.Progress = 1
		return true
	})

	select {
	case ev := <-events:
		assert.Equal(t, EventScanUpdated, ev.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected a scan_updated event")
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	s := New()
	events, cancel := s.Subscribe()
	cancel()

	_, open := <-events
	assert.False(t, open)

	// A second cancel must be harmless.
	cancel()
}

func TestStats(t *testing.T) {
	s := New()
	s.Seed()

	stats := s.Stats()
	assert.Equal(t, 14, stats.TotalTemplates)
	assert.Equal(t, 10, stats.OfficialTemplates)
	assert.Equal(t, 4, stats.CustomTemplates)
	assert.Equal(t, 3, stats.TotalScans)
	assert.Equal(t, 2, stats.ActiveScans, "running and queued scans are active")
	assert.Equal(t, 2, stats.TotalFindings)
	assert.Equal(t, 1, stats.FindingsBySeverity[SeverityCritical])
	assert.Equal(t, 1, stats.FindingsBySeverity[SeverityInfo])
}

func TestSeedShape(t *testing.T) {
	s := New()
	s.Seed()

	scans := s.Scans()
	require.Len(t, scans, 3)
	assert.Equal(t, ScanRunning, scans[0].Status)
	assert.Equal(t, ScanQueued, scans[1].Status)
	assert.Equal(t, ScanCompleted, scans[2].Status)

	running := scans[0]
	assert.Equal(t, SumFindings(running.FindingsCount), running.TotalFindings)

	require.Len(t, s.TargetLists(), 2)
	for _, tmpl := range s.Templates() {
		assert.NotEmpty(t, tmpl.ID)
		assert.NotEmpty(t, tmpl.TemplateID)
		assert.True(t, tmpl.Severity.Valid(), "seed template %s has invalid severity", tmpl.ID)
	}
}

func TestSumFindings(t *testing.T) {
	counts := EmptyFindingsCount()
	counts[SeverityCritical] = 2
	counts[SeverityInfo] = 5
	assert.Equal(t, 7, SumFindings(counts))
	assert.Equal(t, 0, SumFindings(EmptyFindingsCount()))
}

func TestSidebarCollapsed(t *testing.T) {
	s := New()
	assert.False(t, s.SidebarCollapsed())
	s.SetSidebarCollapsed(true)
	assert.True(t, s.SidebarCollapsed())
}
