package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusMetrics_InitializationAndUpdate(t *testing.T) {
	pm := NewPrometheusMetrics()
	if pm == nil {
		t.Fatalf("NewPrometheusMetrics returned nil")
	}

	reg := pm.GetRegistry()
	if reg == nil {
		t.Fatalf("GetRegistry returned nil")
	}

	// Should be able to update system metrics without panic
	pm.UpdateSystemMetrics()
	// Uptime should be increasing
	before := pm.GetUptime()
	time.Sleep(10 * time.Millisecond)
	after := pm.GetUptime()
	if before >= after {
		t.Fatalf("expected uptime to increase, before=%v after=%v", before, after)
	}
}

func TestPrometheusMetrics_HTTPHandlerServes(t *testing.T) {
	pm := NewPrometheusMetrics()
	// Update once to populate gauges
	pm.UpdateSystemMetrics()

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	handler := promhttp.HandlerFor(pm.GetRegistry(), promhttp.HandlerOpts{})
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	body := rr.Body.String()
	if body == "" {
		t.Fatalf("expected non-empty metrics body")
	}
	// Expect a known metric name prefix (namespace + subsystem + name)
	if !strings.Contains(body, "scandeck_system_uptime_seconds") {
		end := len(body)
		if end > 200 {
			end = 200
		}
		t.Fatalf("expected uptime metric in output, got: %s", body[:end])
	}
}

func TestPrometheusMetrics_ScanMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementScanCommands("pause", true)
	pm.IncrementScanCommands("pause", true)
	pm.IncrementScanCommands("resume", false)

	count := testutil.CollectAndCount(pm.scanCommands)
	if count != 2 {
		t.Errorf("expected 2 label combinations, got %d", count)
	}

	pm.IncrementScansCreated()
	pm.IncrementScansCreated()
	if got := testutil.ToFloat64(pm.scansCreated); got != 2 {
		t.Errorf("expected 2 scans created, got %f", got)
	}

	pm.RecordScanDuration("completed", 5*time.Minute)
	pm.RecordScanDuration("stopped", 30*time.Second)

	count = testutil.CollectAndCount(pm.scanDuration)
	if count != 2 {
		t.Errorf("expected 2 terminal states, got %d", count)
	}

	pm.SetScansByStatus("running", 1)
	pm.SetScansByStatus("queued", 2)

	count = testutil.CollectAndCount(pm.scansByStatus)
	if count != 2 {
		t.Errorf("expected 2 status gauges, got %d", count)
	}

	pm.SetActiveScans(3)
	if got := testutil.ToFloat64(pm.activeScans); got != 3 {
		t.Errorf("expected 3 active scans, got %f", got)
	}
}

func TestPrometheusMetrics_EngineMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementEngineTicks()
	pm.IncrementEngineTicks()
	if got := testutil.ToFloat64(pm.engineTicks); got != 2 {
		t.Errorf("expected 2 ticks, got %f", got)
	}

	pm.IncrementEngineTicksSkipped()
	if got := testutil.ToFloat64(pm.engineTicksSkipped); got != 1 {
		t.Errorf("expected 1 skipped tick, got %f", got)
	}

	pm.RecordTickDuration(2 * time.Millisecond)
	count := testutil.CollectAndCount(pm.tickDuration)
	if count != 1 {
		t.Errorf("expected 1 tick duration histogram, got %d", count)
	}

	pm.IncrementFindingsEmitted("critical", 2)
	pm.IncrementFindingsEmitted("info", 5)

	count = testutil.CollectAndCount(pm.findingsEmitted)
	if count != 2 {
		t.Errorf("expected 2 severity combinations, got %d", count)
	}
	if got := testutil.ToFloat64(pm.findingsEmitted.WithLabelValues("info")); got != 5 {
		t.Errorf("expected 5 info findings, got %f", got)
	}

	pm.IncrementScansDequeued()
	if got := testutil.ToFloat64(pm.scansDequeued); got != 1 {
		t.Errorf("expected 1 dequeued scan, got %f", got)
	}
}

func TestPrometheusMetrics_ValidationMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementValidationsTotal("valid")
	pm.IncrementValidationsTotal("valid")
	pm.IncrementValidationsTotal("invalid")

	count := testutil.CollectAndCount(pm.validationsTotal)
	if count != 2 {
		t.Errorf("expected 2 result types, got %d", count)
	}
	if got := testutil.ToFloat64(pm.validationsTotal.WithLabelValues("valid")); got != 2 {
		t.Errorf("expected 2 valid verdicts, got %f", got)
	}

	pm.RecordValidationDuration(900 * time.Millisecond)
	count = testutil.CollectAndCount(pm.validationDuration)
	if count != 1 {
		t.Errorf("expected 1 duration histogram, got %d", count)
	}
}

func TestPrometheusMetrics_StoreMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementStateSaves(true)
	pm.IncrementStateSaves(false)

	count := testutil.CollectAndCount(pm.stateSaves)
	if count != 2 {
		t.Errorf("expected 2 status types, got %d", count)
	}

	pm.SetRecordsByKind("scans", 3)
	pm.SetRecordsByKind("templates", 14)
	pm.SetRecordsByKind("findings", 2)

	count = testutil.CollectAndCount(pm.recordsByKind)
	if count != 3 {
		t.Errorf("expected 3 record kinds, got %d", count)
	}
	if got := testutil.ToFloat64(pm.recordsByKind.WithLabelValues("templates")); got != 14 {
		t.Errorf("expected 14 templates, got %f", got)
	}
}

func TestPrometheusMetrics_APIMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.IncrementHTTPRequests("GET", "/api/v1/scans", "200")
	pm.IncrementHTTPRequests("POST", "/api/v1/scans", "201")
	pm.IncrementHTTPRequests("GET", "/api/v1/scans", "200")

	count := testutil.CollectAndCount(pm.httpRequests)
	if count != 2 {
		t.Errorf("expected 2 endpoint/status combinations, got %d", count)
	}

	pm.RecordHTTPDuration("GET", "/api/v1/scans", 100*time.Millisecond)
	pm.RecordHTTPDuration("POST", "/api/v1/scans", 200*time.Millisecond)

	count = testutil.CollectAndCount(pm.httpDuration)
	if count != 2 {
		t.Errorf("expected 2 endpoint types, got %d", count)
	}

	pm.IncrementHTTPErrors("GET", "/api/v1/scans", "timeout")
	pm.IncrementHTTPErrors("POST", "/api/v1/scans", "validation_error")

	count = testutil.CollectAndCount(pm.httpErrors)
	if count != 2 {
		t.Errorf("expected 2 error types, got %d", count)
	}

	pm.SetWebSocketClients(4)
	if got := testutil.ToFloat64(pm.wsClients); got != 4 {
		t.Errorf("expected 4 websocket clients, got %f", got)
	}
}

func TestPrometheusMetrics_SystemMetrics(t *testing.T) {
	pm := NewPrometheusMetrics()

	pm.UpdateSystemMetrics()

	count := testutil.CollectAndCount(pm.memoryUsage)
	if count != 1 {
		t.Errorf("expected 1 memory metric, got %d", count)
	}

	count = testutil.CollectAndCount(pm.goroutines)
	if count != 1 {
		t.Errorf("expected 1 goroutines metric, got %d", count)
	}

	count = testutil.CollectAndCount(pm.uptime)
	if count != 1 {
		t.Errorf("expected 1 uptime metric, got %d", count)
	}

	before := pm.GetLastUpdate()
	time.Sleep(10 * time.Millisecond)
	pm.UpdateSystemMetrics()
	after := pm.GetLastUpdate()

	if !after.After(before) {
		t.Errorf("expected last update to change after UpdateSystemMetrics")
	}
}

func TestPrometheusMetrics_StartPeriodicUpdates(t *testing.T) {
	pm := NewPrometheusMetrics()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		pm.StartPeriodicUpdates(ctx, 20*time.Millisecond)
		close(done)
	}()

	<-ctx.Done()
	<-done

	count := testutil.CollectAndCount(pm.uptime)
	if count != 1 {
		t.Errorf("expected metrics to be updated, got %d uptime metrics", count)
	}
}

func TestPrometheusMetrics_GlobalInstance(t *testing.T) {
	gm1 := GetGlobalMetrics()
	if gm1 == nil {
		t.Fatal("GetGlobalMetrics returned nil")
	}

	// Should return same instance
	gm2 := GetGlobalMetrics()
	if gm1 != gm2 {
		t.Error("GetGlobalMetrics should return same instance")
	}
}
