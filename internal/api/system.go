package api

import (
	"net/http"
	"time"

	"github.com/scandeck/scandeck/internal/metrics"
)

const serviceVersion = "0.1.0"

// livenessHandler provides a simple liveness check endpoint.
func (s *Server) livenessHandler(w http.ResponseWriter, r *http.Request) {
	s.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(s.startTime).String(),
	})
	s.metrics.Counter("api_liveness_checks_total", nil)
}

// healthHandler reports service health. The console has no external
// dependencies; health reflects that the store is reachable and the
// simulation loop is wired.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{
		"store": "ok",
	}
	if s.engine != nil {
		checks["engine"] = "ok"
	} else {
		checks["engine"] = "not configured"
	}

	s.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
	s.metrics.Counter("api_health_checks_total", metrics.Labels{
		metrics.LabelStatus: "healthy",
	})
}

// statusHandler provides detailed status information.
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	s.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"service":      "scandeck-api",
		"version":      serviceVersion,
		"timestamp":    time.Now().UTC(),
		"uptime":       time.Since(s.startTime).String(),
		"active_scans": stats.ActiveScans,
		"total_scans":  stats.TotalScans,
	})
	s.metrics.Gauge("scans_active", float64(stats.ActiveScans), nil)
	s.metrics.Counter("api_status_checks_total", nil)
}

// versionHandler provides version information.
func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	s.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"version":   serviceVersion,
		"service":   "scandeck",
		"timestamp": time.Now().UTC(),
	})
}

// listTargetListsHandler returns the configured target lists.
func (s *Server) listTargetListsHandler(w http.ResponseWriter, r *http.Request) {
	s.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"data": s.store.TargetLists(),
	})
}

// statsHandler returns the dashboard aggregate view.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	s.WriteJSON(w, r, http.StatusOK, s.store.Stats())
}

// UIPreferences is the durable console UI state.
type UIPreferences struct {
	SidebarCollapsed bool `json:"sidebar_collapsed"`
}

// getUIHandler returns persisted UI preferences.
func (s *Server) getUIHandler(w http.ResponseWriter, r *http.Request) {
	s.WriteJSON(w, r, http.StatusOK, UIPreferences{
		SidebarCollapsed: s.store.SidebarCollapsed(),
	})
}

// updateUIHandler replaces persisted UI preferences.
func (s *Server) updateUIHandler(w http.ResponseWriter, r *http.Request) {
	var prefs UIPreferences
	if err := s.ParseJSON(r, &prefs); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	s.store.SetSidebarCollapsed(prefs.SidebarCollapsed)
	s.WriteJSON(w, r, http.StatusOK, prefs)
}
