package api

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/scandeck/scandeck/internal/errors"
	"github.com/scandeck/scandeck/internal/store"
)

// validate checks scan configuration payloads against the struct tags
// on store.ScanConfig.
var validate = validator.New()

// CreateScanRequest is the payload for POST /scans. Omitted tuning
// fields fall back to console defaults.
type CreateScanRequest struct {
	Name                   string         `json:"name"`
	Description            string         `json:"description"`
	TemplateIDs            []string       `json:"template_ids"`
	TargetListID           string         `json:"target_list_id"`
	Concurrency            int            `json:"concurrency"`
	RateLimit              int            `json:"rate_limit"`
	Timeout                int            `json:"timeout"`
	Retries                int            `json:"retries"`
	MinSeverity            store.Severity `json:"min_severity"`
	IncludeRequestResponse *bool          `json:"include_request_response"`
	VerboseMode            *bool          `json:"verbose_mode"`
	CustomFlags            string         `json:"custom_flags"`
}

// toConfig merges the request over the default configuration.
func (req *CreateScanRequest) toConfig() store.ScanConfig {
	cfg := store.DefaultScanConfig(req.Name)
	cfg.Description = req.Description
	cfg.TemplateIDs = req.TemplateIDs
	cfg.CustomFlags = req.CustomFlags
	if req.TargetListID != "" {
		cfg.TargetListID = req.TargetListID
	}
	if req.Concurrency > 0 {
		cfg.Concurrency = req.Concurrency
	}
	if req.RateLimit > 0 {
		cfg.RateLimit = req.RateLimit
	}
	if req.Timeout > 0 {
		cfg.Timeout = req.Timeout
	}
	if req.Retries > 0 {
		cfg.Retries = req.Retries
	}
	if req.MinSeverity != "" {
		cfg.MinSeverity = req.MinSeverity
	}
	if req.IncludeRequestResponse != nil {
		cfg.IncludeRequestResponse = *req.IncludeRequestResponse
	}
	if req.VerboseMode != nil {
		cfg.VerboseMode = *req.VerboseMode
	}
	return cfg
}

// CommandResponse reports the outcome of a lifecycle command. A command
// that found the scan in the wrong state is acknowledged with
// applied=false rather than rejected.
type CommandResponse struct {
	ScanID  string `json:"scan_id"`
	Command string `json:"command"`
	Applied bool   `json:"applied"`
}

// listScansHandler returns scans, optionally filtered by status, newest
// first.
func (s *Server) listScansHandler(w http.ResponseWriter, r *http.Request) {
	statusFilter := s.GetQueryParam(r, "status", "")

	scans := s.store.Scans()
	if statusFilter != "" {
		filtered := scans[:0]
		for _, scan := range scans {
			if string(scan.Status) == statusFilter {
				filtered = append(filtered, scan)
			}
		}
		scans = filtered
	}

	params := s.GetPaginationParams(r)
	total := int64(len(scans))
	start := params.Offset
	if start > len(scans) {
		start = len(scans)
	}
	end := start + params.PageSize
	if end > len(scans) {
		end = len(scans)
	}

	s.WritePaginatedResponse(w, r, scans[start:end], params, total)
}

// createScanHandler registers a new scan. The scan starts immediately
// when the runner slot is free, otherwise it joins the queue.
func (s *Server) createScanHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateScanRequest
	if err := s.ParseJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	cfg := req.toConfig()
	if err := validate.Struct(cfg); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid scan config: %w", err))
		return
	}
	scan := s.controller.Create(cfg)
	s.WriteJSON(w, r, http.StatusCreated, scan)
}

// getScanHandler returns a single scan by id.
func (s *Server) getScanHandler(w http.ResponseWriter, r *http.Request) {
	scan, err := s.store.Scan(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	s.WriteJSON(w, r, http.StatusOK, scan)
}

// deleteScanHandler removes a single scan and its findings.
func (s *Server) deleteScanHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if removed := s.controller.Delete([]string{id}); removed == 0 {
		s.writeError(w, r, http.StatusNotFound, errors.ErrScanNotFound(id))
		return
	}
	s.WriteJSON(w, r, http.StatusOK, map[string]interface{}{"deleted": 1})
}

// DeleteScansRequest is the payload for bulk scan deletion.
type DeleteScansRequest struct {
	IDs []string `json:"ids"`
}

// deleteScansHandler removes a batch of scans and cascades their
// findings. Unknown ids are skipped silently.
func (s *Server) deleteScansHandler(w http.ResponseWriter, r *http.Request) {
	var req DeleteScansRequest
	if err := s.ParseJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if len(req.IDs) == 0 {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("no scan ids given"))
		return
	}

	removed := s.controller.Delete(req.IDs)
	s.WriteJSON(w, r, http.StatusOK, map[string]interface{}{"deleted": removed})
}

// lifecycle command handlers

func (s *Server) pauseScanHandler(w http.ResponseWriter, r *http.Request) {
	s.commandResponse(w, r, "pause", s.controller.Pause)
}

func (s *Server) resumeScanHandler(w http.ResponseWriter, r *http.Request) {
	s.commandResponse(w, r, "resume", s.controller.Resume)
}

func (s *Server) stopScanHandler(w http.ResponseWriter, r *http.Request) {
	s.commandResponse(w, r, "stop", s.controller.Stop)
}

func (s *Server) restartScanHandler(w http.ResponseWriter, r *http.Request) {
	s.commandResponse(w, r, "restart", s.controller.Restart)
}

// commandResponse runs a guarded lifecycle command. The scan must
// exist; whether the command applied depends on its current state.
func (s *Server) commandResponse(w http.ResponseWriter, r *http.Request,
	command string, fn func(string) bool) {
	id := mux.Vars(r)["id"]
	if _, err := s.store.Scan(id); err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}

	applied := fn(id)
	s.WriteJSON(w, r, http.StatusAccepted, CommandResponse{
		ScanID:  id,
		Command: command,
		Applied: applied,
	})
}

// scanFindingsHandler returns the findings that reference a scan.
func (s *Server) scanFindingsHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.store.Scan(id); err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	s.WriteJSON(w, r, http.StatusOK, map[string]interface{}{
		"data": s.store.FindingsByScan(id),
	})
}
