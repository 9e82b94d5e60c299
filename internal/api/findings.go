package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/scandeck/scandeck/internal/errors"
)

// listFindingsHandler returns findings with optional scan, severity,
// and false-positive filters.
func (s *Server) listFindingsHandler(w http.ResponseWriter, r *http.Request) {
	scanID := s.GetQueryParam(r, "scan_id", "")
	severity := s.GetQueryParam(r, "severity", "")
	fpFilter := s.GetQueryParam(r, "false_positive", "")

	findings := s.store.Findings()
	filtered := findings[:0]
	for _, f := range findings {
		if scanID != "" && f.ScanID != scanID {
			continue
		}
		if severity != "" && string(f.Severity) != severity {
			continue
		}
		if fpFilter == "true" && !f.IsFalsePositive {
			continue
		}
		if fpFilter == "false" && f.IsFalsePositive {
			continue
		}
		filtered = append(filtered, f)
	}

	params := s.GetPaginationParams(r)
	total := int64(len(filtered))
	start := params.Offset
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + params.PageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	s.WritePaginatedResponse(w, r, filtered[start:end], params, total)
}

// getFindingHandler returns a single finding by id.
func (s *Server) getFindingHandler(w http.ResponseWriter, r *http.Request) {
	finding, err := s.store.Finding(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	s.WriteJSON(w, r, http.StatusOK, finding)
}

// toggleFalsePositiveHandler flips the false-positive flag on a finding
// and returns the updated record.
func (s *Server) toggleFalsePositiveHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !s.store.ToggleFalsePositive(id) {
		s.writeError(w, r, http.StatusNotFound, errors.ErrFindingNotFound(id))
		return
	}
	finding, err := s.store.Finding(id)
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	s.WriteJSON(w, r, http.StatusOK, finding)
}

// FindingNotesRequest carries operator notes for a finding.
type FindingNotesRequest struct {
	Notes string `json:"notes"`
}

// setFindingNotesHandler replaces the operator notes on a finding.
func (s *Server) setFindingNotesHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req FindingNotesRequest
	if err := s.ParseJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	if !s.store.SetFindingNotes(id, req.Notes) {
		s.writeError(w, r, http.StatusNotFound, errors.ErrFindingNotFound(id))
		return
	}
	finding, err := s.store.Finding(id)
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	s.WriteJSON(w, r, http.StatusOK, finding)
}

// DeleteFindingsRequest is the payload for bulk finding deletion.
type DeleteFindingsRequest struct {
	IDs []string `json:"ids"`
}

// deleteFindingsHandler removes a batch of findings. Unknown ids are
// skipped silently.
func (s *Server) deleteFindingsHandler(w http.ResponseWriter, r *http.Request) {
	var req DeleteFindingsRequest
	if err := s.ParseJSON(r, &req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	if len(req.IDs) == 0 {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("no finding ids given"))
		return
	}

	removed := s.store.DeleteFindings(req.IDs)
	s.WriteJSON(w, r, http.StatusOK, map[string]interface{}{"deleted": removed})
}
