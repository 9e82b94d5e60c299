package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	stateDirPerm  = 0750
	stateFilePerm = 0600
)

// persistedState is the durable subset of console state. The simulated
// collections are rebuilt from seed data on every start; only operator
// judgments and UI preferences survive a restart.
type persistedState struct {
	Version          int                 `json:"version"`
	SavedAt          time.Time           `json:"saved_at"`
	SidebarCollapsed bool                `json:"sidebar_collapsed"`
	Findings         []persistedFinding  `json:"findings,omitempty"`
	Templates        []persistedTemplate `json:"templates,omitempty"`
}

type persistedFinding struct {
	ID              string `json:"id"`
	IsFalsePositive bool   `json:"is_false_positive"`
	Notes           string `json:"notes,omitempty"`
}

type persistedTemplate struct {
	ID          string         `json:"id"`
	Status      TemplateStatus `json:"status"`
	ValidatedAt *time.Time     `json:"validated_at,omitempty"`
}

const stateVersion = 1

// SaveState writes the durable subset of store state to path. The write
// goes through a temp file and rename so a crash mid-write never leaves
// a truncated state file behind.
func (s *Store) SaveState(path string) error {
	s.mu.RLock()
	state := persistedState{
		Version:          stateVersion,
		SavedAt:          time.Now(),
		SidebarCollapsed: s.sidebarCollapsed,
	}
	for _, f := range s.findings {
		if !f.IsFalsePositive && f.Notes == "" {
			continue
		}
		state.Findings = append(state.Findings, persistedFinding{
			ID:              f.ID,
			IsFalsePositive: f.IsFalsePositive,
			Notes:           f.Notes,
		})
	}
	for _, t := range s.templates {
		state.Templates = append(state.Templates, persistedTemplate{
			ID:          t.ID,
			Status:      t.Status,
			ValidatedAt: cloneTime(t.ValidatedAt),
		})
	}
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), stateDirPerm); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, stateFilePerm); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	s.logger.Debug("State saved", "path", path,
		"findings", len(state.Findings), "templates", len(state.Templates))
	return nil
}

// LoadState overlays a previously saved state file onto the current
// collections. Records referencing ids that no longer exist are dropped
// silently. A missing file is not an error; the store simply starts from
// seed state.
func (s *Store) LoadState(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to parse state file: %w", err)
	}

	s.mu.Lock()
	s.sidebarCollapsed = state.SidebarCollapsed

	byFindingID := make(map[string]*Finding, len(s.findings))
	for _, f := range s.findings {
		byFindingID[f.ID] = f
	}
	for _, pf := range state.Findings {
		if f, ok := byFindingID[pf.ID]; ok {
			f.IsFalsePositive = pf.IsFalsePositive
			f.Notes = pf.Notes
		}
	}

	byTemplateID := make(map[string]*Template, len(s.templates))
	for _, t := range s.templates {
		byTemplateID[t.ID] = t
	}
	for _, pt := range state.Templates {
		t, ok := byTemplateID[pt.ID]
		if !ok {
			continue
		}
		// A validation that was in flight when the daemon went down never
		// finished; reload it as not validated rather than stuck.
		if pt.Status == TemplateValidating {
			t.Status = TemplateNotValidated
			t.ValidatedAt = nil
			continue
		}
		t.Status = pt.Status
		t.ValidatedAt = cloneTime(pt.ValidatedAt)
	}
	s.mu.Unlock()

	s.logger.Info("State loaded", "path", path,
		"findings", len(state.Findings), "templates", len(state.Templates))
	return nil
}
