package store

import (
	"log/slog"
	"sync"

	"github.com/scandeck/scandeck/internal/errors"
	"github.com/scandeck/scandeck/internal/logging"
)

// EventKind classifies a store mutation for subscribers.
type EventKind string

const (
	EventScanUpdated     EventKind = "scan_updated"
	EventScanAdded       EventKind = "scan_added"
	EventScanDeleted     EventKind = "scan_deleted"
	EventTemplateUpdated EventKind = "template_updated"
	EventTemplateAdded   EventKind = "template_added"
	EventFindingUpdated  EventKind = "finding_updated"
	EventFindingDeleted  EventKind = "finding_deleted"
)

// Event is a change notification pushed to subscribers after a mutation.
type Event struct {
	Kind EventKind `json:"kind"`
	ID   string    `json:"id"`
}

const subscriberBuffer = 64

// Store owns the console's collections. It is constructed once at daemon
// start and handed to the lifecycle controller, the simulation engine,
// and the validation simulator. A single RWMutex guards the collections;
// mutation closures run under the write lock so each command is atomic.
type Store struct {
	mu        sync.RWMutex
	scans     []*Scan
	templates []*Template
	findings  []*Finding
	targets   []*TargetList

	sidebarCollapsed bool

	subMu       sync.Mutex
	subscribers map[int]chan Event
	nextSubID   int

	logger *slog.Logger
}

// New creates an empty store.
func New() *Store {
	return &Store{
		subscribers: make(map[int]chan Event),
		logger:      logging.Default().With("component", "store"),
	}
}

// Subscribe registers a change listener. The returned cancel function
// must be called when the subscriber goes away. Events are dropped, not
// blocked on, when a subscriber lags.
func (s *Store) Subscribe() (<-chan Event, func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Event, subscriberBuffer)
	s.subscribers[id] = ch

	cancel := func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if ch, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (s *Store) notify(kind EventKind, id string) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- Event{Kind: kind, ID: id}:
		default:
			// Subscriber is not keeping up; drop rather than stall a tick.
		}
	}
}

// Scans returns a snapshot of all scans in store order (newest first).
func (s *Store) Scans() []*Scan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Scan, len(s.scans))
	for i, scan := range s.scans {
		out[i] = scan.Clone()
	}
	return out
}

// Scan returns a copy of a single scan.
func (s *Store) Scan(id string) (*Scan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, scan := range s.scans {
		if scan.ID == id {
			return scan.Clone(), nil
		}
	}
	return nil, errors.ErrScanNotFound(id)
}

// AddScan prepends a scan so the newest appears first.
func (s *Store) AddScan(scan *Scan) {
	s.mu.Lock()
	s.scans = append([]*Scan{scan}, s.scans...)
	s.mu.Unlock()

	s.notify(EventScanAdded, scan.ID)
}

// UpdateScan applies fn to the named scan under the write lock. The
// closure sees the scan's current state, so callers can re-check status
// immediately before mutating; a pause or stop issued concurrently with
// an engine tick is therefore never silently overwritten. Returns false
// if the scan does not exist or fn declined to apply.
func (s *Store) UpdateScan(id string, fn func(*Scan) bool) bool {
	s.mu.Lock()
	var applied bool
	for _, scan := range s.scans {
		if scan.ID == id {
			applied = fn(scan)
			break
		}
	}
	s.mu.Unlock()

	if applied {
		s.notify(EventScanUpdated, id)
	}
	return applied
}

// RunningScanExists reports whether any scan is currently running.
func (s *Store) RunningScanExists() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, scan := range s.scans {
		if scan.Status == ScanRunning {
			return true
		}
	}
	return false
}

// FirstQueuedScan returns the id of the first queued scan in store
// order, or empty if the queue is empty.
func (s *Store) FirstQueuedScan() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, scan := range s.scans {
		if scan.Status == ScanQueued {
			return scan.ID, true
		}
	}
	return "", false
}

// RunningScanIDs returns the ids of all running scans in store order.
func (s *Store) RunningScanIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, scan := range s.scans {
		if scan.Status == ScanRunning {
			ids = append(ids, scan.ID)
		}
	}
	return ids
}

// DeleteScans removes the named scans and cascades deletion of every
// finding that references them. Unknown ids are ignored.
func (s *Store) DeleteScans(ids []string) int {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	s.mu.Lock()
	kept := s.scans[:0]
	removed := 0
	for _, scan := range s.scans {
		if idSet[scan.ID] {
			removed++
			continue
		}
		kept = append(kept, scan)
	}
	s.scans = kept

	keptFindings := s.findings[:0]
	for _, f := range s.findings {
		if idSet[f.ScanID] {
			continue
		}
		keptFindings = append(keptFindings, f)
	}
	s.findings = keptFindings
	s.mu.Unlock()

	if removed > 0 {
		for _, id := range ids {
			s.notify(EventScanDeleted, id)
		}
		s.logger.Info("Scans deleted", "count", removed)
	}
	return removed
}

// Templates returns a snapshot of all templates.
func (s *Store) Templates() []*Template {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Template, len(s.templates))
	for i, t := range s.templates {
		out[i] = t.Clone()
	}
	return out
}

// Template returns a copy of a single template.
func (s *Store) Template(id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.templates {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return nil, errors.ErrTemplateNotFound(id)
}

// AddTemplates appends templates to the catalog.
func (s *Store) AddTemplates(templates []*Template) {
	s.mu.Lock()
	s.templates = append(s.templates, templates...)
	s.mu.Unlock()

	for _, t := range templates {
		s.notify(EventTemplateAdded, t.ID)
	}
}

// UpdateTemplate applies fn to the named template under the write lock.
func (s *Store) UpdateTemplate(id string, fn func(*Template) bool) bool {
	s.mu.Lock()
	var applied bool
	for _, t := range s.templates {
		if t.ID == id {
			applied = fn(t)
			break
		}
	}
	s.mu.Unlock()

	if applied {
		s.notify(EventTemplateUpdated, id)
	}
	return applied
}

// Findings returns a snapshot of all findings.
func (s *Store) Findings() []*Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Finding, len(s.findings))
	for i, f := range s.findings {
		out[i] = f.Clone()
	}
	return out
}

// Finding returns a copy of a single finding.
func (s *Store) Finding(id string) (*Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, f := range s.findings {
		if f.ID == id {
			return f.Clone(), nil
		}
	}
	return nil, errors.ErrFindingNotFound(id)
}

// FindingsByScan returns all findings referencing the given scan.
func (s *Store) FindingsByScan(scanID string) []*Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Finding
	for _, f := range s.findings {
		if f.ScanID == scanID {
			out = append(out, f.Clone())
		}
	}
	return out
}

// AddFindings appends findings to the result set.
func (s *Store) AddFindings(findings []*Finding) {
	s.mu.Lock()
	s.findings = append(s.findings, findings...)
	s.mu.Unlock()
}

// ToggleFalsePositive flips the false-positive flag on a finding.
func (s *Store) ToggleFalsePositive(id string) bool {
	return s.updateFinding(id, func(f *Finding) {
		f.IsFalsePositive = !f.IsFalsePositive
	})
}

// SetFindingNotes replaces the operator notes on a finding.
func (s *Store) SetFindingNotes(id, notes string) bool {
	return s.updateFinding(id, func(f *Finding) {
		f.Notes = notes
	})
}

func (s *Store) updateFinding(id string, fn func(*Finding)) bool {
	s.mu.Lock()
	var found bool
	for _, f := range s.findings {
		if f.ID == id {
			fn(f)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.notify(EventFindingUpdated, id)
	}
	return found
}

// DeleteFindings removes the named findings. Unknown ids are ignored.
func (s *Store) DeleteFindings(ids []string) int {
	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	s.mu.Lock()
	kept := s.findings[:0]
	removed := 0
	for _, f := range s.findings {
		if idSet[f.ID] {
			removed++
			continue
		}
		kept = append(kept, f)
	}
	s.findings = kept
	s.mu.Unlock()

	if removed > 0 {
		for _, id := range ids {
			s.notify(EventFindingDeleted, id)
		}
	}
	return removed
}

// TargetLists returns a snapshot of the configured target lists.
func (s *Store) TargetLists() []*TargetList {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*TargetList, len(s.targets))
	for i, tl := range s.targets {
		cp := *tl
		cp.Targets = append([]string(nil), tl.Targets...)
		out[i] = &cp
	}
	return out
}

// AddTargetLists appends target lists.
func (s *Store) AddTargetLists(lists []*TargetList) {
	s.mu.Lock()
	s.targets = append(s.targets, lists...)
	s.mu.Unlock()
}

// SetSidebarCollapsed records the console sidebar flag, which persists
// across restarts.
func (s *Store) SetSidebarCollapsed(collapsed bool) {
	s.mu.Lock()
	s.sidebarCollapsed = collapsed
	s.mu.Unlock()
}

// SidebarCollapsed returns the persisted sidebar flag.
func (s *Store) SidebarCollapsed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sidebarCollapsed
}

// Stats computes the dashboard aggregate view.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		TotalTemplates:     len(s.templates),
		TotalScans:         len(s.scans),
		TotalFindings:      len(s.findings),
		FindingsBySeverity: EmptyFindingsCount(),
	}

	for _, t := range s.templates {
		if t.Source == SourceOfficial {
			stats.OfficialTemplates++
		} else {
			stats.CustomTemplates++
		}
	}
	for _, scan := range s.scans {
		if scan.Status == ScanRunning || scan.Status == ScanQueued || scan.Status == ScanPaused {
			stats.ActiveScans++
		}
		stats.TargetsScanned += scan.TargetsScanned
	}
	for _, f := range s.findings {
		stats.FindingsBySeverity[f.Severity]++
	}
	return stats
}
