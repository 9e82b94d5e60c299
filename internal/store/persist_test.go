package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s := New()
	s.Seed()
	s.SetSidebarCollapsed(true)
	require.True(t, s.ToggleFalsePositive("finding-001"))
	require.True(t, s.SetFindingNotes("finding-002", "benign, internal panel"))

	require.NoError(t, s.SaveState(path))

	// Fresh store from seed, then overlay.
	s2 := New()
	s2.Seed()
	require.NoError(t, s2.LoadState(path))

	assert.True(t, s2.SidebarCollapsed())

	f1, err := s2.Finding("finding-001")
	require.NoError(t, err)
	assert.True(t, f1.IsFalsePositive)

	f2, err := s2.Finding("finding-002")
	require.NoError(t, err)
	assert.Equal(t, "benign, internal panel", f2.Notes)
}

func TestSaveStateSkipsUntouchedFindings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s := New()
	s.AddFindings([]*Finding{
		{ID: "f-touched", ScanID: "scan-a", IsFalsePositive: true},
		{ID: "f-untouched", ScanID: "scan-a"},
	})
	require.NoError(t, s.SaveState(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "f-touched")
	assert.NotContains(t, string(data), "f-untouched",
		"findings without operator judgments should not be persisted")
}

func TestLoadStateResetsInFlightValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s := New()
	s.Seed()
	validatedAt := time.Now()
	require.True(t, s.UpdateTemplate("tmpl-0001", func(tmpl *Template) bool {
		tmpl.Status = TemplateValidating
		tmpl.ValidatedAt = &validatedAt
		return true
	}))
	require.NoError(t, s.SaveState(path))

	s2 := New()
	s2.Seed()
	require.NoError(t, s2.LoadState(path))

	tmpl, err := s2.Template("tmpl-0001")
	require.NoError(t, err)
	assert.Equal(t, TemplateNotValidated, tmpl.Status,
		"a validation in flight at shutdown must reload as not validated")
	assert.Nil(t, tmpl.ValidatedAt)
}

func TestLoadStateMissingFile(t *testing.T) {
	s := New()
	s.Seed()
	err := s.LoadState(filepath.Join(t.TempDir(), "does-not-exist.json"))
	assert.NoError(t, err, "a missing state file means a fresh start, not a failure")
}

func TestLoadStateCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s := New()
	s.Seed()
	assert.Error(t, s.LoadState(path))
}

func TestLoadStateIgnoresUnknownIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s := New()
	s.AddFindings([]*Finding{{ID: "f-old", ScanID: "scan-a", IsFalsePositive: true}})
	s.AddTemplates([]*Template{{ID: "tmpl-old", Status: TemplateValid}})
	require.NoError(t, s.SaveState(path))

	// New store without those records; overlay must not invent them.
	s2 := New()
	require.NoError(t, s2.LoadState(path))
	assert.Empty(t, s2.Findings())
	assert.Empty(t, s2.Templates())
}

func TestSaveStateLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	s := New()
	s.Seed()
	require.NoError(t, s.SaveState(path))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "state.json", entries[0].Name())
}
