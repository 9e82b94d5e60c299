// Package store holds the authoritative in-memory collections for the
// scandeck console: templates, scans, and findings. All mutation goes
// through named store operations; nothing outside this package touches
// the collections directly.
package store

import (
	"time"
)

// Severity is the fixed ordered classification for templates and findings.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// Severities lists all severities from most to least severe.
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityInfo,
}

// Rank returns the position of the severity in the ordered scale,
// 0 being critical. Unknown severities rank below info.
func (s Severity) Rank() int {
	for i, known := range Severities {
		if s == known {
			return i
		}
	}
	return len(Severities)
}

// Valid reports whether the severity is one of the known values.
func (s Severity) Valid() bool {
	return s.Rank() < len(Severities)
}

// ScanStatus represents the lifecycle state of a scan.
type ScanStatus string

const (
	ScanQueued    ScanStatus = "queued"
	ScanRunning   ScanStatus = "running"
	ScanPaused    ScanStatus = "paused"
	ScanCompleted ScanStatus = "completed"
	// ScanFailed is reserved for external error injection (for example a
	// scanner process crash). No autonomous transition targets it.
	ScanFailed  ScanStatus = "failed"
	ScanStopped ScanStatus = "stopped"
)

// TemplateStatus represents the validation state of a template.
type TemplateStatus string

const (
	TemplateNotValidated TemplateStatus = "not_validated"
	TemplateValidating   TemplateStatus = "validating"
	TemplateValid        TemplateStatus = "valid"
	TemplateInvalid      TemplateStatus = "invalid"
	TemplateNeedsUpdate  TemplateStatus = "needs_update"
)

// TemplateSource distinguishes bundled rules from operator uploads.
type TemplateSource string

const (
	SourceOfficial TemplateSource = "official"
	SourceCustom   TemplateSource = "custom"
)

// Protocol is the template execution protocol.
type Protocol string

const (
	ProtocolHTTP     Protocol = "http"
	ProtocolDNS      Protocol = "dns"
	ProtocolSSL      Protocol = "ssl"
	ProtocolNetwork  Protocol = "network"
	ProtocolFile     Protocol = "file"
	ProtocolHeadless Protocol = "headless"
)

// Scan configuration bounds and defaults.
const (
	DefaultConcurrency = 25
	DefaultRateLimit   = 150
	DefaultTimeout     = 10
	DefaultRetries     = 1

	MaxConcurrency = 100
	MaxRateLimit   = 1000
	MaxTimeout     = 60
	MaxRetries     = 3
)

// ScanConfig is the immutable snapshot of a scan's launch parameters.
type ScanConfig struct {
	Name                   string   `json:"name" yaml:"name" validate:"required,min=1,max=255"`
	Description            string   `json:"description,omitempty" yaml:"description,omitempty"`
	TemplateIDs            []string `json:"template_ids" yaml:"template_ids"`
	TargetListID           string   `json:"target_list_id" yaml:"target_list_id"`
	Concurrency            int      `json:"concurrency" yaml:"concurrency" validate:"min=1,max=100"`
	RateLimit              int      `json:"rate_limit" yaml:"rate_limit" validate:"min=1,max=1000"`
	Timeout                int      `json:"timeout" yaml:"timeout" validate:"min=1,max=60"`
	Retries                int      `json:"retries" yaml:"retries" validate:"min=0,max=3"`
	MinSeverity            Severity `json:"min_severity" yaml:"min_severity"`
	IncludeRequestResponse bool     `json:"include_request_response" yaml:"include_request_response"`
	VerboseMode            bool     `json:"verbose_mode" yaml:"verbose_mode"`
	CustomFlags            string   `json:"custom_flags,omitempty" yaml:"custom_flags,omitempty"`
}

// DefaultScanConfig returns a scan configuration with console defaults.
func DefaultScanConfig(name string) ScanConfig {
	return ScanConfig{
		Name:                   name,
		TargetListID:           "tl-001",
		Concurrency:            DefaultConcurrency,
		RateLimit:              DefaultRateLimit,
		Timeout:                DefaultTimeout,
		Retries:                DefaultRetries,
		MinSeverity:            SeverityInfo,
		IncludeRequestResponse: true,
		VerboseMode:            true,
	}
}

// Scan is a unit of scanning work: a set of templates applied to a set
// of targets. Progress fields are mutated by the simulation engine every
// tick while the scan is running; timestamps use pointers so "not yet
// reached this state" is representable without sentinels.
type Scan struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      ScanStatus `json:"status"`

	Progress           float64 `json:"progress"`
	TemplatesProcessed int     `json:"templates_processed"`
	TemplatesTotal     int     `json:"templates_total"`
	TargetsScanned     int     `json:"targets_scanned"`
	TargetsTotal       int     `json:"targets_total"`
	CurrentTemplate    string  `json:"current_template"`
	RequestsPerSec     int     `json:"requests_per_sec"`

	FindingsCount map[Severity]int `json:"findings_count"`
	TotalFindings int              `json:"total_findings"`

	EstimatedTimeRemaining string `json:"estimated_time_remaining"`
	ElapsedTime            string `json:"elapsed_time"`

	CPUPercent int `json:"cpu_percent"`
	MemoryMB   int `json:"memory_mb"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	StoppedAt   *time.Time `json:"stopped_at,omitempty"`
	PausedAt    *time.Time `json:"paused_at,omitempty"`

	Config ScanConfig `json:"config"`
}

// EmptyFindingsCount returns a findings map with every severity at zero.
func EmptyFindingsCount() map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, sev := range Severities {
		counts[sev] = 0
	}
	return counts
}

// SumFindings returns the sum of all severity buckets. TotalFindings must
// always equal this value; the engine re-establishes the invariant on
// every tick.
func SumFindings(counts map[Severity]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

// Clone returns a deep copy of the scan safe to hand outside the store.
func (s *Scan) Clone() *Scan {
	out := *s
	out.FindingsCount = make(map[Severity]int, len(s.FindingsCount))
	for sev, n := range s.FindingsCount {
		out.FindingsCount[sev] = n
	}
	out.Config.TemplateIDs = append([]string(nil), s.Config.TemplateIDs...)
	out.StartedAt = cloneTime(s.StartedAt)
	out.CompletedAt = cloneTime(s.CompletedAt)
	out.StoppedAt = cloneTime(s.StoppedAt)
	out.PausedAt = cloneTime(s.PausedAt)
	return &out
}

// Template is a detection rule definition. Identity fields are immutable
// after load; only the validation state changes at runtime.
type Template struct {
	ID          string         `json:"id"`
	TemplateID  string         `json:"template_id"`
	Name        string         `json:"name"`
	Severity    Severity       `json:"severity"`
	Tags        []string       `json:"tags"`
	Protocol    Protocol       `json:"protocol"`
	Author      string         `json:"author"`
	Source      TemplateSource `json:"source"`
	Status      TemplateStatus `json:"status"`
	Description string         `json:"description"`
	FilePath    string         `json:"file_path"`
	FileHash    string         `json:"file_hash"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CVSS        *float64       `json:"cvss,omitempty"`
	CWE         string         `json:"cwe,omitempty"`
	References  []string       `json:"references,omitempty"`
	ValidatedAt *time.Time     `json:"validated_at,omitempty"`
}

// Clone returns a deep copy of the template.
func (t *Template) Clone() *Template {
	out := *t
	out.Tags = append([]string(nil), t.Tags...)
	out.References = append([]string(nil), t.References...)
	out.ValidatedAt = cloneTime(t.ValidatedAt)
	if t.CVSS != nil {
		v := *t.CVSS
		out.CVSS = &v
	}
	return &out
}

// Finding is a single detection result. ScanID and TemplateID are
// non-owning references used for lookup and cascade deletes.
type Finding struct {
	ID              string    `json:"id"`
	ScanID          string    `json:"scan_id"`
	TemplateID      string    `json:"template_id"`
	TemplateName    string    `json:"template_name"`
	Severity        Severity  `json:"severity"`
	Target          string    `json:"target"`
	MatchedAt       time.Time `json:"matched_at"`
	Description     string    `json:"description"`
	CWE             string    `json:"cwe,omitempty"`
	CVSS            *float64  `json:"cvss,omitempty"`
	Request         string    `json:"request,omitempty"`
	Response        string    `json:"response,omitempty"`
	MatcherDetails  string    `json:"matcher_details,omitempty"`
	References      []string  `json:"references,omitempty"`
	IsFalsePositive bool      `json:"is_false_positive"`
	Notes           string    `json:"notes,omitempty"`
	Tags            []string  `json:"tags"`
}

// Clone returns a deep copy of the finding.
func (f *Finding) Clone() *Finding {
	out := *f
	out.Tags = append([]string(nil), f.Tags...)
	out.References = append([]string(nil), f.References...)
	if f.CVSS != nil {
		v := *f.CVSS
		out.CVSS = &v
	}
	return &out
}

// TargetList is a named set of scan targets.
type TargetList struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Targets     []string  `json:"targets"`
	CreatedAt   time.Time `json:"created_at"`
	UsedInScans int       `json:"used_in_scans"`
}

// Stats is the aggregate view served to the dashboard.
type Stats struct {
	TotalTemplates     int              `json:"total_templates"`
	OfficialTemplates  int              `json:"official_templates"`
	CustomTemplates    int              `json:"custom_templates"`
	TotalScans         int              `json:"total_scans"`
	ActiveScans        int              `json:"active_scans"`
	TotalFindings      int              `json:"total_findings"`
	FindingsBySeverity map[Severity]int `json:"findings_by_severity"`
	TargetsScanned     int              `json:"targets_scanned"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
