package store

import (
	"fmt"
	"strings"
	"time"
)

var seedCVEs = []string{
	"CVE-2024-3400", "CVE-2024-21762", "CVE-2023-46805", "CVE-2023-44228",
	"CVE-2023-42793", "CVE-2023-38831", "CVE-2023-36884", "CVE-2023-34362",
	"CVE-2023-27997", "CVE-2023-23397", "CVE-2023-20198", "CVE-2023-0669",
}

var seedCVETitles = map[string]string{
	"CVE-2024-3400":  "PAN-OS GlobalProtect Command Injection",
	"CVE-2024-21762": "Fortinet FortiOS Out-of-Bound Write",
	"CVE-2023-46805": "Ivanti Connect Secure Authentication Bypass",
	"CVE-2023-44228": "Log4j2 Remote Code Execution",
	"CVE-2023-42793": "JetBrains TeamCity Authentication Bypass",
	"CVE-2023-38831": "WinRAR Code Execution via ZIP",
	"CVE-2023-36884": "Microsoft Office Remote Code Execution",
	"CVE-2023-34362": "MOVEit Transfer SQL Injection",
	"CVE-2023-27997": "Fortinet FortiOS Heap Buffer Overflow",
	"CVE-2023-23397": "Microsoft Outlook Privilege Escalation",
	"CVE-2023-20198": "Cisco IOS XE Web UI Privilege Escalation",
	"CVE-2023-0669":  "GoAnywhere MFT Pre-Authentication RCE",
}

var seedProtocols = []Protocol{
	ProtocolHTTP, ProtocolHTTP, ProtocolHTTP, ProtocolDNS, ProtocolSSL, ProtocolNetwork,
}

var seedAuthors = []string{"pdteam", "daffainfo", "dwisiswant0", "pikpikcu", "geeknik"}

// Seed populates an empty store with the demo corpus: a CVE-focused
// template catalog, a handful of scans in assorted lifecycle states,
// two findings, and the built-in target lists. Call before LoadState so
// persisted operator judgments overlay the seeded records.
func (s *Store) Seed() {
	s.AddTemplates(seedTemplates())
	s.AddTargetLists(seedTargetLists())
	for _, scan := range seedScans() {
		s.AddScan(scan)
	}
	s.AddFindings(seedFindings())
	s.logger.Info("Store seeded",
		"templates", len(s.Templates()),
		"scans", len(s.Scans()),
		"findings", len(s.Findings()))
}

func seedTemplates() []*Template {
	templates := make([]*Template, 0, len(seedCVEs)+2)

	for i, cve := range seedCVEs {
		var sev Severity
		switch {
		case i < 3:
			sev = SeverityCritical
		case i < 6:
			sev = SeverityHigh
		case i < 9:
			sev = SeverityMedium
		default:
			sev = SeverityLow
		}
		tags := []string{"cve"}
		if sev == SeverityCritical || sev == SeverityHigh {
			tags = append(tags, "rce")
		}
		source := SourceOfficial
		if i >= 8 {
			source = SourceCustom
		}
		var cvss float64
		switch sev {
		case SeverityCritical:
			cvss = 9.8
		case SeverityHigh:
			cvss = 8.1
		case SeverityMedium:
			cvss = 6.5
		default:
			cvss = 3.2
		}

		name := seedCVETitles[cve]
		if name == "" {
			name = cve + " Exploit"
		}
		score := cvss
		templates = append(templates, &Template{
			ID:          fmt.Sprintf("tmpl-%04d", i+1),
			TemplateID:  strings.ToLower(cve),
			Name:        name,
			Severity:    sev,
			Tags:        tags,
			Protocol:    seedProtocols[i%len(seedProtocols)],
			Author:      seedAuthors[i%len(seedAuthors)],
			Source:      source,
			Status:      TemplateValid,
			Description: fmt.Sprintf("Detection template for %s.", name),
			FilePath:    fmt.Sprintf("cves/%s.yaml", cve),
			FileHash:    "sha256:abc123",
			CreatedAt:   time.Date(2024, time.February, i+1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2024, time.June, i+1, 0, 0, 0, 0, time.UTC),
			CVSS:        &score,
			CWE:         "CWE-78",
			References:  []string{"https://nvd.nist.gov/vuln/detail/" + cve},
		})
	}

	misc := []struct {
		name       string
		templateID string
		tags       []string
	}{
		{"Nginx Version Detection", "nginx-version", []string{"tech-detect", "nginx"}},
		{"WordPress Login Panel", "wordpress-login", []string{"panel", "wordpress"}},
	}
	for i, m := range misc {
		templates = append(templates, &Template{
			ID:          fmt.Sprintf("tmpl-%04d", len(seedCVEs)+i+1),
			TemplateID:  m.templateID,
			Name:        m.name,
			Severity:    SeverityInfo,
			Tags:        m.tags,
			Protocol:    ProtocolHTTP,
			Author:      "pdteam",
			Source:      SourceOfficial,
			Status:      TemplateValid,
			Description: fmt.Sprintf("Detection template for %s.", m.name),
			FilePath:    fmt.Sprintf("misc/%s.yaml", m.templateID),
			FileHash:    "sha256:def456",
			CreatedAt:   time.Date(2024, time.March, i+1, 0, 0, 0, 0, time.UTC),
			UpdatedAt:   time.Date(2024, time.July, i+1, 0, 0, 0, 0, time.UTC),
		})
	}
	return templates
}

func seedTargetLists() []*TargetList {
	return []*TargetList{
		{
			ID:          "tl-001",
			Name:        "Example Corp",
			Targets:     []string{"example.com", "shop.example.com", "api.example.com"},
			CreatedAt:   time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC),
			UsedInScans: 5,
		},
		{
			ID:          "tl-002",
			Name:        "Target.io",
			Targets:     []string{"target.io", "app.target.io"},
			CreatedAt:   time.Date(2024, time.June, 10, 14, 30, 0, 0, time.UTC),
			UsedInScans: 3,
		},
	}
}

func seedScans() []*Scan {
	started1 := time.Date(2024, time.July, 15, 8, 1, 12, 0, time.UTC)
	started3 := time.Date(2024, time.July, 14, 10, 1, 0, 0, time.UTC)
	completed3 := time.Date(2024, time.July, 14, 10, 13, 15, 0, time.UTC)

	// AddScan prepends, so list in reverse of desired display order.
	return []*Scan{
		{
			ID:                 "scan-003",
			Name:               "API Security Check",
			Description:        "API endpoints scan",
			Status:             ScanCompleted,
			Progress:           100,
			TemplatesProcessed: 142,
			TemplatesTotal:     142,
			TargetsScanned:     2,
			TargetsTotal:       2,
			FindingsCount: map[Severity]int{
				SeverityCritical: 1, SeverityHigh: 5, SeverityMedium: 12,
				SeverityLow: 8, SeverityInfo: 34,
			},
			TotalFindings:          60,
			EstimatedTimeRemaining: "0s",
			ElapsedTime:            "12m 15s",
			CreatedAt:              time.Date(2024, time.July, 14, 10, 0, 0, 0, time.UTC),
			StartedAt:              &started3,
			CompletedAt:            &completed3,
			Config: ScanConfig{
				Name: "API Security Check", TargetListID: "tl-002",
				Concurrency: 30, RateLimit: 200, Timeout: 10, Retries: 1,
				MinSeverity: SeverityInfo, IncludeRequestResponse: true,
			},
		},
		{
			ID:                     "scan-002",
			Name:                   "CVE Hunter",
			Description:            "Critical CVEs only",
			Status:                 ScanQueued,
			TemplatesTotal:         15,
			TargetsTotal:           5,
			FindingsCount:          EmptyFindingsCount(),
			EstimatedTimeRemaining: "~25m",
			ElapsedTime:            "0s",
			CreatedAt:              time.Date(2024, time.July, 15, 8, 30, 0, 0, time.UTC),
			Config: ScanConfig{
				Name: "CVE Hunter", TargetListID: "tl-001",
				Concurrency: 50, RateLimit: 300, Timeout: 10, Retries: 1,
				MinSeverity: SeverityCritical,
			},
		},
		{
			ID:                 "scan-001",
			Name:               "WordPress Audit 2024",
			Description:        "Full scan",
			Status:             ScanRunning,
			Progress:           67.4,
			TemplatesProcessed: 184,
			TemplatesTotal:     273,
			TargetsScanned:     2,
			TargetsTotal:       3,
			CurrentTemplate:    "CVE-2024-3400",
			RequestsPerSec:     143,
			FindingsCount: map[Severity]int{
				SeverityCritical: 3, SeverityHigh: 18, SeverityMedium: 52,
				SeverityLow: 94, SeverityInfo: 247,
			},
			TotalFindings:          414,
			EstimatedTimeRemaining: "8m 22s",
			ElapsedTime:            "17m 38s",
			CPUPercent:             72,
			MemoryMB:               2340,
			CreatedAt:              time.Date(2024, time.July, 15, 8, 0, 0, 0, time.UTC),
			StartedAt:              &started1,
			Config: ScanConfig{
				Name: "WordPress Audit 2024", TargetListID: "tl-001",
				Concurrency: 25, RateLimit: 150, Timeout: 10, Retries: 1,
				MinSeverity: SeverityInfo, IncludeRequestResponse: true, VerboseMode: true,
			},
		},
	}
}

func seedFindings() []*Finding {
	cvss := 9.8
	return []*Finding{
		{
			ID:           "finding-001",
			ScanID:       "scan-001",
			TemplateID:   "cve-2024-3400",
			TemplateName: "PAN-OS GlobalProtect Command Injection",
			Severity:     SeverityCritical,
			Target:       "example.com",
			MatchedAt:    time.Date(2024, time.July, 15, 8, 15, 0, 0, time.UTC),
			Description:  "Critical command injection vulnerability detected in GlobalProtect interface",
			CVSS:         &cvss,
			CWE:          "CWE-78",
			Tags:         []string{"cve", "rce"},
		},
		{
			ID:           "finding-002",
			ScanID:       "scan-001",
			TemplateID:   "wordpress-login",
			TemplateName: "WordPress Login Panel Detection",
			Severity:     SeverityInfo,
			Target:       "blog.example.com",
			MatchedAt:    time.Date(2024, time.July, 15, 8, 18, 0, 0, time.UTC),
			Description:  "WordPress admin login page detected",
			Tags:         []string{"panel", "wordpress"},
		},
	}
}
