package model

import "time"

// Report is the complete scan report written to the output JSON.
// The shape is stable; downstream consumers key on these fields.
type Report struct {
	Scanner struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"scanner"`

	ScanStartedAt   time.Time `json:"scan_started_at"`
	ScanCompletedAt time.Time `json:"scan_completed_at"`

	Config ReportConfig `json:"config"`
	Stats  Stats        `json:"stats"`

	Findings []Finding    `json:"findings"`
	Files    []FileReport `json:"files"`
}

// ReportConfig echoes the effective configuration the scan ran with.
// Secrets (API keys) are never included.
type ReportConfig struct {
	Scan     ScanConfig     `json:"scan"`
	Detector DetectorConfig `json:"detector"`
	Rules    RulesMetadata  `json:"rules"`
}

// RulesMetadata records which rule files shaped the effective policy.
type RulesMetadata struct {
	Enabled     bool     `json:"enabled"`
	Region      string   `json:"region"`
	Environment string   `json:"environment"`
	FilesLoaded []string `json:"files_loaded"`
}

// Stats aggregates corpus-level counters. FilesScanned counts every
// attempted item, so failed items appear in both FilesScanned and
// FilesFailed; skipped items appear only in FilesSkipped.
type Stats struct {
	FilesScanned  int            `json:"files_scanned"`
	FilesSkipped  int            `json:"files_skipped"`
	FilesFailed   int            `json:"files_failed"`
	TotalFindings int            `json:"total_findings"`
	ByEntityType  map[string]int `json:"by_entity_type,omitempty"`
}

// FileStatus is the per-item outcome recorded in the report.
type FileStatus string

const (
	StatusScanned FileStatus = "scanned"
	StatusSkipped FileStatus = "skipped"
	StatusFailed  FileStatus = "failed"
)

// FileReport is the per-item status entry; partial corpus failures stay
// auditable through these.
type FileReport struct {
	FilePath      string     `json:"file_path"`
	Status        FileStatus `json:"status"`
	FindingsCount int        `json:"findings_count"`
	Reason        string     `json:"reason,omitempty"`
	Error         string     `json:"error,omitempty"`
}
