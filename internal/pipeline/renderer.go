package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dpdp-tools/piiscan/internal/model"
)

// Renderer writes the scan report.
type Renderer struct {
	pretty bool
}

// NewRenderer creates a renderer; pretty selects indented JSON.
func NewRenderer(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// WriteJSON writes the report to path, creating parent directories.
func (r *Renderer) WriteJSON(report *model.Report, path string) error {
	var raw []byte
	var err error
	if r.pretty {
		raw, err = json.MarshalIndent(report, "", "  ")
	} else {
		raw, err = json.Marshal(report)
	}
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	raw = append(raw, '\n')

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// WriteSummary prints a human-readable digest of the scan to w.
func (r *Renderer) WriteSummary(w io.Writer, report *model.Report) {
	fmt.Fprintf(w, "Scan complete in %s\n",
		report.ScanCompletedAt.Sub(report.ScanStartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "  Files scanned: %d (skipped %d, failed %d)\n",
		report.Stats.FilesScanned, report.Stats.FilesSkipped, report.Stats.FilesFailed)
	fmt.Fprintf(w, "  Findings: %d\n", report.Stats.TotalFindings)

	if len(report.Stats.ByEntityType) > 0 {
		entities := make([]string, 0, len(report.Stats.ByEntityType))
		for entity := range report.Stats.ByEntityType {
			entities = append(entities, entity)
		}
		sort.Strings(entities)
		for _, entity := range entities {
			fmt.Fprintf(w, "    %-18s %d\n", entity, report.Stats.ByEntityType[entity])
		}
	}

	sensitive := 0
	for _, finding := range report.Findings {
		if finding.Category == model.CategorySensitivePersonal {
			sensitive++
		}
	}
	if sensitive > 0 {
		fmt.Fprintf(w, "  Sensitive personal data findings: %d\n", sensitive)
	}
}
