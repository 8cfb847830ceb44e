// Package report renders finished run reports: a machine-readable JSON file
// and a Markdown executive brief, written under a per-run output directory.
package report

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// Writer persists run reports to the local output directory.
type Writer struct {
	outputDir string
	logger    *slog.Logger
}

func NewWriter(outputDir string, logger *slog.Logger) *Writer {
	return &Writer{
		outputDir: outputDir,
		logger:    logger.With(slog.String("component", "report_writer")),
	}
}

// WriteJSON writes the full report as indented JSON and returns the file
// path. Files are named by run ID so successive runs never clobber each
// other.
func (w *Writer) WriteJSON(report domain.RunReport) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("report: create output dir: %w", err)
	}
	path := filepath.Join(w.outputDir, fmt.Sprintf("anomaly_report_%s.json", report.RunID))

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("report: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	w.logger.Info("anomaly report written",
		slog.String("path", path),
		slog.Int("anomalies", len(report.Anomalies)),
	)
	return path, nil
}

// WriteMarkdown writes the executive brief: header, summary table, top
// findings, and the LLM narrative when one was generated.
func (w *Writer) WriteMarkdown(report domain.RunReport) (string, error) {
	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("report: create output dir: %w", err)
	}
	path := filepath.Join(w.outputDir, fmt.Sprintf("executive_summary_%s.md", report.RunID))

	var b strings.Builder
	b.WriteString("# Executive Summary: Trade Shipment Anomaly Analysis\n\n")
	fmt.Fprintf(&b, "*Run %s, generated %s*\n\n---\n\n", report.RunID, report.GeneratedAt.Format("January 2, 2006 15:04 MST"))

	s := report.Summary
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Shipments audited | %d |\n", s.TotalShipments)
	fmt.Fprintf(&b, "| Anomalies found | %d |\n", s.TotalAnomalies)
	fmt.Fprintf(&b, "| Estimated exposure | $%.2f |\n", s.TotalImpactUSD)
	for _, sev := range []domain.Severity{domain.SeverityCritical, domain.SeverityHigh, domain.SeverityMedium, domain.SeverityLow} {
		if n := s.BySeverity[sev]; n > 0 {
			fmt.Fprintf(&b, "| %s | %d |\n", titleCase(string(sev)), n)
		}
	}
	b.WriteString("\n")

	if top := report.TopByImpact(5); len(top) > 0 {
		b.WriteString("## Top Findings by Impact\n\n")
		for i, a := range top {
			fmt.Fprintf(&b, "%d. **[%s]** `%s` (%s/%s): %s _($%.0f)_\n",
				i+1, strings.ToUpper(string(a.Severity)), a.ShipmentID, a.Layer, a.CheckID, a.Description, a.ImpactUSD)
		}
		b.WriteString("\n")
	}

	if report.ExecutiveSummary != "" {
		b.WriteString("## Analyst Narrative\n\n")
		b.WriteString(report.ExecutiveSummary)
		b.WriteString("\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	w.logger.Info("executive summary written", slog.String("path", path))
	return path, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
