package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// Archiver implements domain.ReportArchiver by serializing finished run
// reports to JSON and uploading them to cold storage under a year/month
// prefix. The archival event is recorded in the audit log.
type Archiver struct {
	writer domain.BlobWriter
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver. audit may be nil when no audit log is
// wired (one-shot CLI runs against a bucket only).
func NewArchiver(writer domain.BlobWriter, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, audit: audit}
}

// ArchiveReport uploads a report to reports/YYYY/MM/<run_id>.json and returns
// the object path.
func (a *Archiver) ArchiveReport(ctx context.Context, report domain.RunReport) (string, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive report marshal: %w", err)
	}

	path := fmt.Sprintf("reports/%s/%s.json",
		report.GeneratedAt.UTC().Format("2006/01"), report.RunID)
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive report upload: %w", err)
	}

	if a.audit != nil {
		_ = a.audit.Log(ctx, "report_archived", map[string]any{
			"run_id": report.RunID,
			"path":   path,
			"bytes":  len(data),
		})
	}
	return path, nil
}

// Compile-time interface check.
var _ domain.ReportArchiver = (*Archiver)(nil)
