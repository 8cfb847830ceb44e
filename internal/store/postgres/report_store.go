package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// ReportStore implements domain.ReportStore using PostgreSQL. Summary and
// anomaly payloads are stored as JSONB so the API can serve a full report
// without re-joining the anomalies table.
type ReportStore struct {
	pool *pgxpool.Pool
}

// NewReportStore creates a new ReportStore backed by the given pool.
func NewReportStore(pool *pgxpool.Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// Insert stores a finished run report. Inserting an existing run ID returns
// domain.ErrAlreadyExists; reports are immutable once written.
func (s *ReportStore) Insert(ctx context.Context, report domain.RunReport) error {
	summaryJSON, err := json.Marshal(report.Summary)
	if err != nil {
		return fmt.Errorf("postgres: marshal report summary: %w", err)
	}
	anomaliesJSON, err := json.Marshal(report.Anomalies)
	if err != nil {
		return fmt.Errorf("postgres: marshal report anomalies: %w", err)
	}

	const query = `
		INSERT INTO run_reports (run_id, generated_at, summary, anomalies, executive_summary)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (run_id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		report.RunID, report.GeneratedAt, summaryJSON, anomaliesJSON, report.ExecutiveSummary,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert report %s: %w", report.RunID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: insert report %s: %w", report.RunID, domain.ErrAlreadyExists)
	}
	return nil
}

// GetByRunID returns the report for one run. It returns domain.ErrNotFound
// when the run is unknown.
func (s *ReportStore) GetByRunID(ctx context.Context, runID string) (domain.RunReport, error) {
	const query = `
		SELECT run_id, generated_at, summary, anomalies, executive_summary
		FROM run_reports WHERE run_id = $1`

	report, err := scanReport(s.pool.QueryRow(ctx, query, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RunReport{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.RunReport{}, fmt.Errorf("postgres: get report %s: %w", runID, err)
	}
	return report, nil
}

// ListRecent returns the latest reports, newest first.
func (s *ReportStore) ListRecent(ctx context.Context, limit int) ([]domain.RunReport, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT run_id, generated_at, summary, anomalies, executive_summary
		FROM run_reports ORDER BY generated_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list reports: %w", err)
	}
	defer rows.Close()

	var reports []domain.RunReport
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan report: %w", err)
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list reports rows: %w", err)
	}
	return reports, nil
}

func scanReport(row pgx.Row) (domain.RunReport, error) {
	var (
		report        domain.RunReport
		summaryJSON   []byte
		anomaliesJSON []byte
	)
	if err := row.Scan(&report.RunID, &report.GeneratedAt, &summaryJSON, &anomaliesJSON, &report.ExecutiveSummary); err != nil {
		return report, err
	}
	if err := json.Unmarshal(summaryJSON, &report.Summary); err != nil {
		return report, fmt.Errorf("unmarshal summary: %w", err)
	}
	if err := json.Unmarshal(anomaliesJSON, &report.Anomalies); err != nil {
		return report, fmt.Errorf("unmarshal anomalies: %w", err)
	}
	return report, nil
}

// Compile-time interface check.
var _ domain.ReportStore = (*ReportStore)(nil)
