package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// AnomalyStore implements domain.AnomalyStore using PostgreSQL.
type AnomalyStore struct {
	pool *pgxpool.Pool
}

// NewAnomalyStore creates a new AnomalyStore backed by the given pool.
func NewAnomalyStore(pool *pgxpool.Pool) *AnomalyStore {
	return &AnomalyStore{pool: pool}
}

const anomalySelectCols = `shipment_id, layer, check_id, category, severity,
	description, evidence, recommendation, impact_usd, detected_at`

func scanAnomalyRows(rows pgx.Rows) ([]domain.AnomalyRecord, error) {
	var anomalies []domain.AnomalyRecord
	for rows.Next() {
		var (
			a            domain.AnomalyRecord
			evidenceJSON []byte
		)
		if err := rows.Scan(
			&a.ShipmentID, &a.Layer, &a.CheckID, &a.Category,
			&a.Severity, &a.Description, &evidenceJSON,
			&a.Recommendation, &a.ImpactUSD, &a.DetectedAt,
		); err != nil {
			return nil, err
		}
		if evidenceJSON != nil {
			if err := json.Unmarshal(evidenceJSON, &a.Evidence); err != nil {
				return nil, fmt.Errorf("unmarshal evidence for %s/%s: %w", a.ShipmentID, a.CheckID, err)
			}
		}
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}

// InsertBatch inserts a run's anomalies using pgx Batch. A re-run of the same
// run ID skips rows that already exist via ON CONFLICT DO NOTHING.
func (s *AnomalyStore) InsertBatch(ctx context.Context, runID string, anomalies []domain.AnomalyRecord) error {
	if len(anomalies) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO anomalies (
			run_id, shipment_id, layer, check_id, category, severity,
			description, evidence, recommendation, impact_usd, detected_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11
		) ON CONFLICT (run_id, shipment_id, check_id) DO NOTHING`

	for _, a := range anomalies {
		evidenceJSON, err := json.Marshal(a.Evidence)
		if err != nil {
			return fmt.Errorf("postgres: marshal evidence for %s/%s: %w", a.ShipmentID, a.CheckID, err)
		}
		batch.Queue(query,
			runID, a.ShipmentID, string(a.Layer), a.CheckID,
			string(a.Category), string(a.Severity), a.Description,
			evidenceJSON, a.Recommendation, a.ImpactUSD, a.DetectedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range anomalies {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert anomaly batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByRun returns a run's anomalies ranked severity-first, matching the
// aggregator's ordering.
func (s *AnomalyStore) ListByRun(ctx context.Context, runID string, opts domain.ListOpts) ([]domain.AnomalyRecord, error) {
	query := `SELECT ` + anomalySelectCols + ` FROM anomalies WHERE run_id = $1`
	args := []any{runID}
	query, args = appendAnomalyFilters(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list anomalies for run %s: %w", runID, err)
	}
	defer rows.Close()

	anomalies, err := scanAnomalyRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan anomalies: %w", err)
	}
	return anomalies, nil
}

// List returns anomalies across all runs with pagination and filtering.
func (s *AnomalyStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AnomalyRecord, error) {
	query := `SELECT ` + anomalySelectCols + ` FROM anomalies WHERE 1=1`
	args := []any{}
	query, args = appendAnomalyFilters(query, args, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list anomalies: %w", err)
	}
	defer rows.Close()

	anomalies, err := scanAnomalyRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan anomalies: %w", err)
	}
	return anomalies, nil
}

// appendAnomalyFilters applies ListOpts filters, the severity-first ordering,
// and pagination to an anomaly query.
func appendAnomalyFilters(query string, args []any, opts domain.ListOpts) (string, []any) {
	argIdx := len(args) + 1

	if opts.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argIdx)
		args = append(args, string(opts.Severity))
		argIdx++
	}
	if opts.Category != "" {
		query += fmt.Sprintf(" AND category = $%d", argIdx)
		args = append(args, string(opts.Category))
		argIdx++
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND detected_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND detected_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += ` ORDER BY
		CASE severity
			WHEN 'critical' THEN 4
			WHEN 'high' THEN 3
			WHEN 'medium' THEN 2
			WHEN 'low' THEN 1
			ELSE 0
		END DESC,
		impact_usd DESC, shipment_id ASC, check_id ASC`

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}
	return query, args
}

// Compile-time interface check.
var _ domain.AnomalyStore = (*AnomalyStore)(nil)
