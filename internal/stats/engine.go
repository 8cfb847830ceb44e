package stats

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// Engine runs the Z-score checks over a dataset. Each check partitions the
// records into comparison groups and scores every member against the rest of
// its group; groups smaller than MinGroupSize or with zero variance are
// skipped rather than scored.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

func NewEngine(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "stat_engine")),
	}
}

// member is one record's position within a comparison group.
type member struct {
	recIdx int
	value  float64
}

// Run evaluates all six checks and returns the anomalies stamped with the
// given detection time. Output order is deterministic: checks in ID order,
// groups in key order, members in dataset order.
func (e *Engine) Run(ctx context.Context, dataset []domain.ShipmentRecord, detectedAt time.Time) ([]domain.AnomalyRecord, error) {
	var anomalies []domain.AnomalyRecord
	skippedGroups := 0

	for _, spec := range checkSpecs() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		groups := make(map[string][]member)
		for i, rec := range dataset {
			key, ok := spec.key(rec)
			if !ok {
				continue
			}
			value, ok := spec.metric(rec)
			if !ok {
				continue
			}
			groups[key] = append(groups[key], member{recIdx: i, value: value})
		}

		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			members := groups[key]
			if len(members) < e.cfg.MinGroupSize {
				skippedGroups++
				continue
			}
			values := make([]float64, len(members))
			for i, m := range members {
				values[i] = m.value
			}
			whole := computeGroupStats(values)
			if whole.stddev == 0 {
				skippedGroups++
				continue
			}

			for i, m := range members {
				z, deviation := looScore(values, i, whole)
				if spec.positiveOnly && z <= 0 {
					continue
				}
				absZ := abs(z)
				if absZ <= e.cfg.ZThreshold {
					continue
				}
				rec := dataset[m.recIdx]
				anomalies = append(anomalies, domain.AnomalyRecord{
					ShipmentID:  rec.ID,
					Layer:       domain.LayerStatistical,
					CheckID:     spec.id,
					Category:    spec.category,
					Severity:    e.severity(absZ),
					Description: spec.describe(rec, m.value, whole, z),
					Evidence: map[string]any{
						"metric":       spec.metricName,
						"value":        m.value,
						"z_score":      z,
						"group_by":     spec.groupLabel,
						"group_key":    key,
						"group_mean":   whole.mean,
						"group_stddev": whole.stddev,
						"group_size":   whole.n,
					},
					Recommendation: spec.recommendation,
					ImpactUSD:      spec.impact(rec, m.value, deviation, absZ, e.cfg),
					DetectedAt:     detectedAt,
				})
			}
		}
	}

	e.logger.InfoContext(ctx, "statistical checks complete",
		slog.Int("records", len(dataset)),
		slog.Int("anomalies", len(anomalies)),
		slog.Int("skipped_groups", skippedGroups),
		slog.Float64("z_threshold", e.cfg.ZThreshold),
	)
	return anomalies, nil
}

func (e *Engine) severity(absZ float64) domain.Severity {
	switch {
	case absZ >= e.cfg.CriticalZ:
		return domain.SeverityCritical
	case absZ >= e.cfg.HighZ:
		return domain.SeverityHigh
	default:
		return domain.SeverityMedium
	}
}
