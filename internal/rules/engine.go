package rules

import (
	"context"
	"log/slog"
	"time"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// Engine runs every registered rule check over a dataset. Checks are
// independent and order-insensitive; the engine runs them in ID order so the
// produced anomaly sequence is deterministic.
type Engine struct {
	registry *Registry
	logger   *slog.Logger
}

// NewEngine creates an Engine over the given registry.
func NewEngine(registry *Registry, logger *slog.Logger) *Engine {
	return &Engine{
		registry: registry,
		logger:   logger.With(slog.String("component", "rule_engine")),
	}
}

// DefaultRegistry builds a registry with the five standard checks wired from
// the given per-check configs.
func DefaultRegistry(fob FOBConfig, drawback DrawbackConfig, freight FreightConfig, insurance InsuranceConfig) *Registry {
	reg := NewRegistry()
	reg.Register(NewFOBMath(fob))
	reg.Register(NewDrawbackOnRejected(drawback))
	reg.Register(NewPaymentIntegrity())
	reg.Register(NewIncotermFreight(freight))
	reg.Register(NewInsuranceRate(insurance))
	return reg
}

// Run evaluates all checks against every record and returns the combined
// anomaly list, stamped with the given detection time. The dataset is read
// only; Run never mutates it.
func (e *Engine) Run(ctx context.Context, dataset []domain.ShipmentRecord, detectedAt time.Time) ([]domain.AnomalyRecord, error) {
	checks := e.registry.All()
	var anomalies []domain.AnomalyRecord

	for _, rec := range dataset {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		for _, c := range checks {
			for _, a := range c.Evaluate(rec) {
				a.DetectedAt = detectedAt
				anomalies = append(anomalies, a)
			}
		}
	}

	e.logger.InfoContext(ctx, "rule checks complete",
		slog.Int("records", len(dataset)),
		slog.Int("checks", len(checks)),
		slog.Int("anomalies", len(anomalies)),
	)
	return anomalies, nil
}
