package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
	"github.com/liquidmind-ai/tradesentinel/internal/platform/gemini"
)

// LayerConfig bounds the semantic layer's cost per run.
type LayerConfig struct {
	Timeout       time.Duration `toml:"timeout"`
	MismatchUSD   float64       `toml:"mismatch_impact_usd"`
	MaxUniqueRows int           `toml:"max_unique_pairs"`
}

// DefaultLayerConfig returns the standard limits.
func DefaultLayerConfig() LayerConfig {
	return LayerConfig{
		Timeout:       60 * time.Second,
		MismatchUSD:   6000,
		MaxUniqueRows: 200,
	}
}

// Layer runs HS code validation over a dataset and expands wrong-code
// verdicts into per-shipment anomalies.
type Layer struct {
	cfg        LayerConfig
	classifier domain.ClassificationService
	usage      func() gemini.Usage
	logger     *slog.Logger
}

// NewLayer creates the semantic detection layer. usage may be nil when the
// classifier does not expose call accounting.
func NewLayer(cfg LayerConfig, classifier domain.ClassificationService, usage func() gemini.Usage, logger *slog.Logger) *Layer {
	return &Layer{
		cfg:        cfg,
		classifier: classifier,
		usage:      usage,
		logger:     logger.With(slog.String("component", "semantic_layer")),
	}
}

// Run validates every unique (HS code, product) pair in the dataset and
// returns a critical compliance anomaly for each shipment whose pair the
// model judged incorrect. Classification failure is returned as an error so
// the caller can degrade; it never fabricates verdicts.
func (l *Layer) Run(ctx context.Context, dataset []domain.ShipmentRecord, detectedAt time.Time) ([]domain.AnomalyRecord, error) {
	if l.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.cfg.Timeout)
		defer cancel()
	}

	checks, bearers := uniquePairs(dataset)
	if len(checks) == 0 {
		return nil, nil
	}
	if l.cfg.MaxUniqueRows > 0 && len(checks) > l.cfg.MaxUniqueRows {
		l.logger.WarnContext(ctx, "unique pair count exceeds limit, truncating",
			slog.Int("pairs", len(checks)),
			slog.Int("limit", l.cfg.MaxUniqueRows),
		)
		checks = checks[:l.cfg.MaxUniqueRows]
	}

	l.logger.InfoContext(ctx, "validating hs codes", slog.Int("unique_pairs", len(checks)))
	verdicts, err := l.classifier.ClassifyCodes(ctx, checks)
	if err != nil {
		return nil, fmt.Errorf("semantic: run layer: %w", err)
	}

	var anomalies []domain.AnomalyRecord
	for _, v := range verdicts {
		if v.IsCorrect {
			continue
		}
		for _, shipmentID := range bearers[domain.CodeCheck{HSCode: v.HSCode, Description: v.Description}] {
			anomalies = append(anomalies, domain.AnomalyRecord{
				ShipmentID:  shipmentID,
				Layer:       domain.LayerSemantic,
				CheckID:     "SEM-1",
				Category:    domain.CategoryCompliance,
				Severity:    domain.SeverityCritical,
				Description: fmt.Sprintf("HS code %s does not match product '%s': %s", v.HSCode, v.Description, v.Reason),
				Evidence: map[string]any{
					"hs_code_used":       v.HSCode,
					"product":            v.Description,
					"verdict":            "incorrect",
					"suggested_category": v.SuggestedCategory,
					"reason":             v.Reason,
				},
				Recommendation: fmt.Sprintf("Re-classify under %s before filing; misclassification carries customs penalties.", orUnknown(v.SuggestedCategory)),
				ImpactUSD:      l.cfg.MismatchUSD,
				DetectedAt:     detectedAt,
			})
		}
	}

	attrs := []any{slog.Int("anomalies", len(anomalies))}
	if l.usage != nil {
		attrs = append(attrs, usageAttrs(l.usage())...)
	}
	l.logger.InfoContext(ctx, "semantic checks complete", attrs...)
	return anomalies, nil
}

// uniquePairs deduplicates (HS code, description) pairs, preserving dataset
// order, and records which shipments carry each pair.
func uniquePairs(dataset []domain.ShipmentRecord) ([]domain.CodeCheck, map[domain.CodeCheck][]string) {
	bearers := make(map[domain.CodeCheck][]string)
	var checks []domain.CodeCheck
	for _, rec := range dataset {
		if rec.HSCode == "" || rec.Product == "" {
			continue
		}
		pair := domain.CodeCheck{HSCode: rec.HSCode, Description: rec.Product}
		if _, seen := bearers[pair]; !seen {
			checks = append(checks, pair)
		}
		bearers[pair] = append(bearers[pair], rec.ID)
	}
	return checks, bearers
}

func orUnknown(s string) string {
	if s == "" {
		return "the correct chapter"
	}
	return s
}
