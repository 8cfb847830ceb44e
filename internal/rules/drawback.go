package rules

import (
	"fmt"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// DrawbackConfig configures the rejected-clearance drawback check.
type DrawbackConfig struct {
	PenaltyMultiplier float64 // exposure = claimed amount × multiplier
}

// DrawbackOnRejected (R2) flags drawback claims on shipments whose customs
// clearance was rejected. A refund claimed against a rejected export is
// regulatory fraud exposure, so severity is always critical.
type DrawbackOnRejected struct {
	cfg DrawbackConfig
}

// NewDrawbackOnRejected creates the R2 check.
func NewDrawbackOnRejected(cfg DrawbackConfig) *DrawbackOnRejected {
	return &DrawbackOnRejected{cfg: cfg}
}

// ID returns the check identifier.
func (c *DrawbackOnRejected) ID() string { return "R2" }

// Evaluate flags records with a positive drawback claim and rejected customs
// status.
func (c *DrawbackOnRejected) Evaluate(rec domain.ShipmentRecord) []domain.AnomalyRecord {
	if rec.DrawbackUSD <= 0 || rec.CustomsStatus != domain.CustomsRejected {
		return nil
	}

	exposure := rec.DrawbackUSD * c.cfg.PenaltyMultiplier
	return []domain.AnomalyRecord{{
		ShipmentID: rec.ID,
		Layer:      domain.LayerRule,
		CheckID:    c.ID(),
		Category:   domain.CategoryCompliance,
		Severity:   domain.SeverityCritical,
		Description: fmt.Sprintf(
			"Drawback of $%.2f claimed but customs status is rejected; penalty exposure $%.2f (×%.1f)",
			rec.DrawbackUSD, exposure, c.cfg.PenaltyMultiplier,
		),
		Evidence: map[string]any{
			"drawback_usd":       rec.DrawbackUSD,
			"customs_status":     string(rec.CustomsStatus),
			"penalty_multiplier": c.cfg.PenaltyMultiplier,
		},
		Recommendation: "Reverse the drawback claim immediately and file an amendment with the customs authority.",
		ImpactUSD:      exposure,
	}}
}
