package rules

import (
	"fmt"
	"math"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// FOBConfig configures the FOB arithmetic check.
type FOBConfig struct {
	TolerancePct   float64 // relative gap that triggers the check, e.g. 0.05
	CriticalGapUSD float64 // absolute gap at which severity becomes critical
}

// FOBMath (R1) verifies that the declared FOB value equals quantity × unit
// price within tolerance. The estimated impact is the absolute dollar gap
// between declared and computed value.
type FOBMath struct {
	cfg FOBConfig
}

// NewFOBMath creates the R1 check.
func NewFOBMath(cfg FOBConfig) *FOBMath {
	return &FOBMath{cfg: cfg}
}

// ID returns the check identifier.
func (c *FOBMath) ID() string { return "R1" }

// Evaluate flags records whose declared FOB deviates from quantity × unit
// price by more than the configured relative tolerance.
func (c *FOBMath) Evaluate(rec domain.ShipmentRecord) []domain.AnomalyRecord {
	if rec.Quantity <= 0 || rec.UnitPriceUSD <= 0 {
		return nil
	}
	expected := rec.ExpectedFOB()
	gap := math.Abs(rec.FOBValueUSD - expected)
	relGap := gap / expected
	if relGap <= c.cfg.TolerancePct {
		return nil
	}

	severity := domain.SeverityMedium
	switch {
	case gap >= c.cfg.CriticalGapUSD:
		severity = domain.SeverityCritical
	case relGap >= 2*c.cfg.TolerancePct:
		severity = domain.SeverityHigh
	}

	return []domain.AnomalyRecord{{
		ShipmentID: rec.ID,
		Layer:      domain.LayerRule,
		CheckID:    c.ID(),
		Category:   domain.CategoryPricing,
		Severity:   severity,
		Description: fmt.Sprintf(
			"FOB mismatch: declared $%.2f but %d × $%.2f = $%.2f, gap $%.2f (%.1f%%)",
			rec.FOBValueUSD, rec.Quantity, rec.UnitPriceUSD, expected, gap, relGap*100,
		),
		Evidence: map[string]any{
			"declared_fob":  rec.FOBValueUSD,
			"quantity":      rec.Quantity,
			"unit_price":    rec.UnitPriceUSD,
			"expected_fob":  expected,
			"gap_usd":       gap,
			"gap_pct":       relGap * 100,
			"tolerance_pct": c.cfg.TolerancePct * 100,
		},
		Recommendation: "Verify invoice with buyer and correct the FOB value before any drawback claim is submitted.",
		ImpactUSD:      gap,
	}}
}
