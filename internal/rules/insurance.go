package rules

import (
	"fmt"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// InsuranceConfig configures the insurance-rate bounds check. Rates are
// expressed as percent of FOB value: MinRatePct 0.1 means 0.1%.
type InsuranceConfig struct {
	MinRatePct    float64 // lower edge of the normal band
	MaxRatePct    float64 // upper edge of the normal band
	ExtremeFactor float64 // deviation beyond band × factor escalates severity
}

// InsuranceRate (R5) flags shipments whose insurance premium falls outside
// the industry-normal band relative to FOB value, in either direction.
// Shipments with no insurance at all are out of this check's scope; absent
// cover on a CIF shipment surfaces through the declared values themselves,
// not through a rate that cannot be computed meaningfully from zero.
type InsuranceRate struct {
	cfg InsuranceConfig
}

// NewInsuranceRate creates the R5 check.
func NewInsuranceRate(cfg InsuranceConfig) *InsuranceRate {
	return &InsuranceRate{cfg: cfg}
}

// ID returns the check identifier.
func (c *InsuranceRate) ID() string { return "R5" }

// Evaluate flags records whose insurance/FOB rate is under or over the
// configured band. Severity escalates to high when the rate is more than
// ExtremeFactor times outside the band.
func (c *InsuranceRate) Evaluate(rec domain.ShipmentRecord) []domain.AnomalyRecord {
	if rec.FOBValueUSD <= 0 || rec.InsuranceUSD <= 0 {
		return nil
	}
	ratePct := rec.InsuranceUSD / rec.FOBValueUSD * 100
	if ratePct >= c.cfg.MinRatePct && ratePct <= c.cfg.MaxRatePct {
		return nil
	}

	var direction string
	var severity domain.Severity
	var impact float64
	if ratePct > c.cfg.MaxRatePct {
		direction = "over-insured"
		severity = domain.SeverityMedium
		if ratePct > c.cfg.MaxRatePct*c.cfg.ExtremeFactor {
			severity = domain.SeverityHigh
		}
		impact = rec.InsuranceUSD - rec.FOBValueUSD*c.cfg.MaxRatePct/100
	} else {
		direction = "under-insured"
		severity = domain.SeverityMedium
		if ratePct < c.cfg.MinRatePct/c.cfg.ExtremeFactor {
			severity = domain.SeverityHigh
		}
		impact = rec.FOBValueUSD*c.cfg.MinRatePct/100 - rec.InsuranceUSD
	}

	return []domain.AnomalyRecord{{
		ShipmentID: rec.ID,
		Layer:      domain.LayerRule,
		CheckID:    c.ID(),
		Category:   domain.CategoryCrossField,
		Severity:   severity,
		Description: fmt.Sprintf(
			"Insurance rate %.3f%% of FOB is outside the normal %.2f%%–%.2f%% band (%s): $%.2f on $%.2f",
			ratePct, c.cfg.MinRatePct, c.cfg.MaxRatePct, direction, rec.InsuranceUSD, rec.FOBValueUSD,
		),
		Evidence: map[string]any{
			"insurance_usd": rec.InsuranceUSD,
			"fob_value":     rec.FOBValueUSD,
			"rate_pct":      ratePct,
			"band_min_pct":  c.cfg.MinRatePct,
			"band_max_pct":  c.cfg.MaxRatePct,
			"direction":     direction,
		},
		Recommendation: "Verify the insurance policy; standard marine cargo cover runs 0.1–0.4% of CIF value.",
		ImpactUSD:      impact,
	}}
}
