package rules

import (
	"fmt"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// FreightConfig configures the incoterm/freight consistency check.
type FreightConfig struct {
	FlatImpactUSD float64 // configured exposure estimate for a CIF breach
}

// IncotermFreight (R4) flags CIF shipments with zero freight cost. Under CIF
// the seller pays freight to destination, so a zero freight cost means either
// a mis-declared incoterm or a missing cost — contract breach exposure either
// way. The rule is incoterm-specific: FOB shipments legitimately carry zero
// freight.
type IncotermFreight struct {
	cfg FreightConfig
}

// NewIncotermFreight creates the R4 check.
func NewIncotermFreight(cfg FreightConfig) *IncotermFreight {
	return &IncotermFreight{cfg: cfg}
}

// ID returns the check identifier.
func (c *IncotermFreight) ID() string { return "R4" }

// Evaluate flags records with incoterm CIF and freight_cost of zero.
func (c *IncotermFreight) Evaluate(rec domain.ShipmentRecord) []domain.AnomalyRecord {
	if rec.Incoterm != domain.IncotermCIF || rec.FreightCostUSD != 0 {
		return nil
	}

	return []domain.AnomalyRecord{{
		ShipmentID: rec.ID,
		Layer:      domain.LayerRule,
		CheckID:    c.ID(),
		Category:   domain.CategoryCrossField,
		Severity:   domain.SeverityHigh,
		Description: fmt.Sprintf(
			"Incoterm is CIF (seller pays freight and insurance) but freight cost is $0.00 on FOB value $%.2f",
			rec.FOBValueUSD,
		),
		Evidence: map[string]any{
			"incoterm":     string(rec.Incoterm),
			"freight_usd":  rec.FreightCostUSD,
			"fob_value":    rec.FOBValueUSD,
		},
		Recommendation: "Check whether freight was invoiced separately; update the freight cost or correct the incoterm.",
		ImpactUSD:      c.cfg.FlatImpactUSD,
	}}
}
