package stats

import (
	"fmt"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// Config carries the statistical thresholds and the flat dollar impacts for
// checks whose metric has no direct monetary interpretation.
type Config struct {
	ZThreshold   float64 `toml:"z_threshold"`
	HighZ        float64 `toml:"high_z"`
	CriticalZ    float64 `toml:"critical_z"`
	MinGroupSize int     `toml:"min_group_size"`

	TransitImpactUSD       float64 `toml:"transit_impact_usd"`
	PaymentImpactUSD       float64 `toml:"payment_impact_usd"`
	BuyerVolumeImpactUSD   float64 `toml:"buyer_volume_impact_usd"`
	CountryVolumeImpactUSD float64 `toml:"country_volume_impact_usd"`
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ZThreshold:             2.5,
		HighZ:                  3.0,
		CriticalZ:              4.0,
		MinGroupSize:           3,
		TransitImpactUSD:       5000,
		PaymentImpactUSD:       2500,
		BuyerVolumeImpactUSD:   10000,
		CountryVolumeImpactUSD: 10000,
	}
}

// checkSpec describes one Z-score check: how records group, which metric is
// scored, and how a flagged deviation turns into an anomaly.
type checkSpec struct {
	id         string
	category   domain.AnomalyCategory
	groupLabel string
	metricName string

	// key returns the comparison-group key for a record, or ok=false when
	// the record does not participate in this check.
	key func(rec domain.ShipmentRecord) (string, bool)
	// metric extracts the scored value, or ok=false when it is absent.
	metric func(rec domain.ShipmentRecord) (float64, bool)
	// positiveOnly restricts flagging to values above the group mean.
	positiveOnly bool

	describe       func(rec domain.ShipmentRecord, value float64, gs groupStats, z float64) string
	recommendation string
	impact         func(rec domain.ShipmentRecord, value, deviation, absZ float64, cfg Config) float64
}

func scaledImpact(flat, absZ, threshold float64) float64 {
	if threshold <= 0 {
		return flat
	}
	return flat * (absZ / threshold)
}

// checkSpecs returns the six standard checks in ID order.
func checkSpecs() []checkSpec {
	return []checkSpec{
		{
			id:         "STAT-1",
			category:   domain.CategoryPricing,
			groupLabel: "product",
			metricName: "unit_price_usd",
			key: func(rec domain.ShipmentRecord) (string, bool) {
				return rec.Product, rec.Product != ""
			},
			metric: func(rec domain.ShipmentRecord) (float64, bool) {
				return rec.UnitPriceUSD, true
			},
			describe: func(rec domain.ShipmentRecord, value float64, gs groupStats, z float64) string {
				return fmt.Sprintf("unit price $%.2f for %s deviates %.1f sigma from the product mean $%.2f (n=%d)",
					value, rec.Product, z, gs.mean, gs.n)
			},
			recommendation: "Verify the declared unit price against the commercial invoice and recent market prices for this product.",
			impact: func(rec domain.ShipmentRecord, value, deviation, absZ float64, cfg Config) float64 {
				return abs(deviation) * float64(rec.Quantity)
			},
		},
		{
			id:         "STAT-2",
			category:   domain.CategoryRoute,
			groupLabel: "route",
			metricName: "transit_days",
			key: func(rec domain.ShipmentRecord) (string, bool) {
				r := rec.Route()
				return r, rec.OriginPort != "" && rec.DestinationPort != ""
			},
			metric: func(rec domain.ShipmentRecord) (float64, bool) {
				if rec.TransitDays == nil {
					return 0, false
				}
				return float64(*rec.TransitDays), true
			},
			describe: func(rec domain.ShipmentRecord, value float64, gs groupStats, z float64) string {
				return fmt.Sprintf("transit time %.0f days on %s deviates %.1f sigma from the route mean %.1f days (n=%d)",
					value, rec.Route(), z, gs.mean, gs.n)
			},
			recommendation: "Check the bill of lading and vessel tracking for undeclared transshipment or routing through intermediate countries.",
			impact: func(rec domain.ShipmentRecord, value, deviation, absZ float64, cfg Config) float64 {
				return scaledImpact(cfg.TransitImpactUSD, absZ, cfg.ZThreshold)
			},
		},
		{
			id:         "STAT-3",
			category:   domain.CategoryPricing,
			groupLabel: "route+container",
			metricName: "freight_cost_usd",
			key: func(rec domain.ShipmentRecord) (string, bool) {
				if rec.OriginPort == "" || rec.DestinationPort == "" || rec.ContainerType == "" {
					return "", false
				}
				return rec.RouteContainer(), true
			},
			metric: func(rec domain.ShipmentRecord) (float64, bool) {
				return rec.FreightCostUSD, rec.FreightCostUSD > 0
			},
			describe: func(rec domain.ShipmentRecord, value float64, gs groupStats, z float64) string {
				return fmt.Sprintf("freight cost $%.2f for %s %s deviates %.1f sigma from the lane mean $%.2f (n=%d)",
					value, rec.ContainerType, rec.Route(), z, gs.mean, gs.n)
			},
			recommendation: "Compare against the carrier rate sheet for this lane and container type; investigate possible freight over- or under-invoicing.",
			impact: func(rec domain.ShipmentRecord, value, deviation, absZ float64, cfg Config) float64 {
				return abs(deviation)
			},
		},
		{
			id:         "STAT-4",
			category:   domain.CategoryPayment,
			groupLabel: "buyer",
			metricName: "days_to_payment",
			key: func(rec domain.ShipmentRecord) (string, bool) {
				return rec.Buyer, rec.Buyer != ""
			},
			metric: func(rec domain.ShipmentRecord) (float64, bool) {
				if rec.DaysToPayment == nil {
					return 0, false
				}
				return float64(*rec.DaysToPayment), true
			},
			describe: func(rec domain.ShipmentRecord, value float64, gs groupStats, z float64) string {
				return fmt.Sprintf("payment settled in %.0f days, %.1f sigma from buyer %s's mean %.1f days (n=%d)",
					value, z, rec.Buyer, gs.mean, gs.n)
			},
			recommendation: "Review the payment terms on the contract and the buyer's settlement history for signs of payment rerouting or distress.",
			impact: func(rec domain.ShipmentRecord, value, deviation, absZ float64, cfg Config) float64 {
				return scaledImpact(cfg.PaymentImpactUSD, absZ, cfg.ZThreshold)
			},
		},
		{
			id:           "STAT-5",
			category:     domain.CategoryVolume,
			groupLabel:   "buyer+month",
			metricName:   "quantity",
			positiveOnly: true,
			key: func(rec domain.ShipmentRecord) (string, bool) {
				if rec.Buyer == "" {
					return "", false
				}
				return rec.Buyer + "|" + rec.Month(), true
			},
			metric: func(rec domain.ShipmentRecord) (float64, bool) {
				return float64(rec.Quantity), rec.Quantity > 0
			},
			describe: func(rec domain.ShipmentRecord, value float64, gs groupStats, z float64) string {
				return fmt.Sprintf("order quantity %.0f is %.1f sigma above buyer %s's %s mean %.1f (n=%d)",
					value, z, rec.Buyer, rec.Month(), gs.mean, gs.n)
			},
			recommendation: "Confirm the order with the buyer; a sudden volume spike can indicate stockpiling ahead of a tariff change or diversion.",
			impact: func(rec domain.ShipmentRecord, value, deviation, absZ float64, cfg Config) float64 {
				return scaledImpact(cfg.BuyerVolumeImpactUSD, absZ, cfg.ZThreshold)
			},
		},
		{
			id:           "STAT-6",
			category:     domain.CategoryVolume,
			groupLabel:   "country+month",
			metricName:   "quantity",
			positiveOnly: true,
			key: func(rec domain.ShipmentRecord) (string, bool) {
				if rec.DestinationCountry == "" {
					return "", false
				}
				return rec.DestinationCountry + "|" + rec.Month(), true
			},
			metric: func(rec domain.ShipmentRecord) (float64, bool) {
				return float64(rec.Quantity), rec.Quantity > 0
			},
			describe: func(rec domain.ShipmentRecord, value float64, gs groupStats, z float64) string {
				return fmt.Sprintf("shipment quantity %.0f is %.1f sigma above the %s %s mean %.1f (n=%d)",
					value, z, rec.DestinationCountry, rec.Month(), gs.mean, gs.n)
			},
			recommendation: "Cross-check aggregate flows into this destination for the month; concentrated surges may indicate transshipment staging.",
			impact: func(rec domain.ShipmentRecord, value, deviation, absZ float64, cfg Config) float64 {
				return scaledImpact(cfg.CountryVolumeImpactUSD, absZ, cfg.ZThreshold)
			},
		},
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
