package domain

import "time"

// DetectionLayer identifies which engine produced an anomaly.
type DetectionLayer string

const (
	LayerRule        DetectionLayer = "rule"
	LayerStatistical DetectionLayer = "statistical"
	LayerSemantic    DetectionLayer = "semantic"
)

// AnomalyCategory is the business area an anomaly belongs to.
type AnomalyCategory string

const (
	CategoryPricing    AnomalyCategory = "pricing"
	CategoryCompliance AnomalyCategory = "compliance"
	CategoryRoute      AnomalyCategory = "route"
	CategoryPayment    AnomalyCategory = "payment"
	CategoryVolume     AnomalyCategory = "volume"
	CategoryCrossField AnomalyCategory = "cross_field"
)

// Severity grades how urgently an anomaly needs analyst attention.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank maps a severity onto an ordinal so anomalies can be sorted. Unknown
// values rank below low.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AnomalyRecord is one detected irregularity. It back-references exactly one
// shipment and is immutable once created; the aggregator only filters and
// sorts anomalies, it never rewrites them.
type AnomalyRecord struct {
	ShipmentID     string          `json:"shipment_id"`
	Layer          DetectionLayer  `json:"layer"`
	CheckID        string          `json:"check_id"`
	Category       AnomalyCategory `json:"category"`
	Severity       Severity        `json:"severity"`
	Description    string          `json:"description"`
	Evidence       map[string]any  `json:"evidence,omitempty"`
	Recommendation string          `json:"recommendation,omitempty"`
	ImpactUSD      float64         `json:"estimated_financial_impact_usd"`
	DetectedAt     time.Time       `json:"detected_at"`
}
