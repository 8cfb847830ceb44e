package domain

import "time"

// Summary aggregates counts and exposure over a run's final anomaly list. It
// is computed once by the aggregator and consumed by downstream reporting.
type Summary struct {
	TotalShipments  int                     `json:"total_shipments"`
	TotalAnomalies  int                     `json:"total_anomalies"`
	ByCategory      map[AnomalyCategory]int `json:"anomalies_by_category"`
	BySeverity      map[Severity]int        `json:"anomalies_by_severity"`
	TotalImpactUSD  float64                 `json:"total_estimated_impact_usd"`
}

// RunReport is the immutable output of one audit run: the ranked anomaly list
// plus summary statistics and the optional LLM narrative.
type RunReport struct {
	RunID            string          `json:"run_id"`
	GeneratedAt      time.Time       `json:"generated_at"`
	Summary          Summary         `json:"summary"`
	Anomalies        []AnomalyRecord `json:"anomalies"`
	ExecutiveSummary string          `json:"executive_summary,omitempty"`
}

// TopByImpact returns the n anomalies with the highest estimated financial
// impact, preserving the report's ranking for ties. The returned slice is a
// copy; the report itself is never reordered.
func (r RunReport) TopByImpact(n int) []AnomalyRecord {
	if n <= 0 || len(r.Anomalies) == 0 {
		return nil
	}
	out := make([]AnomalyRecord, len(r.Anomalies))
	copy(out, r.Anomalies)
	// Anomalies are already ranked severity-first; a simple insertion pass by
	// impact is enough for the small top-N slice.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ImpactUSD > out[j-1].ImpactUSD; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if n > len(out) {
		n = len(out)
	}
	return out[:n]
}
