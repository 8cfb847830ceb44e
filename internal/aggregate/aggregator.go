// Package aggregate merges the anomaly output of the three detection layers
// into a single deduplicated, deterministically-ranked list with summary
// statistics.
package aggregate

import (
	"log/slog"
	"sort"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

type Aggregator struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Aggregator {
	return &Aggregator{logger: logger.With(slog.String("component", "aggregator"))}
}

// Merge combines per-layer anomaly lists into one ranked list and its summary.
// Exact duplicates, meaning the same (shipment_id, check_id) pair, are
// suppressed keeping the first occurrence; the same shipment flagged by
// different checks is kept every time, since overlapping findings from
// different layers are independent signals. Input slices are never mutated.
func (a *Aggregator) Merge(totalShipments int, layers ...[]domain.AnomalyRecord) ([]domain.AnomalyRecord, domain.Summary) {
	type dedupeKey struct {
		shipmentID string
		checkID    string
	}

	var total int
	for _, layer := range layers {
		total += len(layer)
	}

	seen := make(map[dedupeKey]struct{}, total)
	merged := make([]domain.AnomalyRecord, 0, total)
	for _, layer := range layers {
		for _, anom := range layer {
			key := dedupeKey{shipmentID: anom.ShipmentID, checkID: anom.CheckID}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, anom)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if ra, rb := a.Severity.Rank(), b.Severity.Rank(); ra != rb {
			return ra > rb
		}
		if a.ImpactUSD != b.ImpactUSD {
			return a.ImpactUSD > b.ImpactUSD
		}
		if a.ShipmentID != b.ShipmentID {
			return a.ShipmentID < b.ShipmentID
		}
		return a.CheckID < b.CheckID
	})

	summary := domain.Summary{
		TotalShipments: totalShipments,
		TotalAnomalies: len(merged),
		ByCategory:     make(map[domain.AnomalyCategory]int),
		BySeverity:     make(map[domain.Severity]int),
	}
	for _, anom := range merged {
		summary.ByCategory[anom.Category]++
		summary.BySeverity[anom.Severity]++
		summary.TotalImpactUSD += anom.ImpactUSD
	}

	if dropped := total - len(merged); dropped > 0 {
		a.logger.Debug("suppressed duplicate anomalies", slog.Int("dropped", dropped))
	}
	return merged, summary
}
