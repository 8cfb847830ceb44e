package aggregate

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

func testAggregator() *Aggregator {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func anom(shipmentID, checkID string, sev domain.Severity, impact float64, cat domain.AnomalyCategory) domain.AnomalyRecord {
	return domain.AnomalyRecord{
		ShipmentID: shipmentID,
		CheckID:    checkID,
		Severity:   sev,
		ImpactUSD:  impact,
		Category:   cat,
	}
}

func TestMergeDedupes(t *testing.T) {
	agg := testAggregator()

	first := anom("S1", "R1", domain.SeverityCritical, 1800, domain.CategoryPricing)
	duplicate := anom("S1", "R1", domain.SeverityLow, 1, domain.CategoryPricing)
	otherCheck := anom("S1", "STAT-1", domain.SeverityMedium, 50, domain.CategoryPricing)

	merged, summary := agg.Merge(10,
		[]domain.AnomalyRecord{first},
		[]domain.AnomalyRecord{duplicate, otherCheck},
	)

	require.Len(t, merged, 2)
	// First occurrence wins.
	assert.Equal(t, domain.SeverityCritical, merged[0].Severity)
	assert.Equal(t, "STAT-1", merged[1].CheckID)
	assert.Equal(t, 2, summary.TotalAnomalies)
	assert.Equal(t, 10, summary.TotalShipments)
}

func TestMergeRanking(t *testing.T) {
	agg := testAggregator()

	in := []domain.AnomalyRecord{
		anom("S3", "R5", domain.SeverityMedium, 900, domain.CategoryCrossField),
		anom("S1", "R2", domain.SeverityCritical, 1500, domain.CategoryCompliance),
		anom("S2", "STAT-2", domain.SeverityHigh, 5000, domain.CategoryRoute),
		anom("S9", "SEM-1", domain.SeverityCritical, 6000, domain.CategoryCompliance),
		// Ties on severity and impact break by shipment then check ID.
		anom("S5", "R4", domain.SeverityHigh, 2000, domain.CategoryCrossField),
		anom("S4", "R4", domain.SeverityHigh, 2000, domain.CategoryCrossField),
		anom("S4", "R3", domain.SeverityHigh, 2000, domain.CategoryPayment),
	}

	merged, summary := agg.Merge(100, in)

	got := make([][2]string, len(merged))
	for i, a := range merged {
		got[i] = [2]string{a.ShipmentID, a.CheckID}
	}
	want := [][2]string{
		{"S9", "SEM-1"}, // critical, higher impact
		{"S1", "R2"},
		{"S2", "STAT-2"}, // high, impact 5000
		{"S4", "R3"},     // high 2000 ties: shipment asc, check asc
		{"S4", "R4"},
		{"S5", "R4"},
		{"S3", "R5"}, // medium last
	}
	assert.Equal(t, want, got)

	assert.Equal(t, 2, summary.BySeverity[domain.SeverityCritical])
	assert.Equal(t, 4, summary.BySeverity[domain.SeverityHigh])
	assert.Equal(t, 1, summary.BySeverity[domain.SeverityMedium])
	assert.Equal(t, 2, summary.ByCategory[domain.CategoryCompliance])
	assert.Equal(t, 3, summary.ByCategory[domain.CategoryCrossField])
	assert.InDelta(t, 900+1500+5000+6000+2000*3, summary.TotalImpactUSD, 0.01)
}

func TestMergeEmpty(t *testing.T) {
	agg := testAggregator()

	merged, summary := agg.Merge(25, nil, []domain.AnomalyRecord{}, nil)

	assert.Empty(t, merged)
	assert.Equal(t, 25, summary.TotalShipments)
	assert.Zero(t, summary.TotalAnomalies)
	assert.Zero(t, summary.TotalImpactUSD)
	assert.Empty(t, summary.ByCategory)
	assert.Empty(t, summary.BySeverity)
}

func TestMergeIdempotent(t *testing.T) {
	agg := testAggregator()

	in := []domain.AnomalyRecord{
		anom("S2", "STAT-1", domain.SeverityMedium, 10, domain.CategoryPricing),
		anom("S1", "R1", domain.SeverityHigh, 500, domain.CategoryPricing),
	}

	once, _ := agg.Merge(5, in)
	twice, _ := agg.Merge(5, once)
	assert.Equal(t, once, twice)
}
