package stats

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int { return &v }

// priceRecord builds a record that participates in STAT-1 only: every other
// check's group key or metric is absent or unique to the record.
func priceRecord(id, product string, price float64) domain.ShipmentRecord {
	return domain.ShipmentRecord{
		ID:                 id,
		Product:            product,
		Quantity:           1,
		UnitPriceUSD:       price,
		Buyer:              "buyer-" + id,
		DestinationCountry: "country-" + id,
		Date:               time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestComputeGroupStats(t *testing.T) {
	gs := computeGroupStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.Equal(t, 8, gs.n)
	assert.InDelta(t, 5.0, gs.mean, 1e-9)
	assert.InDelta(t, 2.138, gs.stddev, 0.001) // sample stddev

	assert.Equal(t, groupStats{}, computeGroupStats(nil))

	single := computeGroupStats([]float64{3})
	assert.Equal(t, 1, single.n)
	assert.Zero(t, single.stddev)
}

func TestLooScore(t *testing.T) {
	t.Run("outlier scores against the rest of the group", func(t *testing.T) {
		values := []float64{4.50, 4.60, 4.70, 4.55, 0.80}
		whole := computeGroupStats(values)

		z, dev := looScore(values, 4, whole)
		// Scored against [4.50 4.60 4.70 4.55]: mean 4.5875, stddev ~0.085.
		assert.Less(t, z, -40.0)
		assert.InDelta(t, -3.7875, dev, 1e-6)

		// The inliers stay well inside the threshold.
		for i := 0; i < 4; i++ {
			z, _ := looScore(values, i, whole)
			assert.Less(t, absFloat(z), 2.5, "index %d", i)
		}
	})

	t.Run("identical rest falls back to whole-group stddev", func(t *testing.T) {
		values := []float64{10, 10, 10, 22}
		whole := computeGroupStats(values)

		z, dev := looScore(values, 3, whole)
		assert.InDelta(t, 12.0, dev, 1e-9)
		assert.InDelta(t, 12.0/whole.stddev, z, 1e-9)
	})

	t.Run("groups below three members score zero", func(t *testing.T) {
		z, dev := looScore([]float64{1, 100}, 1, computeGroupStats([]float64{1, 100}))
		assert.Zero(t, z)
		assert.Zero(t, dev)
	})
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestEnginePriceOutlier(t *testing.T) {
	engine := NewEngine(DefaultConfig(), testLogger())
	detectedAt := time.Now().UTC()

	dataset := []domain.ShipmentRecord{
		priceRecord("S1", "cotton t-shirts", 4.50),
		priceRecord("S2", "cotton t-shirts", 4.60),
		priceRecord("S3", "cotton t-shirts", 4.70),
		priceRecord("S4", "cotton t-shirts", 4.55),
		priceRecord("S5", "cotton t-shirts", 0.80),
	}

	got, err := engine.Run(context.Background(), dataset, detectedAt)
	require.NoError(t, err)
	require.Len(t, got, 1)

	a := got[0]
	assert.Equal(t, "S5", a.ShipmentID)
	assert.Equal(t, "STAT-1", a.CheckID)
	assert.Equal(t, domain.LayerStatistical, a.Layer)
	assert.Equal(t, domain.CategoryPricing, a.Category)
	assert.Equal(t, domain.SeverityCritical, a.Severity)
	assert.Equal(t, detectedAt, a.DetectedAt)
	// Impact is |deviation from the rest| × quantity.
	assert.InDelta(t, 3.7875, a.ImpactUSD, 1e-4)
	assert.Equal(t, "cotton t-shirts", a.Evidence["group_key"])
	assert.Equal(t, 5, a.Evidence["group_size"])
}

func TestEngineSkipsDegenerateGroups(t *testing.T) {
	engine := NewEngine(DefaultConfig(), testLogger())

	t.Run("small group", func(t *testing.T) {
		dataset := []domain.ShipmentRecord{
			priceRecord("S1", "widgets", 1.00),
			priceRecord("S2", "widgets", 500.00),
		}
		got, err := engine.Run(context.Background(), dataset, time.Now())
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("zero variance group", func(t *testing.T) {
		dataset := []domain.ShipmentRecord{
			priceRecord("S1", "widgets", 5.00),
			priceRecord("S2", "widgets", 5.00),
			priceRecord("S3", "widgets", 5.00),
			priceRecord("S4", "widgets", 5.00),
		}
		got, err := engine.Run(context.Background(), dataset, time.Now())
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestEngineVolumeChecksFlagSpikesOnly(t *testing.T) {
	engine := NewEngine(DefaultConfig(), testLogger())
	date := time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC)

	volumeRecord := func(id string, qty int) domain.ShipmentRecord {
		return domain.ShipmentRecord{
			ID:                 id,
			Product:            "product-" + id, // singleton STAT-1 groups
			Quantity:           qty,
			UnitPriceUSD:       1,
			Buyer:              "Acme Imports",
			DestinationCountry: "country-" + id, // singleton STAT-6 groups
			Date:               date,
		}
	}

	t.Run("spike above the buyer mean is flagged", func(t *testing.T) {
		dataset := []domain.ShipmentRecord{
			volumeRecord("S1", 100),
			volumeRecord("S2", 110),
			volumeRecord("S3", 95),
			volumeRecord("S4", 105),
			volumeRecord("S5", 900),
		}
		got, err := engine.Run(context.Background(), dataset, time.Now())
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "STAT-5", got[0].CheckID)
		assert.Equal(t, "S5", got[0].ShipmentID)
		assert.Equal(t, domain.CategoryVolume, got[0].Category)
	})

	t.Run("dip below the buyer mean is ignored", func(t *testing.T) {
		dataset := []domain.ShipmentRecord{
			volumeRecord("S1", 900),
			volumeRecord("S2", 910),
			volumeRecord("S3", 895),
			volumeRecord("S4", 905),
			volumeRecord("S5", 100),
		}
		got, err := engine.Run(context.Background(), dataset, time.Now())
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestEngineTransitTimeImpactScales(t *testing.T) {
	cfg := DefaultConfig()
	engine := NewEngine(cfg, testLogger())

	transitRecord := func(id string, days int) domain.ShipmentRecord {
		return domain.ShipmentRecord{
			ID:              id,
			Product:         "product-" + id,
			Quantity:        1,
			UnitPriceUSD:    1,
			Buyer:           "buyer-" + id,
			OriginPort:      "Shanghai",
			DestinationPort: "Rotterdam",
			TransitDays:     intPtr(days),
			Date:            time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		}
	}

	dataset := []domain.ShipmentRecord{
		transitRecord("S1", 30),
		transitRecord("S2", 32),
		transitRecord("S3", 28),
		transitRecord("S4", 31),
		transitRecord("S5", 95),
	}

	got, err := engine.Run(context.Background(), dataset, time.Now())
	require.NoError(t, err)
	require.Len(t, got, 1)

	a := got[0]
	assert.Equal(t, "STAT-2", a.CheckID)
	assert.Equal(t, "S5", a.ShipmentID)
	assert.Equal(t, domain.CategoryRoute, a.Category)
	// Flat impact scaled by |z| / threshold, so always at least the flat value.
	assert.GreaterOrEqual(t, a.ImpactUSD, cfg.TransitImpactUSD)
}

func TestEngineDeterministicOutput(t *testing.T) {
	engine := NewEngine(DefaultConfig(), testLogger())

	dataset := []domain.ShipmentRecord{
		priceRecord("S1", "alpha", 4.50),
		priceRecord("S2", "alpha", 4.60),
		priceRecord("S3", "alpha", 4.55),
		priceRecord("S4", "alpha", 9.90),
		priceRecord("S5", "beta", 10.0),
		priceRecord("S6", "beta", 10.2),
		priceRecord("S7", "beta", 9.8),
		priceRecord("S8", "beta", 55.0),
	}

	first, err := engine.Run(context.Background(), dataset, time.Unix(0, 0))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := engine.Run(context.Background(), dataset, time.Unix(0, 0))
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
