package rules

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

func defaultTestRegistry() *Registry {
	return DefaultRegistry(
		FOBConfig{TolerancePct: 0.05, CriticalGapUSD: 1000},
		DrawbackConfig{PenaltyMultiplier: 3},
		FreightConfig{FlatImpactUSD: 2000},
		InsuranceConfig{MinRatePct: 0.1, MaxRatePct: 2.0, ExtremeFactor: 5},
	)
}

// cleanRecord returns a record that trips none of the five checks.
func cleanRecord() domain.ShipmentRecord {
	return domain.ShipmentRecord{
		ID:             "SHP-2025-0001",
		Product:        "cotton t-shirts",
		HSCode:         "6109.10",
		Quantity:       1000,
		UnitPriceUSD:   4.50,
		FOBValueUSD:    4500,
		Incoterm:       domain.IncotermCIF,
		FreightCostUSD: 800,
		InsuranceUSD:   45, // 1% of FOB
		Buyer:          "Acme Imports",
		PaymentStatus:  domain.PaymentReceived,
		DaysToPayment:  intPtr(42),
		CustomsStatus:  domain.CustomsCleared,
		DrawbackUSD:    0,
		Date:           time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
	}
}

func TestFOBMath(t *testing.T) {
	check := NewFOBMath(FOBConfig{TolerancePct: 0.05, CriticalGapUSD: 1000})

	tests := []struct {
		name         string
		mutate       func(*domain.ShipmentRecord)
		wantFlag     bool
		wantSeverity domain.Severity
		wantImpact   float64
	}{
		{
			name:   "exact match passes",
			mutate: func(r *domain.ShipmentRecord) {},
		},
		{
			name: "within tolerance passes",
			mutate: func(r *domain.ShipmentRecord) {
				r.FOBValueUSD = 4600 // 2.2% off 4500
			},
		},
		{
			name: "large absolute gap is critical",
			mutate: func(r *domain.ShipmentRecord) {
				r.Quantity = 2000
				r.UnitPriceUSD = 4.50
				r.FOBValueUSD = 10800 // expected 9000, gap 1800
			},
			wantFlag:     true,
			wantSeverity: domain.SeverityCritical,
			wantImpact:   1800,
		},
		{
			name: "double tolerance with small gap is high",
			mutate: func(r *domain.ShipmentRecord) {
				r.Quantity = 100
				r.UnitPriceUSD = 4.50
				r.FOBValueUSD = 540 // expected 450, gap 90 (20%)
			},
			wantFlag:     true,
			wantSeverity: domain.SeverityHigh,
			wantImpact:   90,
		},
		{
			name: "just over tolerance is medium",
			mutate: func(r *domain.ShipmentRecord) {
				r.Quantity = 100
				r.UnitPriceUSD = 10
				r.FOBValueUSD = 1060 // expected 1000, gap 60 (6%)
			},
			wantFlag:     true,
			wantSeverity: domain.SeverityMedium,
			wantImpact:   60,
		},
		{
			name: "zero quantity is out of scope",
			mutate: func(r *domain.ShipmentRecord) {
				r.Quantity = 0
				r.FOBValueUSD = 99999
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := cleanRecord()
			tt.mutate(&rec)
			got := check.Evaluate(rec)
			if !tt.wantFlag {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, "R1", got[0].CheckID)
			assert.Equal(t, domain.CategoryPricing, got[0].Category)
			assert.Equal(t, tt.wantSeverity, got[0].Severity)
			assert.InDelta(t, tt.wantImpact, got[0].ImpactUSD, 0.01)
		})
	}
}

func TestDrawbackOnRejected(t *testing.T) {
	check := NewDrawbackOnRejected(DrawbackConfig{PenaltyMultiplier: 3})

	t.Run("rejected with drawback is critical", func(t *testing.T) {
		rec := cleanRecord()
		rec.CustomsStatus = domain.CustomsRejected
		rec.DrawbackUSD = 500

		got := check.Evaluate(rec)
		require.Len(t, got, 1)
		assert.Equal(t, domain.SeverityCritical, got[0].Severity)
		assert.Equal(t, domain.CategoryCompliance, got[0].Category)
		assert.InDelta(t, 1500.0, got[0].ImpactUSD, 0.01)
	})

	t.Run("cleared with drawback passes", func(t *testing.T) {
		rec := cleanRecord()
		rec.DrawbackUSD = 500
		assert.Empty(t, check.Evaluate(rec))
	})

	t.Run("rejected without drawback passes", func(t *testing.T) {
		rec := cleanRecord()
		rec.CustomsStatus = domain.CustomsRejected
		assert.Empty(t, check.Evaluate(rec))
	})
}

func TestPaymentIntegrity(t *testing.T) {
	check := NewPaymentIntegrity()

	t.Run("received with null days is flagged", func(t *testing.T) {
		rec := cleanRecord()
		rec.DaysToPayment = nil

		got := check.Evaluate(rec)
		require.Len(t, got, 1)
		assert.Equal(t, "R3", got[0].CheckID)
		assert.Equal(t, domain.SeverityHigh, got[0].Severity)
		assert.Zero(t, got[0].ImpactUSD)
	})

	t.Run("received with days passes", func(t *testing.T) {
		assert.Empty(t, check.Evaluate(cleanRecord()))
	})

	t.Run("pending with null days passes", func(t *testing.T) {
		rec := cleanRecord()
		rec.PaymentStatus = domain.PaymentPending
		rec.DaysToPayment = nil
		assert.Empty(t, check.Evaluate(rec))
	})
}

func TestIncotermFreight(t *testing.T) {
	check := NewIncotermFreight(FreightConfig{FlatImpactUSD: 2000})

	t.Run("CIF with zero freight is flagged", func(t *testing.T) {
		rec := cleanRecord()
		rec.FreightCostUSD = 0

		got := check.Evaluate(rec)
		require.Len(t, got, 1)
		assert.Equal(t, domain.SeverityHigh, got[0].Severity)
		assert.Equal(t, domain.CategoryCrossField, got[0].Category)
		assert.InDelta(t, 2000.0, got[0].ImpactUSD, 0.01)
	})

	t.Run("FOB with zero freight passes", func(t *testing.T) {
		rec := cleanRecord()
		rec.Incoterm = domain.IncotermFOB
		rec.FreightCostUSD = 0
		assert.Empty(t, check.Evaluate(rec))
	})

	t.Run("CIF with freight passes", func(t *testing.T) {
		assert.Empty(t, check.Evaluate(cleanRecord()))
	})
}

func TestInsuranceRate(t *testing.T) {
	check := NewInsuranceRate(InsuranceConfig{MinRatePct: 0.1, MaxRatePct: 2.0, ExtremeFactor: 5})

	tests := []struct {
		name         string
		insurance    float64
		fob          float64
		wantFlag     bool
		wantSeverity domain.Severity
	}{
		{name: "rate inside band passes", insurance: 100, fob: 10000},
		{name: "rate at lower edge passes", insurance: 10, fob: 10000},
		{name: "under-insured is medium", insurance: 5, fob: 10000, wantFlag: true, wantSeverity: domain.SeverityMedium},
		{name: "extreme under-insurance is high", insurance: 1, fob: 10000, wantFlag: true, wantSeverity: domain.SeverityHigh},
		{name: "over-insured is medium", insurance: 500, fob: 10000, wantFlag: true, wantSeverity: domain.SeverityMedium},
		{name: "extreme over-insurance is high", insurance: 1100, fob: 10000, wantFlag: true, wantSeverity: domain.SeverityHigh},
		{name: "no insurance is out of scope", insurance: 0, fob: 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := cleanRecord()
			rec.InsuranceUSD = tt.insurance
			rec.FOBValueUSD = tt.fob

			got := check.Evaluate(rec)
			if !tt.wantFlag {
				assert.Empty(t, got)
				return
			}
			require.Len(t, got, 1)
			assert.Equal(t, "R5", got[0].CheckID)
			assert.Equal(t, tt.wantSeverity, got[0].Severity)
			assert.Greater(t, got[0].ImpactUSD, 0.0)
		})
	}
}

func TestEngineRun(t *testing.T) {
	engine := NewEngine(defaultTestRegistry(), testLogger())
	detectedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("clean dataset yields no anomalies", func(t *testing.T) {
		got, err := engine.Run(context.Background(), []domain.ShipmentRecord{cleanRecord()}, detectedAt)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("one record can trip several checks", func(t *testing.T) {
		rec := cleanRecord()
		rec.FOBValueUSD = rec.ExpectedFOB() * 2 // R1
		rec.CustomsStatus = domain.CustomsRejected
		rec.DrawbackUSD = 300 // R2
		rec.DaysToPayment = nil

		got, err := engine.Run(context.Background(), []domain.ShipmentRecord{rec}, detectedAt)
		require.NoError(t, err)
		require.Len(t, got, 3)
		// Checks run in ID order.
		assert.Equal(t, "R1", got[0].CheckID)
		assert.Equal(t, "R2", got[1].CheckID)
		assert.Equal(t, "R3", got[2].CheckID)
		for _, a := range got {
			assert.Equal(t, rec.ID, a.ShipmentID)
			assert.Equal(t, domain.LayerRule, a.Layer)
			assert.Equal(t, detectedAt, a.DetectedAt)
		}
	})

	t.Run("cancelled context aborts the run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := engine.Run(ctx, []domain.ShipmentRecord{cleanRecord()}, detectedAt)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
