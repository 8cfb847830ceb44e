package semantic

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

// fakeClassifier replays canned verdicts and records what it was asked.
type fakeClassifier struct {
	verdicts []domain.CodeVerdict
	err      error
	asked    []domain.CodeCheck
}

func (f *fakeClassifier) ClassifyCodes(ctx context.Context, checks []domain.CodeCheck) ([]domain.CodeVerdict, error) {
	f.asked = checks
	if f.err != nil {
		return nil, f.err
	}
	return f.verdicts, nil
}

func shipment(id, hsCode, product string) domain.ShipmentRecord {
	return domain.ShipmentRecord{ID: id, HSCode: hsCode, Product: product}
}

func TestLayerExpandsMismatchPerShipment(t *testing.T) {
	fake := &fakeClassifier{
		verdicts: []domain.CodeVerdict{
			{HSCode: "61091000", Description: "cotton t-shirts", IsCorrect: true},
			{HSCode: "84713000", Description: "black pepper", IsCorrect: false,
				Reason: "Ch 84 is machinery, pepper belongs in Ch 09", SuggestedCategory: "0904"},
		},
	}
	layer := NewLayer(DefaultLayerConfig(), fake, nil, testLogger())
	detectedAt := time.Now().UTC()

	dataset := []domain.ShipmentRecord{
		shipment("S1", "61091000", "cotton t-shirts"),
		shipment("S2", "84713000", "black pepper"),
		shipment("S3", "84713000", "black pepper"), // same bad pair, second bearer
		shipment("S4", "61091000", "cotton t-shirts"),
	}

	got, err := layer.Run(context.Background(), dataset, detectedAt)
	require.NoError(t, err)

	// One model submission per unique pair.
	require.Len(t, fake.asked, 2)

	// Both bearers of the bad pair are flagged; the correct pair is not.
	require.Len(t, got, 2)
	assert.Equal(t, "S2", got[0].ShipmentID)
	assert.Equal(t, "S3", got[1].ShipmentID)
	for _, a := range got {
		assert.Equal(t, "SEM-1", a.CheckID)
		assert.Equal(t, domain.LayerSemantic, a.Layer)
		assert.Equal(t, domain.SeverityCritical, a.Severity)
		assert.Equal(t, domain.CategoryCompliance, a.Category)
		assert.InDelta(t, 6000.0, a.ImpactUSD, 0.01)
		assert.Equal(t, detectedAt, a.DetectedAt)
		assert.Equal(t, "incorrect", a.Evidence["verdict"])
	}
}

func TestLayerPropagatesClassifierFailure(t *testing.T) {
	fake := &fakeClassifier{err: domain.ErrMalformedResponse}
	layer := NewLayer(DefaultLayerConfig(), fake, nil, testLogger())

	_, err := layer.Run(context.Background(), []domain.ShipmentRecord{
		shipment("S1", "61091000", "cotton t-shirts"),
	}, time.Now())
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestLayerTruncatesPairLimit(t *testing.T) {
	fake := &fakeClassifier{}
	cfg := DefaultLayerConfig()
	cfg.MaxUniqueRows = 2
	layer := NewLayer(cfg, fake, nil, testLogger())

	dataset := []domain.ShipmentRecord{
		shipment("S1", "61091000", "t-shirts"),
		shipment("S2", "10063020", "rice"),
		shipment("S3", "42021200", "wallets"),
	}

	_, err := layer.Run(context.Background(), dataset, time.Now())
	require.NoError(t, err)
	assert.Len(t, fake.asked, 2)
}

func TestLayerSkipsRecordsWithoutPair(t *testing.T) {
	fake := &fakeClassifier{}
	layer := NewLayer(DefaultLayerConfig(), fake, nil, testLogger())

	got, err := layer.Run(context.Background(), []domain.ShipmentRecord{
		shipment("S1", "", "t-shirts"),
		shipment("S2", "61091000", ""),
	}, time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Nil(t, fake.asked)
}

func TestUniquePairs(t *testing.T) {
	checks, bearers := uniquePairs([]domain.ShipmentRecord{
		shipment("S1", "A", "x"),
		shipment("S2", "B", "y"),
		shipment("S3", "A", "x"),
	})

	require.Len(t, checks, 2)
	assert.Equal(t, domain.CodeCheck{HSCode: "A", Description: "x"}, checks[0])
	assert.Equal(t, []string{"S1", "S3"}, bearers[checks[0]])
	assert.Equal(t, []string{"S2"}, bearers[checks[1]])
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare json untouched", in: `[{"a":1}]`, want: `[{"a":1}]`},
		{name: "plain fence", in: "```\n[1,2]\n```", want: "[1,2]"},
		{name: "json fence", in: "```json\n[1,2]\n```", want: "[1,2]"},
		{name: "surrounding whitespace", in: "  \n```json\n[]\n```\n", want: "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, stripFences(tt.in))
		})
	}
}

func TestLayerNoVerdictsNoAnomalies(t *testing.T) {
	fake := &fakeClassifier{verdicts: nil}
	layer := NewLayer(DefaultLayerConfig(), fake, nil, testLogger())

	got, err := layer.Run(context.Background(), []domain.ShipmentRecord{
		shipment("S1", "61091000", "t-shirts"),
	}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, got)
}
