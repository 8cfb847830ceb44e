package dataset

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const csvHeader = "shipment_id,date,buyer_name,buyer_country,product_description,hs_code,quantity,unit_price_usd,total_fob_usd,freight_cost_usd,insurance_usd,incoterm,port_of_loading,port_of_discharge,container_type,transit_days,customs_status,drawback_amount_usd,payment_status,days_to_payment"

func TestParseShipments(t *testing.T) {
	data := csvHeader + "\n" +
		"SHP-2025-0001,2025-03-10,Acme Imports,Germany,cotton t-shirts,6109.10,1000,4.50,4500.00,800.00,45.00,CIF,Chennai,Hamburg,40ft,32.0,cleared,0,received,41.0\n" +
		"SHP-2025-0002,2025-03-11,Beta GmbH,Germany,cotton t-shirts,6109.10,500,4.60,2300.00,,,FOB,Chennai,Hamburg,20ft,,pending,120.50,pending,\n"

	records, err := ParseShipments(strings.NewReader(data), testLogger())
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "SHP-2025-0001", first.ID)
	assert.Equal(t, "Acme Imports", first.Buyer)
	assert.Equal(t, "Germany", first.DestinationCountry)
	assert.Equal(t, 1000, first.Quantity)
	assert.InDelta(t, 4.50, first.UnitPriceUSD, 1e-9)
	assert.InDelta(t, 4500.0, first.FOBValueUSD, 1e-9)
	assert.Equal(t, domain.IncotermCIF, first.Incoterm)
	assert.Equal(t, domain.PaymentReceived, first.PaymentStatus)
	assert.Equal(t, domain.CustomsCleared, first.CustomsStatus)
	// pandas-style "32.0" parses to 32.
	require.NotNil(t, first.TransitDays)
	assert.Equal(t, 32, *first.TransitDays)
	require.NotNil(t, first.DaysToPayment)
	assert.Equal(t, 41, *first.DaysToPayment)

	second := records[1]
	assert.Equal(t, domain.IncotermFOB, second.Incoterm)
	assert.Zero(t, second.FreightCostUSD)
	assert.Zero(t, second.InsuranceUSD)
	assert.InDelta(t, 120.50, second.DrawbackUSD, 1e-9)
	assert.Nil(t, second.TransitDays)
	assert.Nil(t, second.DaysToPayment)
}

func TestParseShipmentsSkipsInvalidRows(t *testing.T) {
	data := csvHeader + "\n" +
		"SHP-1,2025-03-10,Acme,DE,shirts,6109.10,100,4.50,450.00,,,FOB,,,,,,,," + "\n" +
		",2025-03-10,Acme,DE,shirts,6109.10,100,4.50,450.00,,,FOB,,,,,,,," + "\n" + // empty id
		"SHP-3,not-a-date,Acme,DE,shirts,6109.10,100,4.50,450.00,,,FOB,,,,,,,," + "\n" + // bad date
		"SHP-4,2025-03-10,Acme,DE,shirts,6109.10,-5,4.50,450.00,,,FOB,,,,,,,," + "\n" + // negative quantity
		"SHP-5,2025-03-10,Acme,DE,shirts,6109.10,100,-4.50,450.00,,,FOB,,,,,,,," + "\n" // negative price

	records, err := ParseShipments(strings.NewReader(data), testLogger())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "SHP-1", records[0].ID)
}

func TestParseShipmentsMissingColumn(t *testing.T) {
	data := "shipment_id,date,buyer_name\nSHP-1,2025-03-10,Acme\n"
	_, err := ParseShipments(strings.NewReader(data), testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column")
}

func TestParseShipmentsEmptyDataset(t *testing.T) {
	t.Run("header only", func(t *testing.T) {
		_, err := ParseShipments(strings.NewReader(csvHeader+"\n"), testLogger())
		assert.ErrorIs(t, err, domain.ErrEmptyDataset)
	})

	t.Run("all rows invalid", func(t *testing.T) {
		data := csvHeader + "\n" + ",2025-03-10,Acme,DE,shirts,6109.10,100,4.50,450.00,,,FOB,,,,,,,,\n"
		_, err := ParseShipments(strings.NewReader(data), testLogger())
		assert.ErrorIs(t, err, domain.ErrEmptyDataset)
	})
}

func TestParseIncoterm(t *testing.T) {
	assert.Equal(t, domain.IncotermFOB, parseIncoterm("fob"))
	assert.Equal(t, domain.IncotermCIF, parseIncoterm("CIF"))
	assert.Equal(t, domain.IncotermOther, parseIncoterm("EXW"))
	assert.Equal(t, domain.IncotermOther, parseIncoterm(""))
}
