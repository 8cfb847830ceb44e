// Package dataset loads shipment records from CSV sources: local files,
// Postgres, or an S3 bucket. Validation happens once here; detectors
// downstream assume typed, well-formed records.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// column names accepted in the source header. Extra columns are ignored.
const (
	colShipmentID    = "shipment_id"
	colDate          = "date"
	colBuyer         = "buyer_name"
	colBuyerCountry  = "buyer_country"
	colProduct       = "product_description"
	colHSCode        = "hs_code"
	colQuantity      = "quantity"
	colUnitPrice     = "unit_price_usd"
	colTotalFOB      = "total_fob_usd"
	colFreightCost   = "freight_cost_usd"
	colInsurance     = "insurance_usd"
	colIncoterm      = "incoterm"
	colOriginPort    = "port_of_loading"
	colDestPort      = "port_of_discharge"
	colContainerType = "container_type"
	colTransitDays   = "transit_days"
	colCustomsStatus = "customs_status"
	colDrawbackUSD   = "drawback_amount_usd"
	colPaymentStatus = "payment_status"
	colDaysToPayment = "days_to_payment"
)

var requiredColumns = []string{
	colShipmentID, colDate, colBuyer, colProduct, colHSCode,
	colQuantity, colUnitPrice, colTotalFOB, colIncoterm,
}

// ParseShipments reads shipment records from CSV. Rows that fail typed
// validation are skipped and counted, never silently coerced; a dataset with
// zero valid rows is a fatal ErrEmptyDataset.
func ParseShipments(r io.Reader, logger *slog.Logger) ([]domain.ShipmentRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset: read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("dataset: missing required column %q", col)
		}
	}

	var (
		records []domain.ShipmentRecord
		skipped int
		line    = 1
	)
	for {
		line++
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			skipped++
			logger.Warn("skipping malformed csv row", slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		rec, err := parseRow(row, idx)
		if err != nil {
			skipped++
			logger.Warn("skipping invalid shipment row", slog.Int("line", line), slog.String("error", err.Error()))
			continue
		}
		records = append(records, rec)
	}

	if skipped > 0 {
		logger.Warn("dataset loaded with skipped rows", slog.Int("loaded", len(records)), slog.Int("skipped", skipped))
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("dataset: %w", domain.ErrEmptyDataset)
	}
	return records, nil
}

func parseRow(row []string, idx map[string]int) (domain.ShipmentRecord, error) {
	field := func(col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var rec domain.ShipmentRecord
	rec.ID = field(colShipmentID)
	if rec.ID == "" {
		return rec, fmt.Errorf("empty shipment_id")
	}
	rec.Buyer = field(colBuyer)
	rec.DestinationCountry = field(colBuyerCountry)
	rec.Product = field(colProduct)
	rec.HSCode = field(colHSCode)
	rec.OriginPort = field(colOriginPort)
	rec.DestinationPort = field(colDestPort)
	rec.ContainerType = field(colContainerType)

	date, err := time.Parse("2006-01-02", field(colDate))
	if err != nil {
		return rec, fmt.Errorf("bad date: %w", err)
	}
	rec.Date = date

	rec.Quantity, err = strconv.Atoi(field(colQuantity))
	if err != nil || rec.Quantity < 0 {
		return rec, fmt.Errorf("bad quantity %q", field(colQuantity))
	}
	rec.UnitPriceUSD, err = parseMoney(field(colUnitPrice))
	if err != nil {
		return rec, fmt.Errorf("bad unit_price_usd: %w", err)
	}
	rec.FOBValueUSD, err = parseMoney(field(colTotalFOB))
	if err != nil {
		return rec, fmt.Errorf("bad total_fob_usd: %w", err)
	}
	if rec.FreightCostUSD, err = parseOptionalMoney(field(colFreightCost)); err != nil {
		return rec, fmt.Errorf("bad freight_cost_usd: %w", err)
	}
	if rec.InsuranceUSD, err = parseOptionalMoney(field(colInsurance)); err != nil {
		return rec, fmt.Errorf("bad insurance_usd: %w", err)
	}
	if rec.DrawbackUSD, err = parseOptionalMoney(field(colDrawbackUSD)); err != nil {
		return rec, fmt.Errorf("bad drawback_amount_usd: %w", err)
	}

	rec.Incoterm = parseIncoterm(field(colIncoterm))
	rec.PaymentStatus = domain.PaymentStatus(strings.ToLower(field(colPaymentStatus)))
	rec.CustomsStatus = domain.CustomsStatus(strings.ToLower(field(colCustomsStatus)))

	if rec.TransitDays, err = parseNullableInt(field(colTransitDays)); err != nil {
		return rec, fmt.Errorf("bad transit_days: %w", err)
	}
	if rec.DaysToPayment, err = parseNullableInt(field(colDaysToPayment)); err != nil {
		return rec, fmt.Errorf("bad days_to_payment: %w", err)
	}
	return rec, nil
}

func parseMoney(s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value %v", v)
	}
	return v, nil
}

// parseOptionalMoney treats an empty cell as zero.
func parseOptionalMoney(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return parseMoney(s)
}

// parseNullableInt maps an empty cell to nil rather than zero; downstream
// checks distinguish "absent" from "zero days".
func parseNullableInt(s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	// pandas writes nullable ints as floats ("42.0").
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	v := int(f)
	return &v, nil
}

func parseIncoterm(s string) domain.Incoterm {
	switch strings.ToUpper(s) {
	case "FOB":
		return domain.IncotermFOB
	case "CIF":
		return domain.IncotermCIF
	default:
		return domain.IncotermOther
	}
}
