// Package domain defines the core types of the trade shipment audit: shipment
// records, anomaly records, run reports, and the store/cache/blob interfaces
// implemented by the infrastructure packages.
package domain

import (
	"fmt"
	"time"
)

// Incoterm is the standardized delivery-term code declared on a shipment.
type Incoterm string

const (
	IncotermFOB   Incoterm = "FOB"
	IncotermCIF   Incoterm = "CIF"
	IncotermOther Incoterm = "other"
)

// PaymentStatus indicates whether the buyer has paid for a shipment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentReceived PaymentStatus = "received"
)

// CustomsStatus is the clearance state of a shipment at export customs.
type CustomsStatus string

const (
	CustomsCleared  CustomsStatus = "cleared"
	CustomsRejected CustomsStatus = "rejected"
	CustomsPending  CustomsStatus = "pending"
)

// ShipmentRecord is one exported trade transaction. Records are validated once
// at load time; detectors read typed fields and never mutate them.
//
// TransitDays and DaysToPayment are nullable in the source data: a nil pointer
// means the value was absent. DaysToPayment must be non-nil whenever
// PaymentStatus is "received" — that is checked, not enforced, and a violation
// is itself an anomaly.
type ShipmentRecord struct {
	ID                 string        `json:"shipment_id"`
	Product            string        `json:"product_description"`
	HSCode             string        `json:"hs_code"`
	Quantity           int           `json:"quantity"`
	UnitPriceUSD       float64       `json:"unit_price_usd"`
	FOBValueUSD        float64       `json:"total_fob_usd"`
	Incoterm           Incoterm      `json:"incoterm"`
	FreightCostUSD     float64       `json:"freight_cost_usd"`
	InsuranceUSD       float64       `json:"insurance_usd"`
	Buyer              string        `json:"buyer_name"`
	DestinationCountry string        `json:"buyer_country"`
	OriginPort         string        `json:"port_of_loading"`
	DestinationPort    string        `json:"port_of_discharge"`
	ContainerType      string        `json:"container_type"`
	TransitDays        *int          `json:"transit_days"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	DaysToPayment      *int          `json:"days_to_payment"`
	CustomsStatus      CustomsStatus `json:"customs_status"`
	DrawbackUSD        float64       `json:"drawback_amount_usd"`
	Date               time.Time     `json:"date"`
}

// Route returns the origin→destination lane identifier.
func (s ShipmentRecord) Route() string {
	return s.OriginPort + "→" + s.DestinationPort
}

// RouteContainer returns the lane identifier extended with the container type,
// used for freight-cost comparisons.
func (s ShipmentRecord) RouteContainer() string {
	return fmt.Sprintf("%s (%s)", s.Route(), s.ContainerType)
}

// Month returns the shipment's year-month in "2006-01" form.
func (s ShipmentRecord) Month() string {
	return s.Date.Format("2006-01")
}

// ExpectedFOB returns quantity × unit price, the value the declared FOB is
// checked against.
func (s ShipmentRecord) ExpectedFOB() float64 {
	return float64(s.Quantity) * s.UnitPriceUSD
}
