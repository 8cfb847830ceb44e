package rules

import (
	"fmt"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// PaymentIntegrity (R3) flags records marked as paid without a recorded
// payment delay. The contradiction is a data-integrity / fraud signal; the
// dollar impact cannot be quantified from the record alone, so it is zero.
type PaymentIntegrity struct{}

// NewPaymentIntegrity creates the R3 check.
func NewPaymentIntegrity() *PaymentIntegrity {
	return &PaymentIntegrity{}
}

// ID returns the check identifier.
func (c *PaymentIntegrity) ID() string { return "R3" }

// Evaluate flags records where payment_status is "received" but
// days_to_payment is null.
func (c *PaymentIntegrity) Evaluate(rec domain.ShipmentRecord) []domain.AnomalyRecord {
	if rec.PaymentStatus != domain.PaymentReceived || rec.DaysToPayment != nil {
		return nil
	}

	return []domain.AnomalyRecord{{
		ShipmentID: rec.ID,
		Layer:      domain.LayerRule,
		CheckID:    c.ID(),
		Category:   domain.CategoryPayment,
		Severity:   domain.SeverityHigh,
		Description: fmt.Sprintf(
			"Payment marked received from %s but days_to_payment is null: contradictory record", rec.Buyer,
		),
		Evidence: map[string]any{
			"payment_status":  string(rec.PaymentStatus),
			"days_to_payment": nil,
			"buyer":           rec.Buyer,
		},
		Recommendation: "Investigate with the accounts team and backfill the payment date in the ERP.",
		ImpactUSD:      0,
	}}
}
