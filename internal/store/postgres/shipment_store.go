package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// ShipmentStore implements domain.ShipmentStore using PostgreSQL.
type ShipmentStore struct {
	pool *pgxpool.Pool
}

// NewShipmentStore creates a new ShipmentStore backed by the given pool.
func NewShipmentStore(pool *pgxpool.Pool) *ShipmentStore {
	return &ShipmentStore{pool: pool}
}

const shipmentSelectCols = `shipment_id, shipment_date, buyer_name, buyer_country,
	product_description, hs_code, quantity, unit_price_usd, total_fob_usd,
	incoterm, freight_cost_usd, insurance_usd, port_of_loading,
	port_of_discharge, container_type, transit_days, payment_status,
	days_to_payment, customs_status, drawback_amount_usd`

func scanShipmentRows(rows pgx.Rows) ([]domain.ShipmentRecord, error) {
	var records []domain.ShipmentRecord
	for rows.Next() {
		rec, err := scanShipment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanShipment(row pgx.Row) (domain.ShipmentRecord, error) {
	var (
		rec      domain.ShipmentRecord
		incoterm string
		payment  string
		customs  string
	)
	err := row.Scan(
		&rec.ID, &rec.Date, &rec.Buyer, &rec.DestinationCountry,
		&rec.Product, &rec.HSCode, &rec.Quantity, &rec.UnitPriceUSD,
		&rec.FOBValueUSD, &incoterm, &rec.FreightCostUSD, &rec.InsuranceUSD,
		&rec.OriginPort, &rec.DestinationPort, &rec.ContainerType,
		&rec.TransitDays, &payment, &rec.DaysToPayment, &customs,
		&rec.DrawbackUSD,
	)
	if err != nil {
		return rec, err
	}
	rec.Incoterm = domain.Incoterm(incoterm)
	rec.PaymentStatus = domain.PaymentStatus(payment)
	rec.CustomsStatus = domain.CustomsStatus(customs)
	return rec, nil
}

// UpsertBatch inserts or updates shipment records efficiently using pgx
// Batch. Existing rows with the same shipment_id are overwritten so the
// store always mirrors the latest dataset export.
func (s *ShipmentStore) UpsertBatch(ctx context.Context, records []domain.ShipmentRecord) error {
	if len(records) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO shipments (
			shipment_id, shipment_date, buyer_name, buyer_country,
			product_description, hs_code, quantity, unit_price_usd,
			total_fob_usd, incoterm, freight_cost_usd, insurance_usd,
			port_of_loading, port_of_discharge, container_type,
			transit_days, payment_status, days_to_payment,
			customs_status, drawback_amount_usd
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15,
			$16, $17, $18,
			$19, $20
		) ON CONFLICT (shipment_id) DO UPDATE SET
			shipment_date = EXCLUDED.shipment_date,
			buyer_name = EXCLUDED.buyer_name,
			buyer_country = EXCLUDED.buyer_country,
			product_description = EXCLUDED.product_description,
			hs_code = EXCLUDED.hs_code,
			quantity = EXCLUDED.quantity,
			unit_price_usd = EXCLUDED.unit_price_usd,
			total_fob_usd = EXCLUDED.total_fob_usd,
			incoterm = EXCLUDED.incoterm,
			freight_cost_usd = EXCLUDED.freight_cost_usd,
			insurance_usd = EXCLUDED.insurance_usd,
			port_of_loading = EXCLUDED.port_of_loading,
			port_of_discharge = EXCLUDED.port_of_discharge,
			container_type = EXCLUDED.container_type,
			transit_days = EXCLUDED.transit_days,
			payment_status = EXCLUDED.payment_status,
			days_to_payment = EXCLUDED.days_to_payment,
			customs_status = EXCLUDED.customs_status,
			drawback_amount_usd = EXCLUDED.drawback_amount_usd,
			updated_at = NOW()`

	for _, rec := range records {
		batch.Queue(query,
			rec.ID, rec.Date, rec.Buyer, rec.DestinationCountry,
			rec.Product, rec.HSCode, rec.Quantity, rec.UnitPriceUSD,
			rec.FOBValueUSD, string(rec.Incoterm), rec.FreightCostUSD,
			rec.InsuranceUSD, rec.OriginPort, rec.DestinationPort,
			rec.ContainerType, rec.TransitDays, string(rec.PaymentStatus),
			rec.DaysToPayment, string(rec.CustomsStatus), rec.DrawbackUSD,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range records {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert shipment batch item %d: %w", i, err)
		}
	}
	return nil
}

// LoadShipments returns all stored shipment records in shipment_id order.
func (s *ShipmentStore) LoadShipments(ctx context.Context) ([]domain.ShipmentRecord, error) {
	query := `SELECT ` + shipmentSelectCols + ` FROM shipments ORDER BY shipment_id`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: load shipments: %w", err)
	}
	defer rows.Close()

	records, err := scanShipmentRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan shipments: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("postgres: %w", domain.ErrEmptyDataset)
	}
	return records, nil
}

// GetByID returns a single shipment. It returns domain.ErrNotFound when the
// shipment does not exist.
func (s *ShipmentStore) GetByID(ctx context.Context, id string) (domain.ShipmentRecord, error) {
	query := `SELECT ` + shipmentSelectCols + ` FROM shipments WHERE shipment_id = $1`
	rec, err := scanShipment(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ShipmentRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ShipmentRecord{}, fmt.Errorf("postgres: get shipment %s: %w", id, err)
	}
	return rec, nil
}

// Count returns the number of stored shipments.
func (s *ShipmentStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM shipments").Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count shipments: %w", err)
	}
	return n, nil
}

// Compile-time interface check.
var _ domain.ShipmentStore = (*ShipmentStore)(nil)
