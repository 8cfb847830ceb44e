package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit    int
	Offset   int
	Since    *time.Time
	Until    *time.Time
	Severity Severity        // empty = all severities
	Category AnomalyCategory // empty = all categories
}

// ShipmentSource supplies the in-memory dataset an audit run operates on.
// Implementations: CSV file loader, blob-store loader, postgres store.
type ShipmentSource interface {
	LoadShipments(ctx context.Context) ([]ShipmentRecord, error)
}

// ShipmentStore persists shipment records.
type ShipmentStore interface {
	ShipmentSource
	UpsertBatch(ctx context.Context, records []ShipmentRecord) error
	GetByID(ctx context.Context, id string) (ShipmentRecord, error)
	Count(ctx context.Context) (int64, error)
}

// AnomalyStore persists the anomalies detected by audit runs.
type AnomalyStore interface {
	InsertBatch(ctx context.Context, runID string, anomalies []AnomalyRecord) error
	ListByRun(ctx context.Context, runID string, opts ListOpts) ([]AnomalyRecord, error)
	List(ctx context.Context, opts ListOpts) ([]AnomalyRecord, error)
}

// ReportStore persists run reports for later retrieval via the API.
type ReportStore interface {
	Insert(ctx context.Context, report RunReport) error
	GetByRunID(ctx context.Context, runID string) (RunReport, error)
	ListRecent(ctx context.Context, limit int) ([]RunReport, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only log of pipeline events (run started,
// engines finished, semantic layer skipped, report archived).
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
