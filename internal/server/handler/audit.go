package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// AuditLogHandler serves the pipeline audit trail.
type AuditLogHandler struct {
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewAuditLogHandler creates an AuditLogHandler with the given store and logger.
func NewAuditLogHandler(audit domain.AuditStore, logger *slog.Logger) *AuditLogHandler {
	return &AuditLogHandler{
		audit:  audit,
		logger: logger,
	}
}

// auditEntryView is the API shape of one audit log row.
type auditEntryView struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ListEvents returns recent pipeline events, newest first.
// GET /api/audit
func (h *AuditLogHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	entries, err := h.audit.List(r.Context(), opts)
	if err != nil {
		logHandler(h.logger, "list_audit_events").ErrorContext(r.Context(), "failed to list audit events",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list audit events")
		return
	}

	views := make([]auditEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, auditEntryView{
			ID:        e.ID,
			Event:     e.Event,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": views,
		"count":  len(views),
	})
}
