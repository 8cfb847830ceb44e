package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// ShipmentHandler serves shipment lookup endpoints backed by the persisted
// dataset. Only available when shipment persistence is enabled.
type ShipmentHandler struct {
	shipments domain.ShipmentStore
	logger    *slog.Logger
}

// NewShipmentHandler creates a ShipmentHandler with the given store and logger.
func NewShipmentHandler(shipments domain.ShipmentStore, logger *slog.Logger) *ShipmentHandler {
	return &ShipmentHandler{
		shipments: shipments,
		logger:    logger,
	}
}

// GetShipment returns a single shipment record by its identifier.
// GET /api/shipments/{id}
func (h *ShipmentHandler) GetShipment(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "shipment id is required")
		return
	}

	rec, err := h.shipments.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "shipment not found")
			return
		}
		logHandler(h.logger, "get_shipment").ErrorContext(r.Context(), "failed to load shipment",
			slog.String("shipment_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load shipment")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}
