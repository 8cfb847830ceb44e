package handler

import (
	"log/slog"
	"net/http"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// AnomalyHandler serves anomaly query endpoints backed by the anomaly store.
type AnomalyHandler struct {
	anomalies domain.AnomalyStore
	logger    *slog.Logger
}

// NewAnomalyHandler creates an AnomalyHandler with the given store and logger.
func NewAnomalyHandler(anomalies domain.AnomalyStore, logger *slog.Logger) *AnomalyHandler {
	return &AnomalyHandler{
		anomalies: anomalies,
		logger:    logger,
	}
}

// listAnomaliesResponse wraps the list endpoint output with metadata.
type listAnomaliesResponse struct {
	Anomalies []domain.AnomalyRecord `json:"anomalies"`
	Count     int                    `json:"count"`
	Limit     int                    `json:"limit"`
	Offset    int                    `json:"offset"`
}

// ListAnomalies returns persisted anomalies across all runs, ranked
// severity-first then by impact. Supports severity, category, since, until,
// limit, and offset query parameters.
// GET /api/anomalies
func (h *AnomalyHandler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	anomalies, err := h.anomalies.List(r.Context(), opts)
	if err != nil {
		logHandler(h.logger, "list_anomalies").ErrorContext(r.Context(), "failed to list anomalies",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list anomalies")
		return
	}

	writeJSON(w, http.StatusOK, listAnomaliesResponse{
		Anomalies: anomalies,
		Count:     len(anomalies),
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
}

// ListRunAnomalies returns the anomalies recorded for a single run.
// GET /api/runs/{id}/anomalies
func (h *AnomalyHandler) ListRunAnomalies(w http.ResponseWriter, r *http.Request) {
	runID := pathParam(r, "id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}
	opts := parseListOpts(r)

	anomalies, err := h.anomalies.ListByRun(r.Context(), runID, opts)
	if err != nil {
		logHandler(h.logger, "list_run_anomalies").ErrorContext(r.Context(), "failed to list run anomalies",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list anomalies")
		return
	}

	writeJSON(w, http.StatusOK, listAnomaliesResponse{
		Anomalies: anomalies,
		Count:     len(anomalies),
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	})
}
