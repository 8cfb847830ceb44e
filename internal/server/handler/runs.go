package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// RunStarter defines what the run handler needs from the audit service: a way
// to launch a background run and get its identifier back. It is declared
// locally so the handler package does not depend on the concrete service
// implementation.
type RunStarter interface {
	StartAsync(ctx context.Context) (runID string, err error)
}

// RunHandler serves audit-run HTTP endpoints: triggering a run and reading
// back the reports it produced.
type RunHandler struct {
	runs    RunStarter
	reports domain.ReportStore
	logger  *slog.Logger
}

// NewRunHandler creates a RunHandler with the given service, report store,
// and logger.
func NewRunHandler(runs RunStarter, reports domain.ReportStore, logger *slog.Logger) *RunHandler {
	return &RunHandler{
		runs:    runs,
		reports: reports,
		logger:  logger,
	}
}

// TriggerRun starts a new audit run in the background and responds with its
// identifier. Only one run may be active at a time; a second trigger while a
// run holds the lock returns 409.
// POST /api/runs
func (h *RunHandler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	log := logHandler(h.logger, "trigger_run")

	runID, err := h.runs.StartAsync(r.Context())
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			writeError(w, http.StatusConflict, "an audit run is already in progress")
			return
		}
		log.ErrorContext(r.Context(), "failed to start audit run",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to start audit run")
		return
	}

	log.InfoContext(r.Context(), "audit run triggered", slog.String("run_id", runID))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":       "accepted",
		"run_id":       runID,
		"requested_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetRun returns the full report for a finished run, including its ranked
// anomaly list and executive summary.
// GET /api/runs/{id}
func (h *RunHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := pathParam(r, "id")
	if runID == "" {
		writeError(w, http.StatusBadRequest, "run id is required")
		return
	}

	rep, err := h.reports.GetByRunID(r.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		logHandler(h.logger, "get_run").ErrorContext(r.Context(), "failed to load report",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load report")
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// listRunsResponse wraps the recent-runs endpoint output.
type listRunsResponse struct {
	Runs  []runSummary `json:"runs"`
	Count int          `json:"count"`
}

// runSummary is the lightweight list view of a run: summary statistics
// without the full anomaly payload.
type runSummary struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Summary     domain.Summary `json:"summary"`
}

// ListRuns returns the most recent runs, newest first. The "limit" query
// parameter caps the result (default 20, max 100).
// GET /api/runs
func (h *RunHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}

	reports, err := h.reports.ListRecent(r.Context(), limit)
	if err != nil {
		logHandler(h.logger, "list_runs").ErrorContext(r.Context(), "failed to list runs",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	resp := listRunsResponse{Runs: make([]runSummary, 0, len(reports)), Count: len(reports)}
	for _, rep := range reports {
		resp.Runs = append(resp.Runs, runSummary{
			RunID:       rep.RunID,
			GeneratedAt: rep.GeneratedAt,
			Summary:     rep.Summary,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
