package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunStarter struct {
	runID string
	err   error
}

func (f *fakeRunStarter) StartAsync(context.Context) (string, error) {
	return f.runID, f.err
}

type fakeReportStore struct {
	reports map[string]domain.RunReport
	recent  []domain.RunReport
	err     error
}

func (f *fakeReportStore) Insert(context.Context, domain.RunReport) error { return nil }

func (f *fakeReportStore) GetByRunID(_ context.Context, runID string) (domain.RunReport, error) {
	if f.err != nil {
		return domain.RunReport{}, f.err
	}
	rep, ok := f.reports[runID]
	if !ok {
		return domain.RunReport{}, domain.ErrNotFound
	}
	return rep, nil
}

func (f *fakeReportStore) ListRecent(_ context.Context, limit int) ([]domain.RunReport, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit > len(f.recent) {
		limit = len(f.recent)
	}
	return f.recent[:limit], nil
}

func TestTriggerRunAccepted(t *testing.T) {
	h := NewRunHandler(&fakeRunStarter{runID: "run-123"}, &fakeReportStore{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	rec := httptest.NewRecorder()
	h.TriggerRun(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "accepted", body["status"])
	assert.Equal(t, "run-123", body["run_id"])
	assert.NotEmpty(t, body["requested_at"])
}

func TestTriggerRunConflictWhenLockHeld(t *testing.T) {
	h := NewRunHandler(&fakeRunStarter{err: domain.ErrLockHeld}, &fakeReportStore{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	rec := httptest.NewRecorder()
	h.TriggerRun(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already in progress")
}

func TestTriggerRunInternalError(t *testing.T) {
	h := NewRunHandler(&fakeRunStarter{err: errors.New("redis down")}, &fakeReportStore{}, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
	rec := httptest.NewRecorder()
	h.TriggerRun(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	// The transport error must not leak into the response body.
	assert.NotContains(t, rec.Body.String(), "redis")
}

func TestGetRun(t *testing.T) {
	rep := domain.RunReport{
		RunID:       "run-123",
		GeneratedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
		Summary:     domain.Summary{TotalShipments: 10, TotalAnomalies: 1},
	}
	store := &fakeReportStore{reports: map[string]domain.RunReport{"run-123": rep}}
	h := NewRunHandler(&fakeRunStarter{}, store, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/runs/run-123", nil)
	req.SetPathValue("id", "run-123")
	rec := httptest.NewRecorder()
	h.GetRun(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got domain.RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-123", got.RunID)
	assert.Equal(t, 10, got.Summary.TotalShipments)
}

func TestGetRunNotFound(t *testing.T) {
	h := NewRunHandler(&fakeRunStarter{}, &fakeReportStore{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/runs/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	h.GetRun(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRunMissingID(t *testing.T) {
	h := NewRunHandler(&fakeRunStarter{}, &fakeReportStore{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/runs/", nil)
	rec := httptest.NewRecorder()
	h.GetRun(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRunsStripsAnomalyPayload(t *testing.T) {
	store := &fakeReportStore{recent: []domain.RunReport{
		{
			RunID:       "run-2",
			GeneratedAt: time.Now().UTC(),
			Summary:     domain.Summary{TotalAnomalies: 3},
			Anomalies:   []domain.AnomalyRecord{{ShipmentID: "S1"}, {ShipmentID: "S2"}, {ShipmentID: "S3"}},
		},
		{RunID: "run-1", GeneratedAt: time.Now().UTC().Add(-time.Hour)},
	}}
	h := NewRunHandler(&fakeRunStarter{}, store, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	h.ListRuns(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "anomalies\":[")

	var body struct {
		Runs  []map[string]any `json:"runs"`
		Count int              `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	require.Len(t, body.Runs, 2)
	assert.Equal(t, "run-2", body.Runs[0]["run_id"])
}

func TestListRunsLimit(t *testing.T) {
	recent := make([]domain.RunReport, 30)
	for i := range recent {
		recent[i] = domain.RunReport{RunID: "r", GeneratedAt: time.Now()}
	}
	h := NewRunHandler(&fakeRunStarter{}, &fakeReportStore{recent: recent}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/runs?limit=5", nil)
	rec := httptest.NewRecorder()
	h.ListRuns(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body listRunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 5, body.Count)
}
