package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

func TestParseListOptsDefaults(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/anomalies", nil)
	opts := parseListOpts(req)

	assert.Equal(t, 50, opts.Limit)
	assert.Zero(t, opts.Offset)
	assert.Empty(t, string(opts.Severity))
	assert.Nil(t, opts.Since)
	assert.Nil(t, opts.Until)
}

func TestParseListOptsFilters(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/api/anomalies?limit=10&offset=20&severity=critical&category=pricing&since=2026-01-15&until=2026-02-01T12:00:00Z", nil)
	opts := parseListOpts(req)

	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, 20, opts.Offset)
	assert.Equal(t, domain.SeverityCritical, opts.Severity)
	assert.Equal(t, domain.CategoryPricing, opts.Category)
	require.NotNil(t, opts.Since)
	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), *opts.Since)
	require.NotNil(t, opts.Until)
	assert.Equal(t, time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC), *opts.Until)
}

func TestParseListOptsClampsAndIgnoresGarbage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet,
		"/api/anomalies?limit=9999&offset=-3&since=yesterday", nil)
	opts := parseListOpts(req)

	assert.Equal(t, 500, opts.Limit)
	assert.Zero(t, opts.Offset)
	assert.Nil(t, opts.Since)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, http.StatusTeapot, "no coffee here")

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"no coffee here"}`, rec.Body.String())
}
