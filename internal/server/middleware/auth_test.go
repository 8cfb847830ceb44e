package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth(t *testing.T) {
	h := Auth("sekret")(okHandler())

	tests := []struct {
		name       string
		target     string
		decorate   func(*http.Request)
		wantStatus int
	}{
		{
			name:       "no credential",
			target:     "/api/runs",
			decorate:   func(*http.Request) {},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "bearer token",
			target: "/api/runs",
			decorate: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer sekret")
			},
			wantStatus: http.StatusOK,
		},
		{
			name:   "api key header",
			target: "/api/runs",
			decorate: func(r *http.Request) {
				r.Header.Set("X-API-Key", "sekret")
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "query token for websocket clients",
			target:     "/ws?token=sekret",
			decorate:   func(*http.Request) {},
			wantStatus: http.StatusOK,
		},
		{
			name:   "wrong key",
			target: "/api/runs",
			decorate: func(r *http.Request) {
				r.Header.Set("X-API-Key", "guess")
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "health endpoint is exempt",
			target:     "/api/health",
			decorate:   func(*http.Request) {},
			wantStatus: http.StatusOK,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			tc.decorate(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}

func TestAuthDisabledWhenKeyEmpty(t *testing.T) {
	h := Auth("")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"http://localhost:3000"})(okHandler())

	t.Run("allowed origin gets headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/anomalies", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "Origin", rec.Header().Get("Vary"))
	})

	t.Run("unknown origin gets none", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/anomalies", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/runs", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
