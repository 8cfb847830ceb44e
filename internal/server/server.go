// Package server exposes the audit pipeline over HTTP and WebSocket: run
// triggering, report and anomaly queries, the audit trail, and live run
// progress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
	"github.com/liquidmind-ai/tradesentinel/internal/server/handler"
	"github.com/liquidmind-ai/tradesentinel/internal/server/middleware"
	"github.com/liquidmind-ai/tradesentinel/internal/server/ws"
)

// triggerRateLimit caps how often a single client may trigger audit runs.
const (
	triggerRateLimit  = 5
	triggerRateWindow = time.Minute
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
// Shipments and Audit are optional; their routes are skipped when nil.
type Handlers struct {
	Health    *handler.HealthHandler
	Runs      *handler.RunHandler
	Anomalies *handler.AnomalyHandler
	Shipments *handler.ShipmentHandler
	Audit     *handler.AuditLogHandler
}

// Server is the headless HTTP + WebSocket API for the trade audit pipeline.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth) and attaches the WebSocket hub.
// The rate limiter, when non-nil, guards the run trigger endpoint only.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// --- Register routes ---

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Run endpoints. Triggering is rate limited per client IP; every run
	// spends real LLM calls.
	var trigger http.Handler = http.HandlerFunc(handlers.Runs.TriggerRun)
	if limiter != nil {
		trigger = middleware.RateLimit(limiter, triggerRateLimit, triggerRateWindow)(trigger)
	}
	mux.Handle("POST /api/runs", trigger)
	mux.HandleFunc("GET /api/runs", handlers.Runs.ListRuns)
	mux.HandleFunc("GET /api/runs/{id}", handlers.Runs.GetRun)
	mux.HandleFunc("GET /api/runs/{id}/anomalies", handlers.Anomalies.ListRunAnomalies)

	// Anomaly query endpoints.
	mux.HandleFunc("GET /api/anomalies", handlers.Anomalies.ListAnomalies)

	// Shipment lookups (only when the dataset is persisted).
	if handlers.Shipments != nil {
		mux.HandleFunc("GET /api/shipments/{id}", handlers.Shipments.GetShipment)
	}

	// Pipeline audit trail.
	if handlers.Audit != nil {
		mux.HandleFunc("GET /api/audit", handlers.Audit.ListEvents)
	}

	// WebSocket endpoint for live run progress.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
