package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/liquidmind-ai/tradesentinel/internal/aggregate"
	"github.com/liquidmind-ai/tradesentinel/internal/domain"
	"github.com/liquidmind-ai/tradesentinel/internal/report"
	"github.com/liquidmind-ai/tradesentinel/internal/rules"
	"github.com/liquidmind-ai/tradesentinel/internal/semantic"
	"github.com/liquidmind-ai/tradesentinel/internal/server"
	"github.com/liquidmind-ai/tradesentinel/internal/server/handler"
	"github.com/liquidmind-ai/tradesentinel/internal/server/ws"
	"github.com/liquidmind-ai/tradesentinel/internal/service"
	"github.com/liquidmind-ai/tradesentinel/internal/stats"
)

// AuditMode runs one audit over the configured dataset and exits. Reports are
// written to the output directory and, when Postgres is wired, persisted for
// later API queries.
func (a *App) AuditMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting audit mode")

	svc := a.buildAuditService(deps)
	rep, err := svc.Run(ctx)
	if err != nil {
		return err
	}

	a.logger.InfoContext(ctx, "audit finished",
		slog.String("run_id", rep.RunID),
		slog.Int("shipments", rep.Summary.TotalShipments),
		slog.Int("anomalies", rep.Summary.TotalAnomalies),
		slog.Float64("impact_usd", rep.Summary.TotalImpactUSD),
	)
	return nil
}

// ServerMode starts the HTTP + WebSocket API and blocks until the context is
// cancelled. Audit runs are triggered on demand through POST /api/runs.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	svc := a.buildAuditService(deps)
	a.startHTTPServer(ctx, g, deps, svc)
	return g.Wait()
}

// FullMode performs one audit at startup and then serves the API. A failed
// initial run (for example an unreadable dataset) is logged but does not take
// the server down; operators can fix the input and re-trigger over HTTP.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svc := a.buildAuditService(deps)

	g.Go(func() error {
		rep, err := svc.Run(ctx)
		if err != nil {
			a.logger.WarnContext(ctx, "initial audit run failed",
				slog.String("error", err.Error()),
			)
			return nil
		}
		a.logger.InfoContext(ctx, "initial audit finished",
			slog.String("run_id", rep.RunID),
			slog.Int("anomalies", rep.Summary.TotalAnomalies),
		)
		return nil
	})

	a.startHTTPServer(ctx, g, deps, svc)
	return g.Wait()
}

// buildAuditService assembles the three detection layers and the run
// orchestrator from the wired dependencies and configuration.
func (a *App) buildAuditService(deps *Dependencies) *service.AuditService {
	registry := rules.DefaultRegistry(
		rules.FOBConfig{
			TolerancePct:   a.cfg.Rules.FOBTolerancePct / 100,
			CriticalGapUSD: a.cfg.Rules.FOBCriticalGapUSD,
		},
		rules.DrawbackConfig{
			PenaltyMultiplier: a.cfg.Rules.DrawbackMultiplier,
		},
		rules.FreightConfig{
			FlatImpactUSD: a.cfg.Rules.FreightFlatImpactUSD,
		},
		rules.InsuranceConfig{
			MinRatePct:    a.cfg.Rules.InsuranceMinRatePct,
			MaxRatePct:    a.cfg.Rules.InsuranceMaxRatePct,
			ExtremeFactor: a.cfg.Rules.InsuranceExtremeFact,
		},
	)
	ruleEngine := rules.NewEngine(registry, a.logger)

	statEngine := stats.NewEngine(stats.Config{
		ZThreshold:             a.cfg.Stats.ZThreshold,
		HighZ:                  a.cfg.Stats.HighZ,
		CriticalZ:              a.cfg.Stats.CriticalZ,
		MinGroupSize:           a.cfg.Stats.MinGroupSize,
		TransitImpactUSD:       a.cfg.Stats.TransitImpactUSD,
		PaymentImpactUSD:       a.cfg.Stats.PaymentImpactUSD,
		BuyerVolumeImpactUSD:   a.cfg.Stats.BuyerVolumeImpactUSD,
		CountryVolumeImpactUSD: a.cfg.Stats.CountryVolumeImpactUSD,
	}, a.logger)

	var semLayer *semantic.Layer
	var summarizer domain.SummarizationService
	if deps.Gemini != nil {
		classifier := semantic.NewClassifier(deps.Gemini, deps.VerdictCache, a.logger)
		semLayer = semantic.NewLayer(semantic.LayerConfig{
			Timeout:       a.cfg.Semantic.Timeout.Duration,
			MismatchUSD:   a.cfg.Semantic.MismatchImpactUSD,
			MaxUniqueRows: a.cfg.Semantic.MaxUniquePairs,
		}, classifier, deps.Gemini.LastUsage, a.logger)
		summarizer = semantic.NewSummarizer(deps.Gemini, a.logger)
	}

	return service.NewAuditService(service.AuditDeps{
		Source:     deps.Source,
		Shipments:  deps.ShipmentStore,
		RuleEngine: ruleEngine,
		StatEngine: statEngine,
		Semantic:   semLayer,
		Summarizer: summarizer,
		Aggregator: aggregate.New(a.logger),
		Anomalies:  deps.AnomalyStore,
		Reports:    deps.ReportStore,
		Writer:     report.NewWriter(a.cfg.Report.OutputDir, a.logger),
		Archiver:   deps.Archiver,
		Locks:      deps.LockManager,
		Bus:        deps.SignalBus,
		Audit:      deps.AuditStore,
		Notifier:   deps.Notifier,
		Logger:     a.logger,
	}, service.AuditConfig{
		PersistShipments: a.cfg.Dataset.Persist,
		TopN:             a.cfg.Report.TopN,
	})
}

// startHTTPServer registers the API handlers and WebSocket hub on an errgroup.
// The server shuts down gracefully when the group context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *service.AuditService) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:    handler.NewHealthHandler(a.logger),
		Runs:      handler.NewRunHandler(svc, deps.ReportStore, a.logger),
		Anomalies: handler.NewAnomalyHandler(deps.AnomalyStore, a.logger),
	}
	if deps.ShipmentStore != nil && a.cfg.Dataset.Persist {
		handlers.Shipments = handler.NewShipmentHandler(deps.ShipmentStore, a.logger)
	}
	if deps.AuditStore != nil {
		handlers.Audit = handler.NewAuditLogHandler(deps.AuditStore, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.ApiKey,
	}, handlers, deps.RateLimiter, hub, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
