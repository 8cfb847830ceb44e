// Package service orchestrates audit runs: dataset load, the three detection
// layers, aggregation, persistence, reporting, and notifications.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/liquidmind-ai/tradesentinel/internal/aggregate"
	"github.com/liquidmind-ai/tradesentinel/internal/domain"
	"github.com/liquidmind-ai/tradesentinel/internal/notify"
	"github.com/liquidmind-ai/tradesentinel/internal/report"
	"github.com/liquidmind-ai/tradesentinel/internal/rules"
	"github.com/liquidmind-ai/tradesentinel/internal/semantic"
	"github.com/liquidmind-ai/tradesentinel/internal/stats"
)

// runLockKey serialises audit runs across all instances sharing Redis.
const runLockKey = "audit_run"

// runLockTTL bounds how long a crashed run can block the next one.
const runLockTTL = 15 * time.Minute

// ProgressChannel returns the signal-bus channel carrying a run's progress
// events. The websocket hub subscribes with the "runs:*" pattern.
func ProgressChannel(runID string) string {
	return "runs:" + runID
}

// ProgressEvent is one stage transition of an audit run, published to the
// signal bus as JSON.
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	Detail    string    `json:"detail,omitempty"`
	Anomalies int       `json:"anomalies,omitempty"`
	At        time.Time `json:"at"`
}

// AuditDeps bundles the audit service's collaborators. Source, RuleEngine,
// StatEngine, Aggregator, and Logger are required; everything else is
// optional and skipped when nil.
type AuditDeps struct {
	Source     domain.ShipmentSource
	Shipments  domain.ShipmentStore
	RuleEngine *rules.Engine
	StatEngine *stats.Engine
	Semantic   *semantic.Layer
	Summarizer domain.SummarizationService
	Aggregator *aggregate.Aggregator
	Anomalies  domain.AnomalyStore
	Reports    domain.ReportStore
	Writer     *report.Writer
	Archiver   domain.ReportArchiver
	Locks      domain.LockManager
	Bus        domain.SignalBus
	Audit      domain.AuditStore
	Notifier   *notify.Notifier
	Logger     *slog.Logger
}

// AuditConfig holds run-level parameters.
type AuditConfig struct {
	// PersistShipments mirrors the loaded dataset into the shipment store.
	PersistShipments bool
	// TopN is how many top-impact anomalies feed the executive narrative.
	TopN int
}

// AuditService runs the three-layer detection pipeline end to end. A service
// instance is safe for concurrent use; overlapping Run calls are serialised
// by the distributed run lock.
type AuditService struct {
	deps   AuditDeps
	cfg    AuditConfig
	logger *slog.Logger
}

// NewAuditService creates an AuditService.
func NewAuditService(deps AuditDeps, cfg AuditConfig) *AuditService {
	if cfg.TopN <= 0 {
		cfg.TopN = 5
	}
	return &AuditService{
		deps:   deps,
		cfg:    cfg,
		logger: deps.Logger.With(slog.String("component", "audit_service")),
	}
}

// Run executes one audit over the configured dataset source and returns the
// finished report. The rule and statistical engines run concurrently with the
// semantic layer; a semantic failure degrades the run to two layers instead
// of failing it. Run returns domain.ErrLockHeld when another run is active.
func (s *AuditService) Run(ctx context.Context) (domain.RunReport, error) {
	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return domain.RunReport{}, err
	}
	defer unlock()
	return s.run(ctx, uuid.New().String())
}

// StartAsync acquires the run lock, then executes the audit in a background
// goroutine and returns the new run's identifier immediately. Callers follow
// progress on the signal bus (ProgressChannel) or poll the report store.
// The run uses a detached context so the caller's cancellation (for example
// an HTTP request ending) never aborts it.
func (s *AuditService) StartAsync(ctx context.Context) (string, error) {
	unlock, err := s.acquireLock(ctx)
	if err != nil {
		return "", err
	}

	runID := uuid.New().String()
	go func() {
		defer unlock()
		if _, err := s.run(context.Background(), runID); err != nil {
			s.logger.Error("background audit run failed",
				slog.String("run_id", runID),
				slog.String("error", err.Error()),
			)
		}
	}()
	return runID, nil
}

// acquireLock takes the distributed run lock, returning a no-op release when
// no lock manager is wired.
func (s *AuditService) acquireLock(ctx context.Context) (func(), error) {
	if s.deps.Locks == nil {
		return func() {}, nil
	}
	unlock, err := s.deps.Locks.Acquire(ctx, runLockKey, runLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("service: audit run: %w", domain.ErrLockHeld)
		}
		return nil, fmt.Errorf("service: acquire run lock: %w", err)
	}
	return unlock, nil
}

func (s *AuditService) run(ctx context.Context, runID string) (domain.RunReport, error) {
	startedAt := time.Now().UTC()
	logger := s.logger.With(slog.String("run_id", runID))

	logger.InfoContext(ctx, "audit run started")
	s.auditLog(ctx, "run_started", map[string]any{"run_id": runID})
	s.publish(ctx, runID, ProgressEvent{RunID: runID, Stage: "started", At: startedAt})

	dataset, err := s.deps.Source.LoadShipments(ctx)
	if err != nil {
		s.auditLog(ctx, "run_failed", map[string]any{"run_id": runID, "error": err.Error()})
		return domain.RunReport{}, fmt.Errorf("service: load dataset: %w", err)
	}
	logger.InfoContext(ctx, "dataset loaded", slog.Int("records", len(dataset)))
	s.publish(ctx, runID, ProgressEvent{RunID: runID, Stage: "dataset_loaded", Detail: fmt.Sprintf("%d records", len(dataset)), At: time.Now().UTC()})

	if s.cfg.PersistShipments && s.deps.Shipments != nil {
		if err := s.deps.Shipments.UpsertBatch(ctx, dataset); err != nil {
			logger.WarnContext(ctx, "failed to persist dataset", slog.String("error", err.Error()))
		}
	}

	ruleAnoms, statAnoms, semAnoms, err := s.detect(ctx, runID, dataset, startedAt, logger)
	if err != nil {
		s.auditLog(ctx, "run_failed", map[string]any{"run_id": runID, "error": err.Error()})
		return domain.RunReport{}, err
	}

	merged, summary := s.deps.Aggregator.Merge(len(dataset), ruleAnoms, statAnoms, semAnoms)
	s.publish(ctx, runID, ProgressEvent{RunID: runID, Stage: "aggregated", Anomalies: len(merged), At: time.Now().UTC()})

	rep := domain.RunReport{
		RunID:       runID,
		GeneratedAt: startedAt,
		Summary:     summary,
		Anomalies:   merged,
	}
	rep.ExecutiveSummary = s.summarize(ctx, rep, logger)

	s.persist(ctx, rep, logger)
	s.notifyOutcome(ctx, rep, logger)

	logger.InfoContext(ctx, "audit run completed",
		slog.Int("shipments", summary.TotalShipments),
		slog.Int("anomalies", summary.TotalAnomalies),
		slog.Float64("impact_usd", summary.TotalImpactUSD),
		slog.Duration("elapsed", time.Since(startedAt)),
	)
	s.auditLog(ctx, "run_completed", map[string]any{
		"run_id":     runID,
		"anomalies":  summary.TotalAnomalies,
		"impact_usd": summary.TotalImpactUSD,
	})
	s.publish(ctx, runID, ProgressEvent{RunID: runID, Stage: "completed", Anomalies: len(merged), At: time.Now().UTC()})

	return rep, nil
}

// detect runs the three detection layers. Rule and statistical engines are
// hard dependencies; the semantic layer degrades to an empty result on
// failure.
func (s *AuditService) detect(ctx context.Context, runID string, dataset []domain.ShipmentRecord, detectedAt time.Time, logger *slog.Logger) (ruleAnoms, statAnoms, semAnoms []domain.AnomalyRecord, err error) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		ruleAnoms, err = s.deps.RuleEngine.Run(gctx, dataset, detectedAt)
		if err != nil {
			return fmt.Errorf("service: rule layer: %w", err)
		}
		s.publish(gctx, runID, ProgressEvent{RunID: runID, Stage: "rules_done", Anomalies: len(ruleAnoms), At: time.Now().UTC()})
		return nil
	})

	g.Go(func() error {
		var err error
		statAnoms, err = s.deps.StatEngine.Run(gctx, dataset, detectedAt)
		if err != nil {
			return fmt.Errorf("service: statistical layer: %w", err)
		}
		s.publish(gctx, runID, ProgressEvent{RunID: runID, Stage: "stats_done", Anomalies: len(statAnoms), At: time.Now().UTC()})
		return nil
	})

	if s.deps.Semantic != nil {
		g.Go(func() error {
			anoms, semErr := s.deps.Semantic.Run(gctx, dataset, detectedAt)
			if semErr != nil {
				// Graceful degradation: the run proceeds on two layers.
				logger.WarnContext(gctx, "semantic layer failed, continuing without it",
					slog.String("error", semErr.Error()))
				s.auditLog(gctx, "semantic_skipped", map[string]any{"run_id": runID, "error": semErr.Error()})
				if s.deps.Notifier != nil {
					_ = s.deps.Notifier.Notify(gctx, notify.EventSemanticFailed,
						"Semantic layer unavailable",
						fmt.Sprintf("Run %s completed without HS code validation: %v", runID, semErr))
				}
				return nil
			}
			semAnoms = anoms
			s.publish(gctx, runID, ProgressEvent{RunID: runID, Stage: "semantic_done", Anomalies: len(anoms), At: time.Now().UTC()})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	return ruleAnoms, statAnoms, semAnoms, nil
}

// summarize generates the executive narrative. Failures are non-fatal and
// leave the narrative empty.
func (s *AuditService) summarize(ctx context.Context, rep domain.RunReport, logger *slog.Logger) string {
	if s.deps.Summarizer == nil || rep.Summary.TotalAnomalies == 0 {
		return ""
	}
	text, err := s.deps.Summarizer.Summarize(ctx, rep.Summary, rep.TopByImpact(s.cfg.TopN))
	if err != nil {
		logger.WarnContext(ctx, "executive summary generation failed", slog.String("error", err.Error()))
		return ""
	}
	return text
}

// persist writes the report everywhere it is wired to go: postgres, local
// files, and the archive bucket. Each sink failure is logged and skipped so
// one broken sink never loses the run.
func (s *AuditService) persist(ctx context.Context, rep domain.RunReport, logger *slog.Logger) {
	if s.deps.Anomalies != nil {
		if err := s.deps.Anomalies.InsertBatch(ctx, rep.RunID, rep.Anomalies); err != nil {
			logger.ErrorContext(ctx, "failed to persist anomalies", slog.String("error", err.Error()))
		}
	}
	if s.deps.Reports != nil {
		if err := s.deps.Reports.Insert(ctx, rep); err != nil {
			logger.ErrorContext(ctx, "failed to persist report", slog.String("error", err.Error()))
		}
	}
	if s.deps.Writer != nil {
		if _, err := s.deps.Writer.WriteJSON(rep); err != nil {
			logger.ErrorContext(ctx, "failed to write report file", slog.String("error", err.Error()))
		}
		if _, err := s.deps.Writer.WriteMarkdown(rep); err != nil {
			logger.ErrorContext(ctx, "failed to write executive summary file", slog.String("error", err.Error()))
		}
	}
	if s.deps.Archiver != nil {
		path, err := s.deps.Archiver.ArchiveReport(ctx, rep)
		if err != nil {
			logger.ErrorContext(ctx, "failed to archive report", slog.String("error", err.Error()))
		} else {
			logger.InfoContext(ctx, "report archived", slog.String("path", path))
		}
	}
}

// notifyOutcome alerts operators about the finished run and any critical
// findings.
func (s *AuditService) notifyOutcome(ctx context.Context, rep domain.RunReport, logger *slog.Logger) {
	if s.deps.Notifier == nil {
		return
	}

	criticals := rep.Summary.BySeverity[domain.SeverityCritical]
	if criticals > 0 {
		top := rep.TopByImpact(3)
		body := fmt.Sprintf("Run %s found %d critical anomalies (total exposure $%.0f).", rep.RunID, criticals, rep.Summary.TotalImpactUSD)
		for _, a := range top {
			body += fmt.Sprintf("\n- [%s] %s: %s", a.Severity, a.ShipmentID, a.Description)
		}
		if err := s.deps.Notifier.Notify(ctx, notify.EventCriticalAnomaly, "Critical trade anomalies detected", body); err != nil {
			logger.WarnContext(ctx, "critical anomaly notification failed", slog.String("error", err.Error()))
		}
	}

	msg := fmt.Sprintf("Audit run %s: %d shipments, %d anomalies, $%.0f estimated exposure.",
		rep.RunID, rep.Summary.TotalShipments, rep.Summary.TotalAnomalies, rep.Summary.TotalImpactUSD)
	if err := s.deps.Notifier.Notify(ctx, notify.EventRunCompleted, "Audit run completed", msg); err != nil {
		logger.WarnContext(ctx, "run completion notification failed", slog.String("error", err.Error()))
	}
}

func (s *AuditService) publish(ctx context.Context, runID string, event ProgressEvent) {
	if s.deps.Bus == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.deps.Bus.Publish(ctx, ProgressChannel(runID), payload); err != nil {
		s.logger.DebugContext(ctx, "progress publish failed",
			slog.String("stage", event.Stage),
			slog.String("error", err.Error()),
		)
	}
}

func (s *AuditService) auditLog(ctx context.Context, event string, detail map[string]any) {
	if s.deps.Audit == nil {
		return
	}
	if err := s.deps.Audit.Log(ctx, event, detail); err != nil {
		s.logger.DebugContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
