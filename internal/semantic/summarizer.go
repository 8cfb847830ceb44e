package semantic

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
	"github.com/liquidmind-ai/tradesentinel/internal/platform/gemini"
)

// Summarizer generates the executive narrative for a run report.
type Summarizer struct {
	client      *gemini.Client
	temperature float64
	logger      *slog.Logger
}

var _ domain.SummarizationService = (*Summarizer)(nil)

func NewSummarizer(client *gemini.Client, logger *slog.Logger) *Summarizer {
	return &Summarizer{
		client:      client,
		temperature: 0.4,
		logger:      logger.With(slog.String("component", "summarizer")),
	}
}

const summaryPrompt = `You are a trade compliance consultant writing an executive summary for an Operations Head.

Audit results:
- Shipments audited: %d
- Anomalies found: %d
- Estimated financial exposure: $%.0f
- By severity: %s
- By category: %s

Top issues:
%s

Write 300-400 words covering:
1. Executive Overview (2-3 sentences)
2. Top 3 Urgent Issues (name shipment IDs and dollar impact)
3. Trends across the anomaly categories
4. Financial Exposure
5. Immediate Actions (3-4 bullets)

Professional tone, non-technical language, plain text.`

// Summarize renders the narrative from summary statistics and the top
// anomalies by impact. The model's prose is taken as-is; an empty response is
// the only failure mode beyond transport errors.
func (s *Summarizer) Summarize(ctx context.Context, summary domain.Summary, top []domain.AnomalyRecord) (string, error) {
	var topDesc strings.Builder
	for _, a := range top {
		fmt.Fprintf(&topDesc, "- [%s] %s: %s ($%.0f)\n",
			strings.ToUpper(string(a.Severity)), a.ShipmentID, clip(a.Description, 120), a.ImpactUSD)
	}

	prompt := fmt.Sprintf(summaryPrompt,
		summary.TotalShipments,
		summary.TotalAnomalies,
		summary.TotalImpactUSD,
		countLine(summary.BySeverity),
		countLine(summary.ByCategory),
		topDesc.String(),
	)

	text, err := s.client.GenerateText(ctx, prompt, s.temperature, false)
	if err != nil {
		return "", fmt.Errorf("semantic: summarize: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("semantic: summarize: %w: empty narrative", domain.ErrMalformedResponse)
	}
	s.logger.DebugContext(ctx, "executive summary generated", slog.Int("chars", len(text)))
	return text, nil
}

// countLine renders a count map as "key=n" pairs in deterministic key order.
func countLine[K ~string](m map[K]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m[K(k)]))
	}
	return strings.Join(parts, ", ")
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Usage exposes the underlying client's call accounting for run reports.
func (s *Summarizer) Usage() gemini.Usage {
	return s.client.LastUsage()
}
