// Package semantic is the LLM detection layer: HS code validation through a
// classification model, plus executive narrative generation. The whole layer
// degrades gracefully: when the model is unavailable or returns garbage, the
// run completes without semantic anomalies instead of failing.
package semantic

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
	"github.com/liquidmind-ai/tradesentinel/internal/platform/gemini"
)

// Classifier validates HS codes against product descriptions via Gemini,
// consulting the verdict cache first so each unique (code, description) pair
// costs at most one model call across runs.
type Classifier struct {
	client      *gemini.Client
	cache       domain.VerdictCache
	temperature float64
	logger      *slog.Logger
}

// Compile-time interface check.
var _ domain.ClassificationService = (*Classifier)(nil)

// NewClassifier creates a Classifier. cache may be nil, in which case every
// pair is classified fresh.
func NewClassifier(client *gemini.Client, cache domain.VerdictCache, logger *slog.Logger) *Classifier {
	return &Classifier{
		client:      client,
		cache:       cache,
		temperature: 0.1,
		logger:      logger.With(slog.String("component", "hs_classifier")),
	}
}

// classifierPrompt frames the model as a customs expert and pins the output
// to a bare JSON array. Chapter hints keep verdicts consistent across runs.
const classifierPrompt = `You are an Indian customs classification expert reviewing HS tariff codes.

Chapter reference:
- Ch 61: Knitted clothing (61091000 = T-shirts)
- Ch 62: Woven clothing (62114900 = sarees)
- Ch 84: Machinery (84713000 = laptops)
- Ch 87: Auto parts (87083010 = brake pads)
- Ch 42: Leather goods (42021200 = wallets, 42031000 = apparel accessories)
- Ch 09: Spices (09041100 = black pepper, 09042110 = chili/capsicum)
- Ch 10: Cereals (10063020 = rice)

Review each pair:
%s

Return ONLY a valid JSON array, no markdown, no backticks:
[{"hs_code":"...","description":"...","is_correct":true,"reason":"...","suggested_category":"..."}]`

// ClassifyCodes returns one verdict per input pair. Cached verdicts are
// served without a model call; the remaining pairs go out in a single
// request. A response that is not a well-formed verdict array fails the whole
// call: partial trust of a malformed payload is worse than no verdict.
func (c *Classifier) ClassifyCodes(ctx context.Context, checks []domain.CodeCheck) ([]domain.CodeVerdict, error) {
	if len(checks) == 0 {
		return nil, nil
	}

	verdicts := make([]domain.CodeVerdict, 0, len(checks))
	misses := checks
	if c.cache != nil {
		hits, remaining, err := c.cache.GetBatch(ctx, checks)
		if err != nil {
			c.logger.WarnContext(ctx, "verdict cache unavailable, classifying all pairs",
				slog.String("error", err.Error()))
		} else {
			verdicts = append(verdicts, hits...)
			misses = remaining
			c.logger.DebugContext(ctx, "verdict cache consulted",
				slog.Int("hits", len(hits)),
				slog.Int("misses", len(misses)),
			)
		}
	}
	if len(misses) == 0 {
		return verdicts, nil
	}

	fresh, err := c.classify(ctx, misses)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		for _, v := range fresh {
			if err := c.cache.Set(ctx, v); err != nil {
				c.logger.WarnContext(ctx, "failed to cache verdict",
					slog.String("hs_code", v.HSCode),
					slog.String("error", err.Error()))
			}
		}
	}
	return append(verdicts, fresh...), nil
}

func (c *Classifier) classify(ctx context.Context, checks []domain.CodeCheck) ([]domain.CodeVerdict, error) {
	var lines strings.Builder
	for _, chk := range checks {
		fmt.Fprintf(&lines, "- HS:%s | Product: %s\n", chk.HSCode, chk.Description)
	}

	raw, err := c.client.GenerateText(ctx, fmt.Sprintf(classifierPrompt, lines.String()), c.temperature, true)
	if err != nil {
		return nil, fmt.Errorf("semantic: classify codes: %w", err)
	}

	var verdicts []domain.CodeVerdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &verdicts); err != nil {
		return nil, fmt.Errorf("semantic: classify codes: %w: %v", domain.ErrMalformedResponse, err)
	}
	for _, v := range verdicts {
		if v.HSCode == "" {
			return nil, fmt.Errorf("semantic: classify codes: %w: verdict missing hs_code", domain.ErrMalformedResponse)
		}
	}
	return verdicts, nil
}

// stripFences removes a markdown code fence wrapper if the model added one
// despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.Contains(s, "```") {
		return s
	}
	parts := strings.Split(s, "```")
	if len(parts) < 2 {
		return s
	}
	inner := strings.TrimPrefix(strings.TrimSpace(parts[1]), "json")
	return strings.TrimSpace(inner)
}

// usageAttrs renders client usage for structured logs.
func usageAttrs(u gemini.Usage) []any {
	return []any{
		slog.Int("llm_calls", u.Calls),
		slog.Int("llm_failures", u.Failures),
		slog.Int("prompt_tokens", u.PromptTokens),
		slog.Int("response_tokens", u.ResponseTokens),
		slog.Duration("avg_latency", u.AvgLatency()),
	}
}
