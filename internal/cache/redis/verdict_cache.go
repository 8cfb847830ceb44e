package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/liquidmind-ai/tradesentinel/internal/domain"
)

// VerdictCache implements domain.VerdictCache using Redis string keys holding
// JSON-encoded verdicts. Each (HS code, product description) pair maps to one
// key so repeated runs over the same catalog never re-spend model calls.
type VerdictCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewVerdictCache creates a VerdictCache backed by the given Client. A zero
// ttl keeps verdicts forever.
func NewVerdictCache(c *Client, ttl time.Duration) *VerdictCache {
	return &VerdictCache{rdb: c.Underlying(), ttl: ttl}
}

func verdictKey(check domain.CodeCheck) string {
	return "hsverdict:" + check.HSCode + "|" + check.Description
}

// Set stores a verdict under its pair key.
func (vc *VerdictCache) Set(ctx context.Context, verdict domain.CodeVerdict) error {
	data, err := json.Marshal(verdict)
	if err != nil {
		return fmt.Errorf("redis: marshal verdict %s: %w", verdict.HSCode, err)
	}
	key := verdictKey(domain.CodeCheck{HSCode: verdict.HSCode, Description: verdict.Description})
	if err := vc.rdb.Set(ctx, key, data, vc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set verdict %s: %w", verdict.HSCode, err)
	}
	return nil
}

// Get retrieves the verdict for one pair. It returns domain.ErrNotFound when
// the pair has never been classified.
func (vc *VerdictCache) Get(ctx context.Context, check domain.CodeCheck) (domain.CodeVerdict, error) {
	data, err := vc.rdb.Get(ctx, verdictKey(check)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.CodeVerdict{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CodeVerdict{}, fmt.Errorf("redis: get verdict %s: %w", check.HSCode, err)
	}

	var verdict domain.CodeVerdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		return domain.CodeVerdict{}, fmt.Errorf("redis: decode verdict %s: %w", check.HSCode, err)
	}
	return verdict, nil
}

// GetBatch retrieves verdicts for multiple pairs using a pipeline and splits
// the input into cache hits and misses. A verdict that fails to decode is
// treated as a miss so it gets reclassified rather than trusted.
func (vc *VerdictCache) GetBatch(ctx context.Context, checks []domain.CodeCheck) ([]domain.CodeVerdict, []domain.CodeCheck, error) {
	if len(checks) == 0 {
		return nil, nil, nil
	}

	pipe := vc.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, len(checks))
	for i, check := range checks {
		cmds[i] = pipe.Get(ctx, verdictKey(check))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, nil, fmt.Errorf("redis: get verdicts pipeline: %w", err)
	}

	var (
		hits   []domain.CodeVerdict
		misses []domain.CodeCheck
	)
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			misses = append(misses, checks[i])
			continue
		}
		var verdict domain.CodeVerdict
		if err := json.Unmarshal(data, &verdict); err != nil {
			misses = append(misses, checks[i])
			continue
		}
		hits = append(hits, verdict)
	}
	return hits, misses, nil
}

// Compile-time interface check.
var _ domain.VerdictCache = (*VerdictCache)(nil)
