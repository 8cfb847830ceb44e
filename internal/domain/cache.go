package domain

import (
	"context"
	"time"
)

// VerdictCache stores HS-code classification verdicts keyed by the
// (code, description) pair so repeated runs over the same catalog do not
// re-spend model calls. A miss returns ErrNotFound.
type VerdictCache interface {
	Set(ctx context.Context, verdict CodeVerdict) error
	Get(ctx context.Context, check CodeCheck) (CodeVerdict, error)
	GetBatch(ctx context.Context, checks []CodeCheck) (hits []CodeVerdict, misses []CodeCheck, err error)
}

// LockManager provides distributed locking, used to keep concurrent audit
// runs from interleaving persistence.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub for run progress events consumed by the
// dashboard websocket hub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter throttles expensive operations, such as API-triggered audit
// runs, across all instances sharing the backing store.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
