package domain

import (
	"context"
	"time"
)

// Cache holds short-lived coordination state: scan leases, their holder
// records and windowed counters. Engine results are never cached.
type Cache interface {
	// Get returns nil, nil for a missing or expired key.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes both the value and the counter stored under key.
	Delete(ctx context.Context, key string) error

	// IncrementCounter returns the counter's new value. The first increment
	// starts a window of the given length, after which the counter resets;
	// a result of 1 therefore grants exclusive ownership until then.
	IncrementCounter(ctx context.Context, key string, window time.Duration) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// CacheConfig selects "memory" or "redis". With EnableTwoPhase, Redis
// values are also kept in a local LRU for up to LocalTTL.
type CacheConfig struct {
	Type string

	LocalMaxSize int
	LocalTTL     time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	EnableTwoPhase bool
}
