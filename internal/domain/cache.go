package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// EventBus fans battle events out to live subscribers.
type EventBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// FeeCounter keeps the running total of collected house fees. A negative
// amount reverses an earlier Add.
type FeeCounter interface {
	Add(ctx context.Context, amount int64) (int64, error)
	Total(ctx context.Context) (int64, error)
}
