package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// releaseLua deletes a lease key only while it still carries the holder's
// token, so an expired holder cannot release its successor's lease.
const releaseLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager implements domain.LockManager with SET NX PX leases.
type LockManager struct {
	rdb     *redis.Client
	release *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:     c.Underlying(),
		release: redis.NewScript(releaseLua),
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire takes the lease on key for ttl. It does not wait: a held lease
// yields domain.ErrLockHeld and the caller decides whether to retry. The
// returned release function is idempotent.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("redis: acquire lock %s: %w: ttl %s", key, domain.ErrInvalidInput, ttl)
	}

	token := uuid.NewString()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The caller's context may already be done by the time it releases.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.release.Run(releaseCtx, lm.rdb, []string{lk}, token).Err()
		})
	}, nil
}

// Compile-time interface check.
var _ domain.LockManager = (*LockManager)(nil)
