package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

// BattleLease serialises every mutating operation on one battle. It wraps a
// distributed lock so concurrent requests across processes cannot interleave
// their read-validate-write sequences.
type BattleLease struct {
	locks domain.LockManager
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

// NewBattleLease creates a lease helper. ttl bounds how long a crashed holder
// keeps the battle locked; wait bounds how long a caller queues for it.
func NewBattleLease(locks domain.LockManager, ttl, wait time.Duration) *BattleLease {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 3 * time.Second
	}
	return &BattleLease{locks: locks, ttl: ttl, wait: wait, retry: 25 * time.Millisecond}
}

func battleLockKey(battleID string) string { return "battle:" + battleID }

// With runs fn while holding the battle's lease. A lease that stays held for
// longer than the wait budget yields ErrBattleUnavailable.
func (l *BattleLease) With(ctx context.Context, battleID string, fn func(ctx context.Context) error) error {
	unlock, err := l.acquire(ctx, battleID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(ctx)
}

func (l *BattleLease) acquire(ctx context.Context, battleID string) (func(), error) {
	deadline := time.Now().Add(l.wait)
	for {
		unlock, err := l.locks.Acquire(ctx, battleLockKey(battleID), l.ttl)
		if err == nil {
			return unlock, nil
		}
		if !errors.Is(err, domain.ErrLockHeld) {
			return nil, fmt.Errorf("battle_lease: acquire %s: %w", battleID, err)
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: battle %s is busy", domain.ErrBattleUnavailable, battleID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}
}
