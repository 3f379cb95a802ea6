package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/Engineer-Box/gmdemo/internal/domain"
)

const feeTotalKey = "fees:collected"

// FeeCounter implements domain.FeeCounter as a single INCRBY counter.
type FeeCounter struct {
	rdb *redis.Client
}

// NewFeeCounter creates a FeeCounter backed by the given Client.
func NewFeeCounter(c *Client) *FeeCounter {
	return &FeeCounter{rdb: c.Underlying()}
}

// Add adjusts the collected total by amount and returns the new total.
func (f *FeeCounter) Add(ctx context.Context, amount int64) (int64, error) {
	total, err := f.rdb.IncrBy(ctx, feeTotalKey, amount).Result()
	if err != nil {
		return 0, fmt.Errorf("redis: add fee %d: %w", amount, err)
	}
	return total, nil
}

// Total returns the collected total, zero if nothing was ever collected.
func (f *FeeCounter) Total(ctx context.Context) (int64, error) {
	total, err := f.rdb.Get(ctx, feeTotalKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis: fee total: %w", err)
	}
	return total, nil
}

// Compile-time interface check.
var _ domain.FeeCounter = (*FeeCounter)(nil)
