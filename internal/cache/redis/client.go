// Package redis holds the battle service's shared Redis state: per-battle
// leases, ranking boards, the collected-fee counter, the battle event bus and
// the API rate limiter. Every adapter is built on one Client.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// clientName tags the service's connections in CLIENT LIST.
const clientName = "gmdemo"

// ClientConfig mirrors the [redis] config section.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
}

// Client owns the connection pool the adapters share.
type Client struct {
	rdb *redis.Client
}

// New dials Redis and pings it once. An unreachable server is a startup
// error.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
		ClientName: clientName,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb}, nil
}

// Ping backs the /api/health redis check.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close releases the pool. Call it after every adapter has stopped.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying exposes the driver to the adapters in this package and to
// tests that need raw commands.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
