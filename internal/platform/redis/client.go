// Package redis opens the connection used by the distributed person lock.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"quorum/internal/platform/config"
)

// Client is the shared go-redis client. It satisfies redis.UniversalClient,
// which is what personlock.NewRedis takes.
type Client struct {
	*goredis.Client
}

// New dials Redis and pings it once. It returns (nil, nil) when cfg has no
// URL so callers can fall back to the in-process lock.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse QUORUM_REDIS_URL: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	c := &Client{Client: goredis.NewClient(opts)}
	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("connect redis at %s: %w", opts.Addr, err)
	}
	return c, nil
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
