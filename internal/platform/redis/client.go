package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"leasecover/internal/platform/config"
)

const clientName = "leasecover"

// Client is the shared connection used by the webhook deduper and the
// resolve rate limiter.
type Client struct {
	*redis.Client
}

// New dials and pings Redis. An empty URL means Redis is not configured and
// returns a nil client so callers fall back to in-process implementations.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return &Client{Client: client}, nil
}

// Options translates cfg into go-redis options. Zero-valued tuning fields
// keep the go-redis defaults.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.ClientName = clientName
	opts.MinIdleConns = cfg.MinIdleConns
	setIfPositive(&opts.PoolSize, cfg.PoolSize)
	setIfPositive(&opts.DialTimeout, cfg.DialTimeout)
	setIfPositive(&opts.ReadTimeout, cfg.ReadTimeout)
	setIfPositive(&opts.WriteTimeout, cfg.WriteTimeout)
	return opts, nil
}

func setIfPositive[T ~int | ~int64](dst *T, v T) {
	if v > 0 {
		*dst = v
	}
}

// Health pings the server; wired into readiness checks.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
