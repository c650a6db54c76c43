// Package redis provides the optional client backing the canonical-resolution
// cache. The service runs fine without it; the graph falls back to walking
// merge chains in the store.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"trapper/internal/platform/config"
)

// Client embeds the go-redis client so callers get the full command surface.
type Client struct {
	*redis.Client
}

// New connects using the configured URL, or returns (nil, nil) when no URL
// is set so callers can treat the cache as absent.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports whether the connection is usable.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}
