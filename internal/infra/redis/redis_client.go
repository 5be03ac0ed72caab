package redis

import (
	"context"

	"telegram-channel-subscription/internal/config"

	"github.com/go-redis/redis/v8"
)

// redClient wraps the go-redis client so the rest of the module constructs
// it from config in one place. The sweep lease in lock.go is its only
// consumer.
type redClient struct {
	cli *redis.Client
}

func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redClient, error) {
	opts := &redis.Options{
		Addr:     cfg.URL,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	c := redis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &redClient{cli: c}, nil
}

func (c *redClient) Close() error { return c.cli.Close() }
