// Package cache implements short-lived key/value caching on Redis.
package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/extraweb/internal/domain/stats"
)

// Redis is a byte cache backed by a Redis client.
type Redis struct {
	rdb redis.UniversalClient
}

var _ stats.Cache = (*Redis)(nil)

// New wraps an existing client.
func New(rdb redis.UniversalClient) *Redis {
	return &Redis{rdb: rdb}
}

// Open parses a redis:// URL, connects and pings the server.
func Open(ctx context.Context, url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return &Redis{rdb: rdb}, nil
}

// Get returns the value at key, or stats.ErrCacheMiss.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, stats.ErrCacheMiss
		}
		return nil, errors.Wrapf(err, "get %s", key)
	}
	return b, nil
}

func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "set %s", key)
	}
	return nil
}

func (c *Redis) Delete(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "delete %s", key)
	}
	return nil
}

// Ping checks connectivity.
func (c *Redis) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close releases the client.
func (c *Redis) Close() error {
	return c.rdb.Close()
}
