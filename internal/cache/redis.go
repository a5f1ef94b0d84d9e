// Package cache implements the position/account snapshot cache on Redis.
// Every write is a full snapshot with a fresh TTL; a missing key is a hard
// signal to downstream consumers that the bridge stopped writing.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tqbridge/internal/core"
	"tqbridge/internal/model"
	"tqbridge/pkg/retry"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements core.IPositionCache over one Redis connection pool.
type RedisCache struct {
	client *redis.Client
	logger core.ILogger
}

// New connects to Redis and verifies the connection with a ping. The ping is
// retried briefly because cache and bridge often start together.
func New(ctx context.Context, addr, password string, db int, logger core.ILogger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	err := retry.Do(ctx, retry.DefaultPolicy, func(error) bool { return true }, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisCache{
		client: client,
		logger: logger.WithField("component", "redis_cache"),
	}, nil
}

// SetPosition writes a full position snapshot with the given TTL.
func (c *RedisCache) SetPosition(ctx context.Context, portfolioID, symbol string, pos model.FullPosition, ttl time.Duration) error {
	key := core.PositionKey(portfolioID, symbol)
	if err := c.client.SetEx(ctx, key, pos, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write position %s: %w", key, err)
	}
	return nil
}

// GetPosition reads a position snapshot. A missing key returns (nil, nil).
func (c *RedisCache) GetPosition(ctx context.Context, portfolioID, symbol string) (*model.FullPosition, error) {
	key := core.PositionKey(portfolioID, symbol)
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read position %s: %w", key, err)
	}
	var pos model.FullPosition
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, fmt.Errorf("failed to decode position %s: %w", key, err)
	}
	return &pos, nil
}

// RefreshPosition extends the TTL of an existing snapshot without rewriting
// it. Returns false if the key does not exist.
func (c *RedisCache) RefreshPosition(ctx context.Context, portfolioID, symbol string, ttl time.Duration) (bool, error) {
	key := core.PositionKey(portfolioID, symbol)
	ok, err := c.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to refresh position %s: %w", key, err)
	}
	return ok, nil
}

// SetAccount writes the account snapshot with the given TTL.
func (c *RedisCache) SetAccount(ctx context.Context, portfolioID string, acc model.Account, ttl time.Duration) error {
	key := core.AccountKey(portfolioID)
	if err := c.client.SetEx(ctx, key, acc, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write account %s: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
