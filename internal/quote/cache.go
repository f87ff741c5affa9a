package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/fund-tracker/internal/models"
)

// NavCache is a fast lookaside cache for resolved (fund, date) NAVs.
type NavCache interface {
	Get(ctx context.Context, code string, date time.Time) (*models.NavQuote, error)
	Set(ctx context.Context, q *models.NavQuote) error
}

// RedisNavCache stores resolved NAVs in Redis. Published NAVs never
// change once out, so a long TTL is safe; it exists only to bound key
// growth.
type RedisNavCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisNavCache creates a Redis-backed NAV cache
func NewRedisNavCache(addr string, ttl time.Duration) *RedisNavCache {
	return &RedisNavCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func navKey(code string, date time.Time) string {
	return fmt.Sprintf("nav:%s:%s", code, date.Format("2006-01-02"))
}

// Get returns the cached NAV or models.ErrNotFound on a miss
func (c *RedisNavCache) Get(ctx context.Context, code string, date time.Time) (*models.NavQuote, error) {
	data, err := c.client.Get(ctx, navKey(code, date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read nav cache: %w", err)
	}

	var q models.NavQuote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, fmt.Errorf("failed to decode cached nav: %w", err)
	}
	return &q, nil
}

// Set stores a resolved NAV
func (c *RedisNavCache) Set(ctx context.Context, q *models.NavQuote) error {
	data, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to encode nav for cache: %w", err)
	}
	if err := c.client.Set(ctx, navKey(q.FundCode, q.Date), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write nav cache: %w", err)
	}
	return nil
}

// Close releases the Redis connection
func (c *RedisNavCache) Close() error {
	return c.client.Close()
}
