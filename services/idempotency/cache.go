package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "bcc:idem:"

// RecordCache maps idempotency keys to record ids ahead of the database.
type RecordCache interface {
	Get(ctx context.Context, key string) (string, error)
	SetNX(ctx context.Context, key, recordID string, ttl time.Duration) (bool, error)
}

type redisCache struct {
	rdb *redis.Client
}

func NewRedisCache(rdb *redis.Client) RecordCache {
	return &redisCache{rdb: rdb}
}

func (c *redisCache) Get(ctx context.Context, key string) (string, error) {
	recordID, err := c.rdb.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("idempotency GET: %w", err)
	}
	return recordID, nil
}

// SetNX keeps the first writer, same as the unique index does.
func (c *redisCache) SetNX(ctx context.Context, key, recordID string, ttl time.Duration) (bool, error) {
	set, err := c.rdb.SetNX(ctx, keyPrefix+key, recordID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency SETNX: %w", err)
	}
	return set, nil
}

type noopCache struct{}

func (noopCache) Get(context.Context, string) (string, error) {
	return "", nil
}

func (noopCache) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, nil
}
