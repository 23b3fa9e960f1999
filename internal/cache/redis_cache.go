package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"skycafe/backend/internal/domain"
)

type RedisStatsCache struct {
	client *redis.Client
}

func NewRedisStatsCache(addr string, password string, db int) *RedisStatsCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisStatsCache{client: client}
}

func (c *RedisStatsCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisStatsCache) Close() error {
	return c.client.Close()
}

func (c *RedisStatsCache) Get(ctx context.Context, key string) (*domain.DashboardStats, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var stats domain.DashboardStats
	if err := json.Unmarshal([]byte(val), &stats); err != nil {
		return nil, false, err
	}
	return &stats, true, nil
}

func (c *RedisStatsCache) Set(ctx context.Context, key string, value *domain.DashboardStats, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
