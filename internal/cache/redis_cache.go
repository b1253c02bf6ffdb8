package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"tokopos/backend/internal/domain"
)

const generationKey = "search:gen"

// RedisSearchCache keys entries by a generation counter plus the
// query. Invalidation bumps the counter; stale entries fall out on
// their TTL without a scan.
type RedisSearchCache struct {
	client *redis.Client
}

func NewRedisSearchCache(addr string, password string, db int) *RedisSearchCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSearchCache{client: client}
}

func (c *RedisSearchCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSearchCache) Close() error {
	return c.client.Close()
}

func (c *RedisSearchCache) Get(ctx context.Context, query string) ([]domain.Product, bool, error) {
	key, err := c.key(ctx, query)
	if err != nil {
		return nil, false, err
	}
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var products []domain.Product
	if err := json.Unmarshal([]byte(val), &products); err != nil {
		return nil, false, err
	}
	return products, true, nil
}

func (c *RedisSearchCache) Set(ctx context.Context, query string, products []domain.Product, ttl time.Duration) error {
	key, err := c.key(ctx, query)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(products)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisSearchCache) Invalidate(ctx context.Context) error {
	return c.client.Incr(ctx, generationKey).Err()
}

func (c *RedisSearchCache) key(ctx context.Context, query string) (string, error) {
	gen, err := c.client.Get(ctx, generationKey).Result()
	if err == redis.Nil {
		gen = "0"
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("search:%s:%s", gen, query), nil
}
