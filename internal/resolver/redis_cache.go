package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/weiawesome/tt-live-music-player/internal/config"
)

// notFoundMarker is stored in place of a result for cached misses.
const notFoundMarker = "-"

type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(cfg config.CacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisCache{
		client: client,
		prefix: cfg.Prefix,
	}, nil
}

func (c *RedisCache) key(key string) string {
	return c.prefix + ":" + key
}

func (c *RedisCache) Get(ctx context.Context, key string) (Media, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Media{}, ErrCacheMiss
		}
		return Media{}, fmt.Errorf("failed to get from redis: %w", err)
	}
	if string(data) == notFoundMarker {
		return Media{}, ErrNotFound
	}

	var media Media
	if err := json.Unmarshal(data, &media); err != nil {
		return Media{}, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}
	return media, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, media Media, ttl time.Duration) error {
	data, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	if err := c.client.Set(ctx, c.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisCache) SetNotFound(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), notFoundMarker, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
