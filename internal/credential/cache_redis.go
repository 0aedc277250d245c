package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "patientfront:credential:"

// RedisCache stores credentials in redis so that several front-end
// processes share the same slots. Entries expire after ttl; a zero ttl keeps
// them until overwritten.
type RedisCache struct {
	client *redis.Client
	scope  Scope
	ttl    time.Duration
}

// NewRedisCache wraps an existing redis client.
func NewRedisCache(client *redis.Client, scope Scope, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, scope: scope, ttl: ttl}
}

// OpenRedis parses a redis:// URL and verifies the server is reachable.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (r *RedisCache) key(id Identity) string {
	return redisKeyPrefix + r.scope.Key(id)
}

func (r *RedisCache) Get(ctx context.Context, id Identity) (Credential, error) {
	val, err := r.client.Get(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get credential: %w", err)
	}
	return Credential(val), nil
}

func (r *RedisCache) Set(ctx context.Context, id Identity, c Credential) error {
	if err := r.client.Set(ctx, r.key(id), string(c), r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set credential: %w", err)
	}
	return nil
}
