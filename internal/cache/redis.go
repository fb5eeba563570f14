package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lexicon-cli/internal/config"
)

const redisKeyPrefix = "lexicon:"

// Redis is a Cache backed by a Redis server. Expiry uses native key TTLs.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects to the configured server and verifies it with a PING.
func NewRedis(ctx context.Context, cfg config.CacheConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrapf(err, "cache: redis ping %s", cfg.RedisAddr)
	}
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: redis get %s", key)
	}
	return data, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	err := r.rdb.Set(ctx, redisKeyPrefix+key, value, ttl).Err()
	return eris.Wrapf(err, "cache: redis set %s", key)
}

// Invalidate scans for matching keys and deletes them.
func (r *Redis) Invalidate(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		pattern = "*"
	}
	deleted := 0
	iter := r.rdb.Scan(ctx, 0, redisKeyPrefix+pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := r.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return deleted, eris.Wrapf(err, "cache: redis delete %s", iter.Val())
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return deleted, eris.Wrapf(err, "cache: redis scan %s", pattern)
	}
	return deleted, nil
}

// Sweep is a no-op; Redis expires keys itself.
func (r *Redis) Sweep(context.Context) int { return 0 }

func (r *Redis) Close() error {
	return r.rdb.Close()
}
