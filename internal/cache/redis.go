package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"vidgate/internal/config"
	"vidgate/internal/observability"
)

const redisKeyPrefix = "vidgate:result:"

// Redis is the Redis-backed cache backend. Backend errors are logged
// and reported as misses; a download never fails because the cache is
// down.
type Redis struct {
	log     *slog.Logger
	metrics *observability.Metrics
	exists  existsFn
	rdb     *redis.Client
}

// NewRedis creates a Redis-backed result cache.
func NewRedis(log *slog.Logger, cfg *config.Config, metrics *observability.Metrics, opts ...RedisOption) *Redis {
	r := &Redis{
		log:     log.With(slog.String("package", "cache"), slog.String("backend", "redis")),
		metrics: metrics,
		exists:  defaultExists,
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		}),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RedisOption tweaks a Redis cache.
type RedisOption func(*Redis)

// WithRedisExists substitutes the file-existence check.
func WithRedisExists(fn func(path string) bool) RedisOption {
	return func(r *Redis) {
		r.exists = fn
	}
}

// WithClient substitutes the Redis client, for tests against miniature
// or mocked servers.
func WithClient(client *redis.Client) RedisOption {
	return func(r *Redis) {
		r.rdb = client
	}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	path, err := r.rdb.Get(ctx, redisKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		r.metrics.RecordCacheMiss()

		return "", false
	}
	if err != nil {
		r.metrics.RecordCacheMiss()
		r.log.WarnContext(ctx, "cache backend unavailable, treating as miss", slog.Any("error", err))

		return "", false
	}

	if !r.exists(path) {
		r.Delete(ctx, key)
		r.metrics.RecordCacheMiss()
		r.log.DebugContext(ctx, "stale cache entry dropped", slog.String("key", key), slog.String("path", path))

		return "", false
	}

	r.metrics.RecordCacheHit()

	return path, true
}

func (r *Redis) Put(ctx context.Context, key, path string, ttl time.Duration) {
	if err := r.rdb.Set(ctx, redisKeyPrefix+key, path, ttl).Err(); err != nil {
		r.log.WarnContext(ctx, "cache put failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (r *Redis) Delete(ctx context.Context, key string) {
	if err := r.rdb.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		r.log.WarnContext(ctx, "cache delete failed", slog.String("key", key), slog.Any("error", err))
	}
}
