// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRedisPrefix namespaces every key this service writes.
const DefaultRedisPrefix = "joscan:"

const (
	redisOpTimeout   = 2 * time.Second
	redisScanTimeout = 5 * time.Second
	redisScanBatch   = 100
)

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string // host:port
	Password string
	DB       int
	Prefix   string // defaults to DefaultRedisPrefix
}

// RedisCache is a Cache shared by every joscan instance pointing at the
// same server. Values go out as bytes ([]byte and string verbatim, anything
// else as JSON) and Get always hands back []byte.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger zerolog.Logger

	hits, misses, sets atomic.Int64
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, cfg RedisConfig, logger zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	logger.Info().Str("addr", cfg.Addr).Int("db", cfg.DB).Msg("connected to Redis cache")
	return newRedisCache(client, cfg.Prefix, logger), nil
}

func newRedisCache(client *redis.Client, prefix string, logger zerolog.Logger) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisCache{client: client, prefix: prefix, logger: logger}
}

// opCtx bounds a single cache call; the Cache interface has no context.
func opCtx(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

func (c *RedisCache) warn(err error, op, key string) {
	c.logger.Warn().Err(err).Str("op", op).Str("key", key).Msg("redis cache operation failed")
}

func encodeValue(v any) ([]byte, error) {
	switch v := v.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return json.Marshal(v)
}

// eachKey calls fn for every key under the prefix.
func (c *RedisCache) eachKey(ctx context.Context, fn func(key string)) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", redisScanBatch).Iterator()
	for iter.Next(ctx) {
		fn(iter.Val())
	}
	return iter.Err()
}

func (c *RedisCache) Get(key string) (any, bool) {
	ctx, cancel := opCtx(redisOpTimeout)
	defer cancel()

	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn(err, "get", key)
		}
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return val, true
}

func (c *RedisCache) Set(key string, value any, ttl time.Duration) {
	data, err := encodeValue(value)
	if err != nil {
		c.warn(err, "encode", key)
		return
	}
	ctx, cancel := opCtx(redisOpTimeout)
	defer cancel()
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		c.warn(err, "set", key)
		return
	}
	c.sets.Add(1)
}

func (c *RedisCache) Delete(key string) {
	ctx, cancel := opCtx(redisOpTimeout)
	defer cancel()
	if err := c.client.Del(ctx, c.prefix+key).Err(); err != nil {
		c.warn(err, "delete", key)
	}
}

// Clear removes every key under the prefix in one pipeline. Other keys in
// the database are left alone.
func (c *RedisCache) Clear() {
	ctx, cancel := opCtx(redisScanTimeout)
	defer cancel()

	pipe := c.client.Pipeline()
	if err := c.eachKey(ctx, func(k string) { pipe.Del(ctx, k) }); err != nil {
		c.warn(err, "scan", c.prefix+"*")
	}
	if pipe.Len() == 0 {
		return
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.warn(err, "clear", c.prefix+"*")
	}
}

// Stats counts keys under the prefix with a SCAN, so it is not cheap.
func (c *RedisCache) Stats() CacheStats {
	ctx, cancel := opCtx(redisScanTimeout)
	defer cancel()

	size := 0
	if err := c.eachKey(ctx, func(string) { size++ }); err != nil {
		c.warn(err, "scan", c.prefix+"*")
	}
	return CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		CurrentSize: size,
	}
}

func (c *RedisCache) Close() error { return c.client.Close() }

// HealthCheck pings the server.
func (c *RedisCache) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
