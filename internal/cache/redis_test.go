// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := newRedisCache(client, "", zerolog.Nop())
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCache_SetGetBytes(t *testing.T) {
	mr, c := setupMiniRedis(t)

	c.Set("stats", []byte(`{"validated":3}`), time.Minute)

	v, ok := c.Get("stats")
	require.True(t, ok)
	assert.Equal(t, []byte(`{"validated":3}`), v)

	raw, err := mr.Get(DefaultRedisPrefix + "stats")
	require.NoError(t, err)
	assert.Equal(t, `{"validated":3}`, raw)
}

func TestRedisCache_EncodesOtherValuesAsJSON(t *testing.T) {
	_, c := setupMiniRedis(t)

	c.Set("counts", map[string]int{"ready": 2}, time.Minute)
	v, ok := c.Get("counts")
	require.True(t, ok)
	assert.JSONEq(t, `{"ready":2}`, string(v.([]byte)))
}

func TestRedisCache_GetMissing(t *testing.T) {
	_, c := setupMiniRedis(t)

	v, ok := c.Get("nonexistent")
	assert.False(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, int64(1), c.Stats().Misses)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, c := setupMiniRedis(t)

	c.Set("k", "v", 10*time.Second)
	mr.FastForward(11 * time.Second)

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestRedisCache_DeleteAndClearKeepForeignKeys(t *testing.T) {
	mr, c := setupMiniRedis(t)
	require.NoError(t, mr.Set("other:key", "keep"))

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Delete("a")
	assert.False(t, mr.Exists(DefaultRedisPrefix+"a"))

	c.Clear()
	assert.False(t, mr.Exists(DefaultRedisPrefix+"b"))
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisCache_Stats(t *testing.T) {
	mr, c := setupMiniRedis(t)
	require.NoError(t, mr.Set("other:key", "x"))

	c.Set("a", "1", time.Minute)
	c.Set("b", "2", time.Minute)
	c.Get("a")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Sets)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 2, stats.CurrentSize)
}

func TestRedisCache_HealthCheck(t *testing.T) {
	mr, c := setupMiniRedis(t)
	require.NoError(t, c.HealthCheck(context.Background()))

	mr.Close()
	for i := 0; i < 3; i++ {
		assert.Error(t, c.HealthCheck(context.Background()))
	}
	require.NoError(t, c.Close())
}

func TestNewRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(context.Background(), RedisConfig{Addr: mr.Addr(), Prefix: "test:"}, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	c.Set("k", "v", time.Minute)
	assert.True(t, mr.Exists("test:k"))
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(context.Background(), RedisConfig{Addr: addr}, zerolog.Nop())
	assert.ErrorContains(t, err, "redis connection failed")
}
