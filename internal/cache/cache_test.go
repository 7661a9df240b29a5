// SPDX-License-Identifier: MIT

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// go-redis redials a dead server in the background and only notices a
		// closed pool between one-second sleeps.
		goleak.IgnoreAnyFunction("github.com/redis/go-redis/v9/internal/pool.(*ConnPool).tryDial"),
	)
}

func newTestMemoryCache(t *testing.T, now *time.Time, opts ...MemoryOption) *memoryCache {
	t.Helper()
	c := NewMemoryCache(0, opts...).(*memoryCache)
	c.now = func() time.Time { return *now }
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestMemoryCache_GetSet(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()

	c.Set("session-1", 42, time.Minute)
	v, ok := c.Get("session-1")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestMemoryCache_Expiration(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newTestMemoryCache(t, &now)

	c.Set("k", "v", 10*time.Second)
	now = now.Add(10 * time.Second)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry is valid up to its expiration instant")

	now = now.Add(time.Nanosecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Minute)
	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	assert.Zero(t, c.Stats().CurrentSize)
}

func TestMemoryCache_Stats(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()

	c.Set("a", 1, time.Minute)
	c.Get("a")
	c.Get("a")
	c.Get("b")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestMemoryCache_DeleteExpiredCallsEvictFunc(t *testing.T) {
	now := time.Unix(1000, 0)
	var evicted []string
	c := newTestMemoryCache(t, &now, WithEvictFunc(func(key string, _ any) {
		evicted = append(evicted, key)
	}))

	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)
	now = now.Add(time.Minute)

	assert.Equal(t, 1, c.deleteExpired())
	assert.Equal(t, []string{"short"}, evicted)
	assert.Equal(t, int64(1), c.Stats().Evictions)
	assert.Equal(t, 1, c.Stats().CurrentSize)
}

func TestMemoryCache_Janitor(t *testing.T) {
	c := NewMemoryCache(5 * time.Millisecond)
	defer c.Close()

	c.Set("k", "v", time.Millisecond)
	assert.Eventually(t, func() bool {
		return c.Stats().CurrentSize == 0
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	c := NewMemoryCache(time.Millisecond)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestMemoryCache_ConcurrentAccess(t *testing.T) {
	c := NewMemoryCache(time.Millisecond)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			for j := 0; j < 100; j++ {
				c.Set(key, j, time.Millisecond)
				c.Get(key)
				c.Stats()
			}
		}(i)
	}
	wg.Wait()
}

func TestNoOpCache(t *testing.T) {
	c := NewNoOpCache()
	c.Set("k", "v", time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, CacheStats{}, c.Stats())
	assert.NoError(t, c.Close())
}
