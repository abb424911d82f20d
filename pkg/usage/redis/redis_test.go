package redis

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestCache connects to the Redis instance named by
// DITTODRIVE_REDIS_TEST_ADDR (host:port), skipping when unset.
func newTestCache(t *testing.T) *RedisCache {
	t.Helper()

	addr := os.Getenv("DITTODRIVE_REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("DITTODRIVE_REDIS_TEST_ADDR not set, skipping Redis tests")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cache, err := NewRedisCache(ctx, RedisCacheConfig{
		URL:       "redis://" + addr + "/0",
		KeyPrefix: fmt.Sprintf("dittodrive-test:%d:", time.Now().UnixNano()),
		TTL:       time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestRedisCache(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, gen, ok, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, gen)

	require.NoError(t, cache.Set(ctx, "u1", 1<<40, gen))
	used, _, ok, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1<<40), used)

	require.NoError(t, cache.Invalidate(ctx, "u1"))
	_, gen, ok, err = cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), gen)
}

func TestRedisCacheDropsStaleSet(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, gen, _, err := cache.Get(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(ctx, "u1"))
	require.NoError(t, cache.Set(ctx, "u1", 99, gen))

	_, current, ok, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "a total read before the invalidation is not stored")

	require.NoError(t, cache.Set(ctx, "u1", 100, current))
	used, _, ok, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(100), used)
}

func TestRedisCacheExpiry(t *testing.T) {
	cache := newTestCache(t)
	cache.ttl = time.Second
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "u1", 7, 0))
	assert.Eventually(t, func() bool {
		_, _, ok, err := cache.Get(ctx, "u1")
		return err == nil && !ok
	}, 5*time.Second, 100*time.Millisecond)
}

func TestNewRedisCacheValidation(t *testing.T) {
	ctx := context.Background()

	_, err := NewRedisCache(ctx, RedisCacheConfig{})
	assert.Error(t, err)

	_, err = NewRedisCache(ctx, RedisCacheConfig{URL: "http://not-redis"})
	assert.ErrorContains(t, err, "invalid url")
}
