package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(time.Minute)
	cache.now = func() time.Time { return now }

	_, gen, ok, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "u1", 42, gen))
	used, _, ok, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), used)

	now = now.Add(time.Minute)
	_, _, ok, err = cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok, "entry expires after the ttl")
	assert.Zero(t, cache.Len())

	require.NoError(t, cache.Set(ctx, "u1", 1, gen))
	require.NoError(t, cache.Invalidate(ctx, "u1"))
	_, _, ok, _ = cache.Get(ctx, "u1")
	assert.False(t, ok)
}

func TestMemoryCacheGeneration(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache(time.Minute)

	_, gen, _, err := cache.Get(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, cache.Invalidate(ctx, "u1"))
	require.NoError(t, cache.Set(ctx, "u1", 99, gen))
	_, current, ok, _ := cache.Get(ctx, "u1")
	assert.False(t, ok, "a total read before the invalidation is not stored")
	assert.Equal(t, gen+1, current)

	require.NoError(t, cache.Set(ctx, "u1", 100, current))
	used, _, ok, _ := cache.Get(ctx, "u1")
	assert.True(t, ok)
	assert.Equal(t, int64(100), used)

	_, other, _, _ := cache.Get(ctx, "u2")
	assert.Zero(t, other, "generations are per owner")
}

func TestMemoryCacheSweep(t *testing.T) {
	ctx := context.Background()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache(time.Minute)
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(ctx, "old", 1, 0))
	now = now.Add(45 * time.Second)
	require.NoError(t, cache.Set(ctx, "fresh", 2, 0))
	now = now.Add(30 * time.Second)

	assert.Equal(t, 1, cache.Sweep())
	assert.Equal(t, 1, cache.Len())

	require.NoError(t, cache.Close())
	assert.Zero(t, cache.Len())
}

func TestNoopCache(t *testing.T) {
	ctx := context.Background()
	cache := NewNoopCache()

	require.NoError(t, cache.Set(ctx, "u1", 5, 0))
	_, _, ok, err := cache.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, 30*time.Second, NewMemoryCache(0).ttl)
}
