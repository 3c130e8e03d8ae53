package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testKey struct {
	Op string
	ID uint
}

func (k testKey) CacheKey() string {
	return fmt.Sprintf("%s:%d", k.Op, k.ID)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryCacheExpiresAtTTL(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache[testKey, []uint](time.Minute, 0).WithClock(clock.Now)

	key := testKey{Op: "list", ID: 1}
	require.NoError(t, c.Set(ctx, key, []uint{1, 2}))

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []uint{1, 2}, got)

	clock.Advance(59 * time.Second)
	_, ok, _ = c.Get(ctx, key)
	require.True(t, ok, "entry should still be valid before ttl")

	clock.Advance(time.Second)
	_, ok, _ = c.Get(ctx, key)
	require.False(t, ok, "entry must be invalid once now-inserted == ttl")
	require.Equal(t, 0, c.Len())
}

func TestMemoryCacheReplaceResetsInsertionTime(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewMemoryCache[testKey, string](10*time.Second, 0).WithClock(clock.Now)
	key := testKey{Op: "stats", ID: 3}

	require.NoError(t, c.Set(ctx, key, "a"))
	clock.Advance(8 * time.Second)
	require.NoError(t, c.Set(ctx, key, "b"))
	clock.Advance(8 * time.Second)

	got, ok, err := c.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "b", got)
}

func TestMemoryCacheEvictsOldestWhenFull(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewMemoryCache[testKey, int](time.Hour, 2).WithClock(clock.Now)

	require.NoError(t, c.Set(ctx, testKey{Op: "k", ID: 1}, 1))
	clock.Advance(time.Second)
	require.NoError(t, c.Set(ctx, testKey{Op: "k", ID: 2}, 2))
	clock.Advance(time.Second)
	require.NoError(t, c.Set(ctx, testKey{Op: "k", ID: 3}, 3))

	require.Equal(t, 2, c.Len())
	_, ok, _ := c.Get(ctx, testKey{Op: "k", ID: 1})
	require.False(t, ok, "oldest entry should be evicted")
	_, ok, _ = c.Get(ctx, testKey{Op: "k", ID: 3})
	require.True(t, ok)
}

func TestMemoryCachePurgeAndDelete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache[testKey, int](time.Hour, 0)
	require.NoError(t, c.Set(ctx, testKey{Op: "a"}, 1))
	require.NoError(t, c.Set(ctx, testKey{Op: "b"}, 2))

	require.NoError(t, c.Delete(ctx, testKey{Op: "a"}))
	_, ok, _ := c.Get(ctx, testKey{Op: "a"})
	require.False(t, ok)

	require.NoError(t, c.Purge(ctx))
	require.Equal(t, 0, c.Len())
}

func TestMemoryCacheSetIfGenerationSkipsAfterPurge(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache[testKey, []uint](time.Hour, 0)
	key := testKey{Op: "list", ID: 1}

	gen, err := c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Purge(ctx))

	stored, err := c.SetIfGeneration(ctx, key, []uint{1}, gen)
	require.NoError(t, err)
	require.False(t, stored, "value read before a purge must not be cached")
	_, ok, _ := c.Get(ctx, key)
	require.False(t, ok)

	gen, err = c.Generation(ctx)
	require.NoError(t, err)
	stored, err = c.SetIfGeneration(ctx, key, []uint{2}, gen)
	require.NoError(t, err)
	require.True(t, stored)
	got, ok, _ := c.Get(ctx, key)
	require.True(t, ok)
	require.Equal(t, []uint{2}, got)
}

func TestMemoryCacheZeroTTLNeverHits(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache[testKey, int](0, 0)
	require.NoError(t, c.Set(ctx, testKey{Op: "a"}, 1))
	_, ok, err := c.Get(ctx, testKey{Op: "a"})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache[testKey, int](time.Minute, 16)
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := testKey{Op: "c", ID: uint(n % 8)}
			_ = c.Set(ctx, key, n)
			_, _, _ = c.Get(ctx, key)
			if n%10 == 0 {
				_ = c.Purge(ctx)
			}
		}(i)
	}
	wg.Wait()
	require.LessOrEqual(t, c.Len(), 16)
}
