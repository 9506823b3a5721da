package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskmaster/gtd/internal/domain/entities"
	"github.com/taskmaster/gtd/internal/infrastructure/config"
	"github.com/taskmaster/gtd/internal/ports"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCache(client, ttl), mr
}

func sampleRows() []entities.TaskView {
	return []entities.TaskView{
		{ID: 11, Slug: "buy-milk-1a2b3c4d", Title: "Buy milk", Status: entities.CategorySubtask, Hashtags: []entities.Hashtag{}},
		{ID: 12, Slug: "call-bank-5e6f7a8b", Title: "Call bank", Status: entities.CategoryDone, Hashtags: []entities.Hashtag{}},
	}
}

// exerciseCache runs the same behavioural checks against any backend.
func exerciseCache(t *testing.T, c ports.SubtaskCache) {
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()

	_, ok, err := c.Get(ctx, 1, alice)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, 1, alice, sampleRows()))
	require.NoError(t, c.Set(ctx, 1, bob, sampleRows()[:1]))
	require.NoError(t, c.Set(ctx, 2, alice, sampleRows()))

	got, ok, err := c.Get(ctx, 1, alice)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "buy-milk-1a2b3c4d", got[0].Slug)
	assert.Equal(t, entities.CategoryDone, got[1].Status)

	got, ok, err = c.Get(ctx, 1, bob)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 1)

	require.NoError(t, c.Invalidate(ctx, 1))

	_, ok, err = c.Get(ctx, 1, alice)
	require.NoError(t, err)
	assert.False(t, ok, "alice's listing for parent 1 should be gone")

	_, ok, err = c.Get(ctx, 1, bob)
	require.NoError(t, err)
	assert.False(t, ok, "bob's listing for parent 1 should be gone")

	_, ok, err = c.Get(ctx, 2, alice)
	require.NoError(t, err)
	assert.True(t, ok, "other parents are untouched")
}

func TestRedisCache(t *testing.T) {
	c, _ := newRedisCache(t, time.Minute)
	exerciseCache(t, c)
}

func TestRedisCache_TTL(t *testing.T) {
	c, mr := newRedisCache(t, time.Minute)
	ctx := context.Background()
	user := uuid.New()

	require.NoError(t, c.Set(ctx, 7, user, sampleRows()))
	assert.Equal(t, time.Minute, mr.TTL(subtasksKey(7, user)))

	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, 7, user)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_InvalidateNoKeys(t *testing.T) {
	c, _ := newRedisCache(t, time.Minute)
	assert.NoError(t, c.Invalidate(context.Background(), 99))
}

func TestRedisCache_CorruptValue(t *testing.T) {
	c, mr := newRedisCache(t, time.Minute)
	user := uuid.New()

	require.NoError(t, mr.Set(subtasksKey(3, user), "not-json"))

	_, ok, err := c.Get(context.Background(), 3, user)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRedisCache_ServerDown(t *testing.T) {
	c, mr := newRedisCache(t, time.Minute)
	mr.Close()

	_, _, err := c.Get(context.Background(), 1, uuid.New())
	assert.Error(t, err)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	t.Cleanup(func() { _ = c.Close() })

	exerciseCache(t, c)
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	t.Cleanup(func() { _ = c.Close() })

	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	user := uuid.New()
	require.NoError(t, c.Set(ctx, 5, user, sampleRows()))
	require.NoError(t, c.Set(ctx, 6, user, sampleRows()))

	now = now.Add(30 * time.Second)
	_, ok, err := c.Get(ctx, 5, user)
	require.NoError(t, err)
	assert.True(t, ok)

	now = now.Add(time.Minute)
	_, ok, err = c.Get(ctx, 5, user)
	require.NoError(t, err)
	assert.False(t, ok)

	c.evictExpired()
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_ExpiredReadKeepsFreshWrite(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	user := uuid.New()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	require.NoError(t, c.Set(ctx, 5, user, sampleRows()))

	// The first clock read inside Get happens after the read lock is
	// released; a writer refreshes the entry right there.
	now = now.Add(2 * time.Minute)
	refreshed := false
	c.now = func() time.Time {
		if !refreshed {
			refreshed = true
			require.NoError(t, c.Set(ctx, 5, user, sampleRows()))
		}
		return now
	}

	_, ok, err := c.Get(ctx, 5, user)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = c.Get(ctx, 5, user)
	require.NoError(t, err)
	assert.True(t, ok, "refreshed entry must survive the stale read")
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	user := uuid.New()
	rows := sampleRows()
	require.NoError(t, c.Set(ctx, 1, user, rows))

	rows[0].Title = "mutated"

	got, ok, err := c.Get(ctx, 1, user)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Buy milk", got[0].Title)
}

func TestMemoryCache_CloseIsIdempotent(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}

func TestNew_Memory(t *testing.T) {
	c, closeFn, err := New(context.Background(), config.CacheConfig{Driver: "memory", SubtasksTTL: time.Minute}, config.RedisConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	_, ok := c.(*MemoryCache)
	assert.True(t, ok)
}

func TestNew_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	c, closeFn, err := New(context.Background(),
		config.CacheConfig{Driver: "redis", SubtasksTTL: time.Minute},
		config.RedisConfig{Host: mr.Host(), Port: port})
	require.NoError(t, err)
	t.Cleanup(func() { _ = closeFn() })

	_, ok := c.(*RedisCache)
	assert.True(t, ok)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, _, err := New(context.Background(), config.CacheConfig{Driver: "memcached"}, config.RedisConfig{})
	assert.Error(t, err)
}
