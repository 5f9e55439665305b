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

func newTestCache(t *testing.T) (*AvailabilityCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	logger := zerolog.Nop()
	c := New(client, time.Minute, &logger)
	require.NotNil(t, c)
	return c, mr
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, ok := c.GetFreeSlots(ctx, "2026-09-01")
	assert.False(t, ok)

	c.SetFreeSlots(ctx, "2026-09-01", []string{"10:00", "10:30"})

	times, ok := c.GetFreeSlots(ctx, "2026-09-01")
	require.True(t, ok)
	assert.Equal(t, []string{"10:00", "10:30"}, times)
}

func TestCacheInvalidateDate(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	c.SetFreeSlots(ctx, "2026-09-01", []string{"10:00"})
	c.SetFreeSlots(ctx, "2026-09-02", []string{"11:00"})

	c.InvalidateDate(ctx, "2026-09-01")

	_, ok := c.GetFreeSlots(ctx, "2026-09-01")
	assert.False(t, ok)
	_, ok = c.GetFreeSlots(ctx, "2026-09-02")
	assert.True(t, ok, "other dates stay cached")
}

func TestCacheExpiry(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.SetFreeSlots(ctx, "2026-09-01", []string{"10:00"})
	mr.FastForward(2 * time.Minute)

	_, ok := c.GetFreeSlots(ctx, "2026-09-01")
	assert.False(t, ok)
}

func TestNilCacheIsSafe(t *testing.T) {
	var c *AvailabilityCache
	ctx := context.Background()

	_, ok := c.GetFreeSlots(ctx, "2026-09-01")
	assert.False(t, ok)
	c.SetFreeSlots(ctx, "2026-09-01", []string{"10:00"})
	c.InvalidateDate(ctx, "2026-09-01")
	assert.NoError(t, c.Ping(ctx))

	logger := zerolog.Nop()
	assert.Nil(t, New(nil, time.Minute, &logger))
}
