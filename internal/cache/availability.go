package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// AvailabilityCache keeps per-date free-slot listings in Redis so the
// busiest read path (clients browsing the calendar) stays off SQLite.
// Every mutating calendar or booking operation must invalidate the date.
// A nil *AvailabilityCache is valid and disables caching.
type AvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zerolog.Logger
}

func New(client *redis.Client, ttl time.Duration, logger *zerolog.Logger) *AvailabilityCache {
	if client == nil || ttl <= 0 {
		return nil
	}
	return &AvailabilityCache{client: client, ttl: ttl, logger: logger}
}

func slotsKey(date string) string {
	return "nailsbot:free_slots:" + date
}

// GetFreeSlots returns the cached free-slot times for a date. ok is false
// on miss, on any Redis error, and on a nil cache.
func (c *AvailabilityCache) GetFreeSlots(ctx context.Context, date string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	val, err := c.client.Get(ctx, slotsKey(date)).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("date", date).Msg("Cache read failed")
		return nil, false
	}
	var times []string
	if err := json.Unmarshal([]byte(val), &times); err != nil {
		return nil, false
	}
	return times, true
}

// SetFreeSlots stores the free-slot times for a date.
func (c *AvailabilityCache) SetFreeSlots(ctx context.Context, date string, times []string) {
	if c == nil {
		return
	}
	data, err := json.Marshal(times)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, slotsKey(date), data, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("date", date).Msg("Cache write failed")
	}
}

// InvalidateDate drops the cached listing for a date after any mutation
// touching its slots.
func (c *AvailabilityCache) InvalidateDate(ctx context.Context, date string) {
	if c == nil {
		return
	}
	if err := c.client.Del(ctx, slotsKey(date)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("date", date).Msg("Cache invalidation failed")
	}
}

// Ping checks the Redis connection for readiness probes.
func (c *AvailabilityCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
