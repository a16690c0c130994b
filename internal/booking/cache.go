package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ScheduleCache keeps rendered schedules in Redis. It is strictly a read
// accelerator: every aggregate mutation invalidates the key, and any cache
// failure degrades to a repository read.
type ScheduleCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewScheduleCache instantiates the cache helper.
func NewScheduleCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *ScheduleCache {
	return &ScheduleCache{client: client, ttl: ttl, logger: logger}
}

func scheduleKey(bookingID string) string {
	return fmt.Sprintf("booking:%s:schedule", bookingID)
}

// GetSchedule returns the cached schedule and whether it was present.
func (c *ScheduleCache) GetSchedule(ctx context.Context, bookingID string) ([]RentScheduleEntry, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, scheduleKey(bookingID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warn("schedule cache get", bookingID, err)
		}
		return nil, false
	}
	var entries []RentScheduleEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		c.warn("schedule cache decode", bookingID, err)
		return nil, false
	}
	return entries, true
}

// SetSchedule stores the schedule with the configured TTL.
func (c *ScheduleCache) SetSchedule(ctx context.Context, bookingID string, entries []RentScheduleEntry) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		c.warn("schedule cache encode", bookingID, err)
		return
	}
	if err := c.client.Set(ctx, scheduleKey(bookingID), raw, c.ttl).Err(); err != nil {
		c.warn("schedule cache set", bookingID, err)
	}
}

// Invalidate drops the cached schedule after a mutation.
func (c *ScheduleCache) Invalidate(ctx context.Context, bookingID string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, scheduleKey(bookingID)).Err(); err != nil {
		c.warn("schedule cache invalidate", bookingID, err)
	}
}

func (c *ScheduleCache) warn(msg, bookingID string, err error) {
	if c.logger != nil {
		c.logger.Warn(msg, slog.String("booking_id", bookingID), slog.Any("error", err))
	}
}
