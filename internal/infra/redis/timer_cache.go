package redis

import (
	"context"
	"errors"
	"time"

	"recruitment-portal/internal/domain"

	"github.com/redis/go-redis/v9"
)

// TimerCache keeps the last deadline read per timer kind so countdowns survive
// store outages. Keys: SET timer:last:{kind} {RFC3339 end time}. Entries never expire.
type TimerCache struct {
	client *redis.Client
}

func NewTimerCache(client *redis.Client) *TimerCache {
	return &TimerCache{client: client}
}

func (c *TimerCache) Remember(ctx context.Context, kind domain.TimerKind, endTime time.Time) error {
	return c.client.Set(ctx, timerKey(kind), endTime.UTC().Format(time.RFC3339Nano), 0).Err()
}

func (c *TimerCache) LastKnown(ctx context.Context, kind domain.TimerKind) (time.Time, bool, error) {
	raw, err := c.client.Get(ctx, timerKey(kind)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

func timerKey(kind domain.TimerKind) string {
	return "timer:last:" + string(kind)
}
