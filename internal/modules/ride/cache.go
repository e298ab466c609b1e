// README: Redis-backed cache for public tracking lookups.
package ride

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const trackKeyPrefix = "track:"

// TrackCache caches TrackViews keyed by ticket code. Riders poll the
// tracking page, so a short TTL takes most of that read load off the
// rides table; every ride mutation invalidates the entry.
type TrackCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewTrackCache(client *redis.Client, ttl time.Duration) *TrackCache {
	return &TrackCache{redis: client, ttl: ttl}
}

func (c *TrackCache) Get(ctx context.Context, ticket string) (*TrackView, error) {
	val, err := c.redis.Get(ctx, trackKeyPrefix+ticket).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var view TrackView
	if err := json.Unmarshal([]byte(val), &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (c *TrackCache) Set(ctx context.Context, view *TrackView) error {
	b, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, trackKeyPrefix+view.TicketCode, b, c.ttl).Err()
}

func (c *TrackCache) Invalidate(ctx context.Context, ticket string) error {
	return c.redis.Del(ctx, trackKeyPrefix+ticket).Err()
}
