package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gokatarajesh/trivia-night/internal/domain"
)

// ReleaseEvent is published when a new standing is released.
type ReleaseEvent struct {
	Timestamp time.Time `json:"ts"`
}

// CacheOptions configures the Redis keys.
type CacheOptions struct {
	Key     string
	Channel string
}

// Cache keeps the latest published standing in Redis and announces releases
// over Pub/Sub.
type Cache struct {
	redis   *redis.Client
	key     string
	channel string
}

// NewCache creates a standing cache.
func NewCache(client *redis.Client, opts CacheOptions) *Cache {
	if opts.Key == "" {
		opts.Key = "standing:published"
	}
	if opts.Channel == "" {
		opts.Channel = "standing:release"
	}
	return &Cache{redis: client, key: opts.Key, channel: opts.Channel}
}

// Channel is the Pub/Sub channel release events go to.
func (c *Cache) Channel() string {
	return c.channel
}

// Store writes the snapshot and publishes its release in one transaction.
func (c *Cache) Store(ctx context.Context, p domain.PublishedStanding) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	evt, err := json.Marshal(ReleaseEvent{Timestamp: p.Timestamp})
	if err != nil {
		return err
	}

	pipe := c.redis.TxPipeline()
	pipe.Set(ctx, c.key, raw, 0)
	pipe.Publish(ctx, c.channel, evt)
	_, err = pipe.Exec(ctx)
	return err
}

// Load returns the cached snapshot, or nil if none is cached.
func (c *Cache) Load(ctx context.Context) (*domain.PublishedStanding, error) {
	raw, err := c.redis.Get(ctx, c.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p domain.PublishedStanding
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
