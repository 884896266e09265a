package feed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 24 * time.Hour

// Cache keeps the last good rows of each source in Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) key(source string) string {
	sum := sha256.Sum256([]byte(source))
	return "feed:rows:" + hex.EncodeToString(sum[:8])
}

// Get returns nil, nil when nothing is cached.
func (c *Cache) Get(ctx context.Context, source string) ([]Row, error) {
	data, err := c.client.Get(ctx, c.key(source)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Cache) Set(ctx context.Context, source string, rows []Row) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(source), data, c.ttl).Err()
}
