package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const indexKey = "respcache:index"

// RedisCache is the distributed implementation. Per-entry TTL is
// delegated to Redis; the FIFO capacity bound is kept through an
// insertion-order index list trimmed on write.
type RedisCache struct {
	client   *redis.Client
	capacity int64
	ttl      time.Duration
}

func NewRedisCache(redisURL string, capacity int, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	if capacity <= 0 {
		capacity = 100
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	return &RedisCache{
		client:   client,
		capacity: int64(capacity),
		ttl:      ttl,
	}, nil
}

func (c *RedisCache) entryKey(fingerprint string) string {
	return "respcache:" + fingerprint
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*Entry, bool) {
	data, err := c.client.Get(ctx, c.entryKey(fingerprint)).Bytes()
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	return &entry, true
}

func (c *RedisCache) Put(ctx context.Context, fingerprint string, entry Entry) error {
	key := c.entryKey(fingerprint)

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	// First write wins; a concurrent duplicate is simply dropped.
	set, err := c.client.SetNX(ctx, key, data, c.ttl).Result()
	if err != nil || !set {
		return err
	}

	if err := c.client.LPush(ctx, indexKey, fingerprint).Err(); err != nil {
		return err
	}

	for {
		length, err := c.client.LLen(ctx, indexKey).Result()
		if err != nil || length <= c.capacity {
			return err
		}
		oldest, err := c.client.RPop(ctx, indexKey).Result()
		if err != nil {
			return err
		}
		c.client.Del(ctx, c.entryKey(oldest))
	}
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
