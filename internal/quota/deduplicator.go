package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduplicator suppresses repeated alerts for the same provider and
// level, across instances when backed by Redis.
type Deduplicator interface {
	// ShouldAlert returns true exactly once per (provider, level) until
	// Clear is called or the backing entry expires.
	ShouldAlert(ctx context.Context, provider string, level AlertLevel) bool
	Clear(ctx context.Context, provider string)
}

type InMemoryDeduplicator struct {
	mu   sync.Mutex
	seen map[string]AlertLevel
}

func NewInMemoryDeduplicator() *InMemoryDeduplicator {
	return &InMemoryDeduplicator{seen: make(map[string]AlertLevel)}
}

func (d *InMemoryDeduplicator) ShouldAlert(ctx context.Context, provider string, level AlertLevel) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if last, ok := d.seen[provider]; ok && last == level {
		return false
	}
	d.seen[provider] = level
	return true
}

func (d *InMemoryDeduplicator) Clear(ctx context.Context, provider string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, provider)
}

// RedisDeduplicator shares alert state across replicas. SETNX makes
// the check-and-set atomic, so only one instance dispatches each
// alert.
type RedisDeduplicator struct {
	client  *redis.Client
	lockTTL time.Duration
}

func NewRedisDeduplicator(redisURL string, lockTTL time.Duration) (*RedisDeduplicator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisDeduplicator{client: client, lockTTL: lockTTL}, nil
}

func NewRedisDeduplicatorWithClient(client *redis.Client, lockTTL time.Duration) *RedisDeduplicator {
	return &RedisDeduplicator{client: client, lockTTL: lockTTL}
}

func (d *RedisDeduplicator) alertKey(provider string, level AlertLevel) string {
	return fmt.Sprintf("quota:alert:%s:%s", provider, level)
}

func (d *RedisDeduplicator) ShouldAlert(ctx context.Context, provider string, level AlertLevel) bool {
	acquired, err := d.client.SetNX(ctx, d.alertKey(provider, level), time.Now().Unix(), d.lockTTL).Result()
	if err != nil {
		// Fail open: a duplicate alert beats a silent quota breach.
		return true
	}
	return acquired
}

func (d *RedisDeduplicator) Clear(ctx context.Context, provider string) {
	keys, err := d.client.Keys(ctx, fmt.Sprintf("quota:alert:%s:*", provider)).Result()
	if err != nil || len(keys) == 0 {
		return
	}
	d.client.Del(ctx, keys...)
}

func (d *RedisDeduplicator) Close() error {
	return d.client.Close()
}
