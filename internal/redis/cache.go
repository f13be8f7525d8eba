package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SnapshotCache is a generic JSON-backed Redis cache for terminal record
// snapshots. Bind it to a specific snapshot type T; each instance holds a
// Redis client and an optional TTL (pass 0 for keys that should not expire).
type SnapshotCache[T any] struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewSnapshotCache creates a SnapshotCache backed by the provided Redis client.
func NewSnapshotCache[T any](client *goredis.Client, ttl time.Duration) *SnapshotCache[T] {
	return &SnapshotCache[T]{client: client, ttl: ttl}
}

// Get retrieves and unmarshals a value from Redis.
// Returns (nil, false) on any miss or deserialisation error.
func (c *SnapshotCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, false
	}
	return &v, true
}

// SetIfAbsent marshals value and stores it under key only when the key does
// not exist yet. Returns true when the write won, false when another snapshot
// was already present.
func (c *SnapshotCache[T]) SetIfAbsent(ctx context.Context, key string, value *T) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	return c.client.SetNX(ctx, key, data, c.ttl).Result()
}

// Set marshals value and stores it in Redis under key.
// Errors are logged rather than returned — a cache write miss is non-fatal.
func (c *SnapshotCache[T]) Set(ctx context.Context, key string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("SnapshotCache: marshal error for key %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("SnapshotCache: write error for key %s: %v", key, err)
	}
}

// Delete removes a key from Redis.
func (c *SnapshotCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Printf("SnapshotCache: delete error for key %s: %v", key, err)
	}
}
