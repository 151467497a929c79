// Package querycache is a redis cache-aside layer in front of
// internal/apiserver's route (including transit route) and isochrone
// queries; snap responses are not cached. Identical requests within the
// TTL window are served
// from cache instead of re-running the engine. Adapted from the teacher's
// internal/cache/redis.go, generalized from a single hardcoded route-path
// value type to the raw JSON bytes of any query response, plus the
// teacher's own lock-based "wait for result" pattern to avoid a
// thundering herd of identical concurrent queries.
package querycache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps a redis client with the TTL new entries are written with.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New dials addr and pings it once so construction fails fast on a
// misconfigured cache rather than on the first query.
func New(addr string, ttl time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("querycache: connecting to %s: %w", addr, err)
	}

	return &Cache{client: client, ttl: ttl}, nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Key builds a deterministic cache key for a query kind (the API server
// uses "route" and "isochrone") and its parameters, hashed so
// floating-point coordinates and long polylines don't bloat the key
// itself (teacher's RouteKey, generalized beyond route queries).
func Key(kind string, params ...interface{}) string {
	data := fmt.Sprint(params...)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%s:%x", kind, hash[:8])
}

// Get returns the cached response bytes for key, and false on a cache
// miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querycache: get %s: %w", key, err)
	}
	return data, true, nil
}

// Set caches value under key with the Cache's configured TTL.
func (c *Cache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("querycache: set %s: %w", key, err)
	}
	return nil
}

func lockKey(key string) string {
	return "lock:" + key
}

// AcquireLock attempts to claim key for the caller computing a fresh
// result, so concurrent identical requests don't all hit the engine at
// once. ttl bounds how long a crashed holder can block others.
func (c *Cache) AcquireLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, lockKey(key), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("querycache: acquire lock %s: %w", key, err)
	}
	return ok, nil
}

// ReleaseLock releases a lock previously acquired with AcquireLock.
func (c *Cache) ReleaseLock(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, lockKey(key)).Err(); err != nil {
		return fmt.Errorf("querycache: release lock %s: %w", key, err)
	}
	return nil
}

// WaitForResult polls until key's lock is released, then returns whatever
// ended up cached under it (the "wait for result" thundering-herd guard:
// the caller that lost the race for AcquireLock calls this instead of
// recomputing).
func (c *Cache) WaitForResult(ctx context.Context, key string, maxWait time.Duration) ([]byte, bool, error) {
	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		exists, err := c.client.Exists(ctx, lockKey(key)).Result()
		if err != nil {
			return nil, false, fmt.Errorf("querycache: poll lock %s: %w", key, err)
		}
		if exists == 0 {
			return c.Get(ctx, key)
		}
		select {
		case <-ctx.Done():
			return nil, false, ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil, false, fmt.Errorf("querycache: timed out waiting for %s", key)
}
