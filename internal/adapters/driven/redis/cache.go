package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openexams/paperd/internal/core/domain"
	"github.com/openexams/paperd/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.Cache = (*Cache)(nil)

// Cache implements driven.Cache using Redis.
// The connection is established lazily on first use so the service can start
// before Redis is reachable; until then every cache operation reports the
// connection error and callers fall back to the store.
type Cache struct {
	url string

	mu     sync.Mutex
	client *redis.Client
}

// NewCache creates a Redis-backed cache for the given URL
// (redis://host:port/db). No connection is made until the first operation.
func NewCache(url string) *Cache {
	return &Cache{url: url}
}

// connect returns the shared client, dialing on first call.
func (c *Cache) connect(ctx context.Context) (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	opts, err := redis.ParseURL(c.url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	c.client = client
	return c.client, nil
}

// Get returns the cached value, or domain.ErrNotFound if absent or expired
func (c *Cache) Get(ctx context.Context, key string) (string, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return "", err
	}

	val, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, nil
}

// Set stores a value with the given TTL
func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}

	if err := client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}

	if err := client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// Exists reports whether the key is present
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	client, err := c.connect(ctx)
	if err != nil {
		return false, err
	}

	n, err := client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache exists %s: %w", key, err)
	}
	return n > 0, nil
}

// Ping checks if Redis is reachable
func (c *Cache) Ping(ctx context.Context) error {
	client, err := c.connect(ctx)
	if err != nil {
		return err
	}
	return client.Ping(ctx).Err()
}

// Close closes the connection if one was established
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	err := c.client.Close()
	c.client = nil
	return err
}
