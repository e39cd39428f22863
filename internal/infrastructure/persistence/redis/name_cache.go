// Package redis implements the best-effort name index. The index mirrors
// registry events into Redis sets so that command handlers can reject an
// obviously taken name without folding the registry stream. It is a cache,
// not a source of truth: every answer it gives is re-checked by the
// registry fold before anything is appended.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number (0-15).
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// MinIdleConns is the minimum number of idle connections.
	MinIdleConns int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewClient creates a Redis client from the config and verifies the
// connection.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}
	return client, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// NAME INDEX
// ══════════════════════════════════════════════════════════════════════════════

// prefixNameIndex namespaces the index keys.
const prefixNameIndex = "nameindex:"

// NameCache is the Redis-backed name index. One set per registry scope
// holds the keys currently registered there.
type NameCache struct {
	client *redis.Client
}

// NewNameCache creates the cache on an existing client.
func NewNameCache(client *redis.Client) *NameCache {
	return &NameCache{client: client}
}

func (c *NameCache) scopeKey(scope string) string {
	return prefixNameIndex + scope
}

// Mark records a key as taken in a scope.
func (c *NameCache) Mark(ctx context.Context, scope, key string) error {
	return c.client.SAdd(ctx, c.scopeKey(scope), key).Err()
}

// Unmark records a key as free in a scope.
func (c *NameCache) Unmark(ctx context.Context, scope, key string) error {
	return c.client.SRem(ctx, c.scopeKey(scope), key).Err()
}

// IsTaken reports whether the key is currently marked in the scope.
func (c *NameCache) IsTaken(ctx context.Context, scope, key string) (bool, error) {
	return c.client.SIsMember(ctx, c.scopeKey(scope), key).Result()
}
