// Package cache is a small key-value cache port with Redis and in-memory
// adapters.
package cache

import (
	"context"
	"errors"
	"time"
)

// Cache is the key-value contract used by the application. Implementations
// are safe for concurrent use.
type Cache interface {
	// Get returns ErrMiss when key is absent or expired.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value with ttl. A non-positive ttl never expires.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Del removes keys and returns how many existed.
	Del(ctx context.Context, keys ...string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// ErrMiss signals a cache miss.
var ErrMiss = errors.New("cache: miss")
