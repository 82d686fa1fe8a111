// Package cache is the read-through cache in front of the article store.
//
// ArticleCache knows the key scheme and the invalidation window; the bytes
// live in a Store, which is Redis in production and an in-process map when no
// Redis address is configured.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store is a byte-oriented key/value store with per-key expiry.
type Store interface {
	// Get returns ErrMiss when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set overwrites key; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}
