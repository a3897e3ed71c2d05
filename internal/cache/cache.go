// Package cache provides keyed storage for short-lived credentials. Stores
// don't understand the values they hold: callers remain responsible for
// checking whether a stored value is still usable.
package cache

import (
	"context"
)

// TokenCache defines the interface for token storage implementations.
// The generic type T represents the token type being stored.
type TokenCache[T any] interface {
	// Get retrieves a token from the cache.
	// Returns the token, whether it was found, and any error.
	Get(ctx context.Context, key string) (T, bool, error)

	// Set stores a token in the cache, replacing any existing value.
	Set(ctx context.Context, key string, token T) error

	// Invalidate removes a token from the cache.
	Invalidate(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}
