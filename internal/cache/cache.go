// Package cache provides the response cache: full turn responses keyed by a
// normalized fingerprint of tenant, actor class and query text.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"
)

// DefaultTTL is used when Put is called with a non-positive ttl.
const DefaultTTL = time.Hour

// ErrClosed is returned by operations on a closed cache.
var ErrClosed = errors.New("cache: closed")

// Cache stores opaque response payloads. Implementations never update an
// entry in place; Put replaces it.
type Cache interface {
	// Get returns the payload for key. ok is false on a miss or expiry.
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)

	// Put stores payload under key for ttl.
	Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error

	// Delete invalidates key.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}

// Key derives the cache key for a query. Casing and surrounding whitespace
// of the query do not change the key; tenant and actor class always do.
func Key(tenantID, actorClass, query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))

	h := sha256.New()
	for _, part := range []string{tenantID, actorClass, normalized} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
