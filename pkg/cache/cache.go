// Package cache provides the placement result cache.
//
// The cache backs the stateless serving mode: when a deployment opts to
// recompute placements per request instead of holding session state, the
// serialized response for an identical (session, zoom, feature payload)
// triple can be served from here instead. Keys are SHA-256 content hashes,
// so any change to the features or parameters misses cleanly.
//
// Backends: FileCache for single-node setups and the CLI, RedisCache for
// multi-instance deployments, NullCache to disable caching.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is the interface for result-cache backends.
type Cache interface {
	// Get retrieves a value. The second return reports whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with a TTL. A zero TTL means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// PlacementKey builds the cache key for a full placement request. The
// payload must be the canonical JSON encoding of the feature list so that
// identical requests hash identically.
func PlacementKey(sessionID string, zoom float64, payload []byte) string {
	return hashKey("place", sessionID, zoom, Hash(payload))
}

// hashKey generates a cache key by hashing the components.
// The key format is: prefix:hash(parts...)
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%s", prefix, hex.EncodeToString(hash[:]))
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
