package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

const keyPrefix = "peerpanel:v1:"

// Key hashes the given parts into a namespaced cache key. Parts are joined
// with a separator that cannot appear in prompts.
func Key(namespace string, parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return keyPrefix + strings.ToLower(namespace) + ":" + hex.EncodeToString(h.Sum(nil))
}

// New builds the cache selected by configuration: a memory cache, backed by
// disk when dir is set
func New(memoryTTL time.Duration, dir string, diskTTL time.Duration) Cache {
	if dir == "" {
		return NewMemoryCache(memoryTTL, 10*time.Minute)
	}
	return NewLayeredCache(memoryTTL, dir, diskTTL)
}
