package signature

import (
	"crypto/rsa"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheKey identifies a tenant public key
type CacheKey struct {
	Tenant       string
	KeyTimestamp string
}

// String returns a string representation of the cache key
func (k CacheKey) String() string {
	return k.Tenant + ":" + k.KeyTimestamp
}

// KeyCache is an LRU cache with TTL for resolved identity manager public keys.
// Only keys of valid signature sets are stored; writers remove entries they touch.
//
// Every Invalidate bumps the generation of its key. A reader captures the
// generation before loading from the repository and stores the result only if
// no invalidation happened in between.
type KeyCache struct {
	lru     *expirable.LRU[CacheKey, *rsa.PublicKey]
	maxSize int
	hits    atomic.Uint64
	misses  atomic.Uint64

	mu          sync.Mutex
	generations map[CacheKey]uint64
}

// NewKeyCache creates a KeyCache with specified max size and TTL
func NewKeyCache(maxSize int, ttl time.Duration) *KeyCache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &KeyCache{
		lru:         expirable.NewLRU[CacheKey, *rsa.PublicKey](maxSize, nil, ttl),
		maxSize:     maxSize,
		generations: make(map[CacheKey]uint64),
	}
}

// Get returns the cached key, or false if absent or expired
func (c *KeyCache) Get(key CacheKey) (*rsa.PublicKey, bool) {
	pub, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return pub, ok
}

// Generation returns the current generation of key
func (c *KeyCache) Generation(key CacheKey) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

// Set stores pub if key is still at generation. It reports whether it stored.
func (c *KeyCache) Set(key CacheKey, pub *rsa.PublicKey, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key] != generation {
		return false
	}
	c.lru.Add(key, pub)
	return true
}

// Invalidate removes key and bumps its generation
func (c *KeyCache) Invalidate(key CacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[key]++
	c.lru.Remove(key)
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    uint64
	Misses  uint64
	HitRate float64
}

// Stats returns cache statistics
func (c *KeyCache) Stats() CacheStats {
	hits, misses := c.hits.Load(), c.misses.Load()
	stats := CacheStats{
		Size:    c.lru.Len(),
		MaxSize: c.maxSize,
		Hits:    hits,
		Misses:  misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}
