package signature

import (
	"crypto/rsa"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testPublicKey(n int64) *rsa.PublicKey {
	return &rsa.PublicKey{N: big.NewInt(n), E: 65537}
}

func TestCacheKey_String(t *testing.T) {
	key := CacheKey{Tenant: "tenant-a", KeyTimestamp: "2024-01-01T00_00_00"}
	assert.Equal(t, "tenant-a:2024-01-01T00_00_00", key.String())
}

func TestKeyCache_GetSet(t *testing.T) {
	cache := NewKeyCache(10, 5*time.Minute)
	key := CacheKey{Tenant: "tenant-a", KeyTimestamp: "1"}

	_, ok := cache.Get(key)
	assert.False(t, ok)

	cache.Set(key, testPublicKey(3233), 0)
	pub, ok := cache.Get(key)
	assert.True(t, ok)
	assert.Equal(t, int64(3233), pub.N.Int64())

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Size)
	assert.Equal(t, 10, stats.MaxSize)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 0.5, stats.HitRate)
}

func TestKeyCache_TTLExpiration(t *testing.T) {
	cache := NewKeyCache(10, 50*time.Millisecond)
	key := CacheKey{Tenant: "tenant-a", KeyTimestamp: "1"}
	cache.Set(key, testPublicKey(3233), 0)

	_, ok := cache.Get(key)
	assert.True(t, ok)

	time.Sleep(120 * time.Millisecond)

	_, ok = cache.Get(key)
	assert.False(t, ok)
}

func TestKeyCache_LRUEviction(t *testing.T) {
	cache := NewKeyCache(2, time.Minute)
	k1 := CacheKey{Tenant: "t", KeyTimestamp: "1"}
	k2 := CacheKey{Tenant: "t", KeyTimestamp: "2"}
	k3 := CacheKey{Tenant: "t", KeyTimestamp: "3"}

	cache.Set(k1, testPublicKey(1), 0)
	cache.Set(k2, testPublicKey(2), 0)
	_, _ = cache.Get(k1)
	cache.Set(k3, testPublicKey(3), 0)

	_, ok := cache.Get(k2)
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = cache.Get(k1)
	assert.True(t, ok)
	_, ok = cache.Get(k3)
	assert.True(t, ok)
}

func TestKeyCache_Invalidate(t *testing.T) {
	cache := NewKeyCache(10, time.Minute)
	a1 := CacheKey{Tenant: "a", KeyTimestamp: "1"}
	a2 := CacheKey{Tenant: "a", KeyTimestamp: "2"}
	for _, k := range []CacheKey{a1, a2} {
		cache.Set(k, testPublicKey(7), 0)
	}

	cache.Invalidate(a1)
	_, ok := cache.Get(a1)
	assert.False(t, ok)
	_, ok = cache.Get(a2)
	assert.True(t, ok)
	assert.Equal(t, uint64(1), cache.Generation(a1))
	assert.Equal(t, uint64(0), cache.Generation(a2))
}

func TestKeyCache_SetAfterInvalidate(t *testing.T) {
	cache := NewKeyCache(10, time.Minute)
	key := CacheKey{Tenant: "a", KeyTimestamp: "1"}

	loaded := cache.Generation(key)
	cache.Invalidate(key)

	assert.False(t, cache.Set(key, testPublicKey(7), loaded), "write from before the invalidation must be dropped")
	_, ok := cache.Get(key)
	assert.False(t, ok)

	assert.True(t, cache.Set(key, testPublicKey(7), cache.Generation(key)))
	_, ok = cache.Get(key)
	assert.True(t, ok)
}
