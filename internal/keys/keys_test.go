package keys

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicKeyConversion(t *testing.T) {
	priv, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	mod, exp := ModExp(&priv.PublicKey)
	pub, err := PublicKey(mod, exp)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(pub))

	_, err = PublicKey(nil, exp)
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = PublicKey(mod, big.NewInt(-3))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestParseBigInt(t *testing.T) {
	v, err := ParseBigInt(" 65537 ")
	require.NoError(t, err)
	assert.Equal(t, int64(65537), v.Int64())

	_, err = ParseBigInt("abc")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = ParseBigInt("")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestPEMRoundTrip(t *testing.T) {
	priv, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	parsed, err := ParsePrivateKeyPEM(EncodePrivateKeyPEM(priv))
	require.NoError(t, err)
	assert.True(t, priv.Equal(parsed))

	stored, err := UnmarshalPrivateKey(MarshalPrivateKey(priv))
	require.NoError(t, err)
	assert.True(t, priv.Equal(stored))

	pubPEM, err := EncodePublicKeyPEM(&priv.PublicKey)
	require.NoError(t, err)
	assert.Contains(t, string(pubPEM), "PUBLIC KEY")

	_, err = ParsePrivateKeyPEM([]byte("garbage"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestCheckTimestamp(t *testing.T) {
	tests := []struct {
		ts    string
		valid bool
	}{
		{"2024-01-02T03_04_05.678", true},
		{"2024-01-02T03_04_05", true},
		{"2024-01-02T03:04:05Z", true},
		{NewTimestamp(time.Now()), true},
		{"", false},
		{"1", false},
		{"yesterday", false},
		{"2024-13-02T03_04_05", false},
	}
	for _, tt := range tests {
		t.Run(tt.ts, func(t *testing.T) {
			err := CheckTimestamp(tt.ts)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidTimestamp)
			}
		})
	}
}

func TestLatest(t *testing.T) {
	_, ok := Latest(nil)
	assert.False(t, ok)

	latest, ok := Latest([]string{"2024-01-02T00_00_00", "2025-01-01T00_00_00", "2023-06-01T00_00_00"})
	require.True(t, ok)
	assert.Equal(t, "2025-01-01T00_00_00", latest)
}

func TestStaticAndChainProvider(t *testing.T) {
	priv, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	static := NewStaticProvider()
	static.Add("2024-01-01T00_00_00", &priv.PublicKey)
	assert.Equal(t, []string{"2024-01-01T00_00_00"}, static.Timestamps())

	key, err := static.SystemKey(context.Background(), "2024-01-01T00_00_00")
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(key))

	_, err = static.SystemKey(context.Background(), "2030-01-01T00_00_00")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	chain := ChainProvider{NewStaticProvider(), static}
	key, err = chain.SystemKey(context.Background(), "2024-01-01T00_00_00")
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(key))

	_, err = ChainProvider{}.SystemKey(context.Background(), "x")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestJWKSProvider(t *testing.T) {
	priv, err := GenerateKeyPair(2048)
	require.NoError(t, err)

	var fetches int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fetches, 1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(JWKS{Keys: []JWK{ToJWK("2024-01-01T00_00_00", &priv.PublicKey)}})
	}))
	defer server.Close()

	provider := NewJWKSProvider(JWKSConfig{URL: server.URL, CacheTTL: time.Minute})

	t.Run("resolves key by kid", func(t *testing.T) {
		key, err := provider.SystemKey(context.Background(), "2024-01-01T00_00_00")
		require.NoError(t, err)
		assert.True(t, priv.PublicKey.Equal(key))
	})

	t.Run("cached after first fetch", func(t *testing.T) {
		_, err := provider.SystemKey(context.Background(), "2024-01-01T00_00_00")
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&fetches))
	})

	t.Run("unknown kid", func(t *testing.T) {
		_, err := provider.SystemKey(context.Background(), "2030-01-01T00_00_00")
		assert.ErrorIs(t, err, ErrKeyNotFound)
	})

	t.Run("invalidate forces refetch", func(t *testing.T) {
		provider.InvalidateCache()
		_, err := provider.SystemKey(context.Background(), "2024-01-01T00_00_00")
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&fetches))
	})

	t.Run("fetch failure", func(t *testing.T) {
		failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer failing.Close()

		_, err := NewJWKSProvider(JWKSConfig{URL: failing.URL}).SystemKey(context.Background(), "x")
		assert.ErrorIs(t, err, ErrJWKSFetchFailed)
	})
}
