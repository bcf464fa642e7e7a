package keys

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"
)

// ErrJWKSFetchFailed is returned when the key set cannot be fetched
var ErrJWKSFetchFailed = errors.New("failed to fetch JWKS")

// JWKS represents a JSON Web Key Set
type JWKS struct {
	Keys []JWK `json:"keys"`
}

// JWK represents a JSON Web Key. The kid is the key timestamp.
type JWK struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Alg string `json:"alg,omitempty"`
	Use string `json:"use,omitempty"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// JWKSConfig configures a JWKSProvider.
type JWKSConfig struct {
	URL         string
	CacheTTL    time.Duration
	HTTPTimeout time.Duration
}

// JWKSProvider resolves system keys from a remote JWKS document.
type JWKSProvider struct {
	url        string
	httpClient *http.Client

	jwksCache    *JWKS
	jwksCacheExp time.Time
	jwksCacheTTL time.Duration
	cacheMu      sync.RWMutex

	keyCache   map[string]*rsa.PublicKey
	keyCacheMu sync.RWMutex
}

// NewJWKSProvider creates a provider for the key set at cfg.URL.
func NewJWKSProvider(cfg JWKSConfig) *JWKSProvider {
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = time.Hour
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	return &JWKSProvider{
		url:          cfg.URL,
		jwksCacheTTL: cfg.CacheTTL,
		httpClient:   &http.Client{Timeout: cfg.HTTPTimeout},
		keyCache:     make(map[string]*rsa.PublicKey),
	}
}

// SystemKey implements SystemKeyProvider.
func (p *JWKSProvider) SystemKey(ctx context.Context, timestamp string) (*rsa.PublicKey, error) {
	p.keyCacheMu.RLock()
	if key, ok := p.keyCache[timestamp]; ok {
		p.keyCacheMu.RUnlock()
		return key, nil
	}
	p.keyCacheMu.RUnlock()

	jwks, err := p.FetchJWKS(ctx)
	if err != nil {
		return nil, err
	}

	var jwk *JWK
	for i := range jwks.Keys {
		if jwks.Keys[i].Kid == timestamp {
			jwk = &jwks.Keys[i]
			break
		}
	}
	if jwk == nil {
		return nil, fmt.Errorf("%w: kid %s not in JWKS", ErrKeyNotFound, timestamp)
	}
	if jwk.Kty != "" && jwk.Kty != "RSA" {
		return nil, fmt.Errorf("%w: kid %s has key type %s", ErrInvalidKey, timestamp, jwk.Kty)
	}

	key, err := jwkToRSAPublicKey(jwk)
	if err != nil {
		return nil, err
	}

	p.keyCacheMu.Lock()
	p.keyCache[timestamp] = key
	p.keyCacheMu.Unlock()

	return key, nil
}

// FetchJWKS returns the cached key set, fetching it when the cache has expired.
func (p *JWKSProvider) FetchJWKS(ctx context.Context) (*JWKS, error) {
	p.cacheMu.RLock()
	if p.jwksCache != nil && time.Now().Before(p.jwksCacheExp) {
		defer p.cacheMu.RUnlock()
		return p.jwksCache, nil
	}
	p.cacheMu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrJWKSFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status code %d", ErrJWKSFetchFailed, resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return nil, fmt.Errorf("failed to decode JWKS: %w", err)
	}

	p.cacheMu.Lock()
	p.jwksCache = &jwks
	p.jwksCacheExp = time.Now().Add(p.jwksCacheTTL)
	p.cacheMu.Unlock()

	return &jwks, nil
}

// InvalidateCache drops the cached key set and parsed keys.
func (p *JWKSProvider) InvalidateCache() {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	p.jwksCache = nil
	p.jwksCacheExp = time.Time{}

	p.keyCacheMu.Lock()
	defer p.keyCacheMu.Unlock()
	p.keyCache = make(map[string]*rsa.PublicKey)
}

// ToJWK renders a public key as a JWK with the given key timestamp as kid.
func ToJWK(timestamp string, key *rsa.PublicKey) JWK {
	return JWK{
		Kid: timestamp,
		Kty: "RSA",
		Alg: "RS512",
		Use: "sig",
		N:   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
		E:   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
	}
}

func jwkToRSAPublicKey(jwk *JWK) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode modulus: %v", ErrInvalidKey, err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode exponent: %v", ErrInvalidKey, err)
	}
	return PublicKey(new(big.Int).SetBytes(nBytes), new(big.Int).SetBytes(eBytes))
}
