package keys

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// SystemKeyProvider resolves the platform's public key for a key timestamp.
type SystemKeyProvider interface {
	SystemKey(ctx context.Context, timestamp string) (*rsa.PublicKey, error)
}

// StaticProvider serves system keys configured at startup.
type StaticProvider struct {
	mu   sync.RWMutex
	keys map[string]*rsa.PublicKey
}

// NewStaticProvider creates an empty static provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{keys: make(map[string]*rsa.PublicKey)}
}

// Add registers key under timestamp, replacing any previous key.
func (p *StaticProvider) Add(timestamp string, key *rsa.PublicKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys[timestamp] = key
}

// Timestamps lists the configured timestamps in ascending order.
func (p *StaticProvider) Timestamps() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.keys))
	for ts := range p.keys {
		out = append(out, ts)
	}
	sort.Strings(out)
	return out
}

// SystemKey implements SystemKeyProvider.
func (p *StaticProvider) SystemKey(_ context.Context, timestamp string) (*rsa.PublicKey, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	key, ok := p.keys[timestamp]
	if !ok {
		return nil, fmt.Errorf("%w: system key %s", ErrKeyNotFound, timestamp)
	}
	return key, nil
}

// ChainProvider asks each provider in turn and returns the first key found.
type ChainProvider []SystemKeyProvider

// SystemKey implements SystemKeyProvider.
func (c ChainProvider) SystemKey(ctx context.Context, timestamp string) (*rsa.PublicKey, error) {
	var lastErr error
	for _, p := range c {
		key, err := p.SystemKey(ctx, timestamp)
		if err == nil {
			return key, nil
		}
		lastErr = err
		if !errors.Is(err, ErrKeyNotFound) {
			break
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no system key providers configured", ErrKeyNotFound)
	}
	return nil, lastErr
}
