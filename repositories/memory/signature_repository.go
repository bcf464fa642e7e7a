// Package memory provides in-process repositories for deployments without a
// database and for tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/upb/anubis/models"
	"github.com/upb/anubis/repositories"
)

type signatureKey struct {
	tenant    string
	timestamp string
}

// SignatureRepository keeps signature sets in a map guarded by a RWMutex.
type SignatureRepository struct {
	mu   sync.RWMutex
	sets map[signatureKey]*models.SignatureSet
}

// NewSignatureRepository creates an empty repository
func NewSignatureRepository() *SignatureRepository {
	return &SignatureRepository{sets: make(map[signatureKey]*models.SignatureSet)}
}

// Lock is a no-op; every write already holds the repository mutex.
func (r *SignatureRepository) Lock(context.Context, string) error {
	return nil
}

// Upsert stores a copy of set, overwriting the one at the same timestamp
func (r *SignatureRepository) Upsert(_ context.Context, set *models.SignatureSet) error {
	if set.ApplicationKey == nil || set.IdentityManager.PublicKeyMod == nil || set.IdentityManager.PublicKeyExp == nil {
		return fmt.Errorf("failed to upsert signature set: incomplete key material")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *set
	stored.Valid = true
	k := signatureKey{set.Tenant, set.KeyTimestamp}
	if existing, ok := r.sets[k]; ok {
		stored.CreatedAt = existing.CreatedAt
	}
	r.sets[k] = &stored
	set.Valid = true
	return nil
}

// Get returns a copy of the set at timestamp
func (r *SignatureRepository) Get(_ context.Context, tenant, timestamp string) (*models.SignatureSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.sets[signatureKey{tenant, timestamp}]
	if !ok {
		return nil, fmt.Errorf("signature set %s/%s: %w", tenant, timestamp, repositories.ErrNotFound)
	}
	out := *set
	return &out, nil
}

// ListValidTimestamps returns the valid timestamps of tenant in ascending order
func (r *SignatureRepository) ListValidTimestamps(_ context.Context, tenant string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	timestamps := []string{}
	for k, set := range r.sets {
		if k.tenant == tenant && set.Valid {
			timestamps = append(timestamps, k.timestamp)
		}
	}
	sort.Strings(timestamps)
	return timestamps, nil
}

// Invalidate marks a valid set invalid
func (r *SignatureRepository) Invalidate(_ context.Context, tenant, timestamp string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.sets[signatureKey{tenant, timestamp}]
	if !ok || !set.Valid {
		return fmt.Errorf("signature set %s/%s: %w", tenant, timestamp, repositories.ErrNotFound)
	}
	set.Valid = false
	set.UpdatedAt = time.Now()
	return nil
}

// Ping always succeeds
func (r *SignatureRepository) Ping(context.Context) error {
	return nil
}
