package repositories

import (
	"context"
	"errors"

	"github.com/upb/anubis/models"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("record not found")

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)

	// InTransaction executes a function within a transaction
	// Automatically commits if function succeeds, rolls back on error
	InTransaction(ctx context.Context, fn func(ctx context.Context, tx Transaction) error) error
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns the transaction context
	Context() context.Context
}

// SignatureRepository stores tenant signature sets keyed by (tenant, key timestamp).
// Implementations serialize writes; concurrent writers to the same key resolve last writer wins.
type SignatureRepository interface {
	// Lock serializes writers for tenant until the surrounding transaction ends
	Lock(ctx context.Context, tenant string) error

	// Upsert inserts a set or overwrites the one at the same timestamp, marking it valid
	Upsert(ctx context.Context, set *models.SignatureSet) error

	// Get returns the set at timestamp whether or not it is still valid.
	// Returns ErrNotFound if no set was ever stored there.
	Get(ctx context.Context, tenant, timestamp string) (*models.SignatureSet, error)

	// ListValidTimestamps returns the timestamps of valid sets in ascending order
	ListValidTimestamps(ctx context.Context, tenant string) ([]string, error)

	// Invalidate marks the set at timestamp invalid.
	// Returns ErrNotFound if there is no valid set at timestamp.
	Invalidate(ctx context.Context, tenant, timestamp string) error

	// Ping checks the store is reachable
	Ping(ctx context.Context) error
}

// Repositories holds all repository instances
type Repositories struct {
	Signatures SignatureRepository
}
