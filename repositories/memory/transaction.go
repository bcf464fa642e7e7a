package memory

import (
	"context"

	"github.com/upb/anubis/repositories"
)

// TransactionManager runs functions without transactional isolation.
// Individual repository calls are atomic; nothing is rolled back on error.
type TransactionManager struct{}

// NewTransactionManager creates a transaction manager for memory repositories
func NewTransactionManager() repositories.TransactionManager {
	return TransactionManager{}
}

// Begin returns a transaction whose Commit and Rollback do nothing
func (TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	return transaction{ctx: ctx}, nil
}

// InTransaction calls fn directly
func (tm TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, _ := tm.Begin(ctx)
	return fn(ctx, tx)
}

type transaction struct {
	ctx context.Context
}

func (transaction) Commit() error              { return nil }
func (transaction) Rollback() error            { return nil }
func (t transaction) Context() context.Context { return t.ctx }
