package services

import (
	"context"

	"github.com/upb/anubis/repositories"
)

// WithTransaction runs fn inside txMgr.InTransaction, handing it the
// transaction-bound context so repositories join the transaction.
func WithTransaction(ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context) error) error {
	return txMgr.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		return fn(txCtx)
	})
}

// WithTransactionResult is WithTransaction for functions that return a value.
// The zero value is returned when the transaction fails.
func WithTransactionResult[T any](ctx context.Context, txMgr repositories.TransactionManager, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := txMgr.InTransaction(ctx, func(txCtx context.Context, _ repositories.Transaction) error {
		r, err := fn(txCtx)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
