package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/upb/anubis/internal/keys"
	"github.com/upb/anubis/models"
	"github.com/upb/anubis/repositories"
	"go.uber.org/zap"
)

// SignatureRepository implements the repositories.SignatureRepository interface
type SignatureRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewSignatureRepository creates a new signature repository
func NewSignatureRepository(db *DB, logger *zap.Logger) repositories.SignatureRepository {
	return &SignatureRepository{
		db:     db,
		logger: logger,
	}
}

// Lock serializes writers for tenant until the surrounding transaction ends.
// Outside a transaction it does nothing.
func (r *SignatureRepository) Lock(ctx context.Context, tenant string) error {
	if _, ok := GetTransactionFromContext(ctx); !ok {
		return nil
	}
	executor := GetExecutor(ctx, r.db)
	if _, err := executor.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, tenant); err != nil {
		return fmt.Errorf("failed to lock tenant signatures: %w", err)
	}
	return nil
}

// Upsert inserts a signature set or overwrites the one at the same timestamp
func (r *SignatureRepository) Upsert(ctx context.Context, set *models.SignatureSet) error {
	query := `
		INSERT INTO tenant_signatures (
			tenant_identifier, key_timestamp,
			identity_manager_public_key_mod, identity_manager_public_key_exp,
			application_private_key, valid, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, true, $6, $7)
		ON CONFLICT (tenant_identifier, key_timestamp) DO UPDATE SET
			identity_manager_public_key_mod = EXCLUDED.identity_manager_public_key_mod,
			identity_manager_public_key_exp = EXCLUDED.identity_manager_public_key_exp,
			application_private_key = EXCLUDED.application_private_key,
			valid = true,
			updated_at = EXCLUDED.updated_at
	`

	if set.ApplicationKey == nil || set.IdentityManager.PublicKeyMod == nil || set.IdentityManager.PublicKeyExp == nil {
		return fmt.Errorf("failed to upsert signature set: incomplete key material")
	}

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		set.Tenant,
		set.KeyTimestamp,
		set.IdentityManager.PublicKeyMod.String(),
		set.IdentityManager.PublicKeyExp.String(),
		keys.MarshalPrivateKey(set.ApplicationKey),
		set.CreatedAt,
		set.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert signature set: %w", err)
	}

	set.Valid = true
	r.logger.Debug("signature set stored",
		zap.String("tenant", set.Tenant),
		zap.String("key_timestamp", set.KeyTimestamp))
	return nil
}

// Get retrieves a signature set, valid or not
func (r *SignatureRepository) Get(ctx context.Context, tenant, timestamp string) (*models.SignatureSet, error) {
	query := `
		SELECT tenant_identifier, key_timestamp,
			identity_manager_public_key_mod, identity_manager_public_key_exp,
			application_private_key, valid, created_at, updated_at
		FROM tenant_signatures
		WHERE tenant_identifier = $1 AND key_timestamp = $2
	`

	executor := GetExecutor(ctx, r.db)
	var (
		set      models.SignatureSet
		mod, exp string
		der      []byte
	)
	err := executor.QueryRowContext(ctx, query, tenant, timestamp).Scan(
		&set.Tenant,
		&set.KeyTimestamp,
		&mod,
		&exp,
		&der,
		&set.Valid,
		&set.CreatedAt,
		&set.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("signature set %s/%s: %w", tenant, timestamp, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get signature set: %w", err)
	}

	modInt, ok := new(big.Int).SetString(mod, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt modulus for signature set %s/%s", tenant, timestamp)
	}
	expInt, ok := new(big.Int).SetString(exp, 10)
	if !ok {
		return nil, fmt.Errorf("corrupt exponent for signature set %s/%s", tenant, timestamp)
	}
	set.IdentityManager = models.Signature{PublicKeyMod: modInt, PublicKeyExp: expInt}

	set.ApplicationKey, err = keys.UnmarshalPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("corrupt application key for signature set %s/%s: %w", tenant, timestamp, err)
	}

	return &set, nil
}

// ListValidTimestamps returns the valid timestamps of a tenant in ascending order
func (r *SignatureRepository) ListValidTimestamps(ctx context.Context, tenant string) ([]string, error) {
	query := `
		SELECT key_timestamp
		FROM tenant_signatures
		WHERE tenant_identifier = $1 AND valid = true
		ORDER BY key_timestamp ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, tenant)
	if err != nil {
		return nil, fmt.Errorf("failed to list signature timestamps: %w", err)
	}
	defer rows.Close()

	timestamps := []string{}
	for rows.Next() {
		var ts string
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("failed to scan signature timestamp: %w", err)
		}
		timestamps = append(timestamps, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating signature timestamps: %w", err)
	}

	return timestamps, nil
}

// Invalidate marks a valid signature set invalid
func (r *SignatureRepository) Invalidate(ctx context.Context, tenant, timestamp string) error {
	query := `
		UPDATE tenant_signatures
		SET valid = false, updated_at = $3
		WHERE tenant_identifier = $1 AND key_timestamp = $2 AND valid = true
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, tenant, timestamp, time.Now())
	if err != nil {
		return fmt.Errorf("failed to invalidate signature set: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("signature set %s/%s: %w", tenant, timestamp, repositories.ErrNotFound)
	}

	r.logger.Debug("signature set invalidated",
		zap.String("tenant", tenant),
		zap.String("key_timestamp", timestamp))
	return nil
}

// Ping checks the database is reachable
func (r *SignatureRepository) Ping(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
