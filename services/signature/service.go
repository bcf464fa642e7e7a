// Package signature manages the tenant signature sets: the identity manager
// public key and the application key pair stored per key timestamp. It also
// resolves verification keys for incoming tokens.
package signature

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/upb/anubis/internal/keys"
	"github.com/upb/anubis/internal/observability"
	"github.com/upb/anubis/internal/token"
	"github.com/upb/anubis/models"
	"github.com/upb/anubis/repositories"
	"github.com/upb/anubis/services"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Config tunes the signature service
type Config struct {
	// Application is the name-version of this service, used to resolve refresh token keys
	Application string

	// AllowOverwrite permits creating a set at a timestamp that already holds a valid one
	AllowOverwrite bool

	KeyBits   int
	CacheSize int
	CacheTTL  time.Duration

	// RefreshTTL is the lifetime of issued refresh tokens
	RefreshTTL time.Duration
}

// DefaultRefreshTTL applies when Config.RefreshTTL is not positive
const DefaultRefreshTTL = time.Hour

// DefaultConfig returns the settings used when none are configured
func DefaultConfig() Config {
	return Config{
		AllowOverwrite: true,
		KeyBits:        keys.DefaultKeyBits,
		CacheSize:      1024,
		CacheTTL:       5 * time.Minute,
		RefreshTTL:     DefaultRefreshTTL,
	}
}

// Service handles signature set lifecycle and key lookup
type Service struct {
	repo       repositories.SignatureRepository
	txMgr      repositories.TransactionManager
	systemKeys keys.SystemKeyProvider
	cache      *KeyCache
	group      singleflight.Group
	metrics    *observability.Metrics
	cfg        Config
	logger     *zap.Logger
}

// NewService creates a new signature Service. metrics may be nil.
func NewService(
	repo repositories.SignatureRepository,
	txMgr repositories.TransactionManager,
	systemKeys keys.SystemKeyProvider,
	metrics *observability.Metrics,
	cfg Config,
	logger *zap.Logger,
) *Service {
	if cfg.KeyBits <= 0 {
		cfg.KeyBits = keys.DefaultKeyBits
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &Service{
		repo:       repo,
		txMgr:      txMgr,
		systemKeys: systemKeys,
		cache:      NewKeyCache(cfg.CacheSize, cfg.CacheTTL),
		metrics:    metrics,
		cfg:        cfg,
		logger:     logger,
	}
}

// CreateSignatureSet stores the identity manager key of tenant under keyTimestamp
// together with a freshly generated application key pair, and returns the
// public view of the stored set. An existing set at keyTimestamp is overwritten.
func (s *Service) CreateSignatureSet(ctx context.Context, tenant, keyTimestamp string, identityManager models.Signature) (*models.ApplicationSignatureSet, error) {
	if err := keys.CheckTimestamp(keyTimestamp); err != nil {
		return nil, services.Wrap(services.ErrInvalidKeyTimestamp, err).WithDetail("key_timestamp", keyTimestamp)
	}
	return s.store(ctx, tenant, keyTimestamp, identityManager, s.cfg.AllowOverwrite, "create")
}

// ProvisionTenant stores the identity manager key of tenant under the
// provisioning version. Provisioning is idempotent and always overwrites.
func (s *Service) ProvisionTenant(ctx context.Context, tenant string, identityManager models.Signature) (*models.ApplicationSignatureSet, error) {
	return s.store(ctx, tenant, token.DefaultKeyTimestamp, identityManager, true, "provision")
}

func (s *Service) store(ctx context.Context, tenant, keyTimestamp string, identityManager models.Signature, allowOverwrite bool, operation string) (*models.ApplicationSignatureSet, error) {
	if tenant == "" {
		return nil, services.ErrMissingTenant
	}
	if _, err := keys.PublicKey(identityManager.PublicKeyMod, identityManager.PublicKeyExp); err != nil {
		return nil, services.Wrap(services.ErrInvalidArgument, err).WithDetail("field", "identityManagerSignature")
	}

	appKey, err := keys.GenerateKeyPair(s.cfg.KeyBits)
	if err != nil {
		return nil, services.WrapInternal("failed to generate application key pair", err)
	}

	set := models.NewSignatureSet(tenant, keyTimestamp, identityManager, appKey)
	err = services.WithTransaction(ctx, s.txMgr, func(ctx context.Context) error {
		if err := s.repo.Lock(ctx, tenant); err != nil {
			return services.Wrap(services.ErrDatabaseError, err)
		}

		existing, err := s.repo.Get(ctx, tenant, keyTimestamp)
		switch {
		case err == nil:
			if existing.Valid && !allowOverwrite {
				return services.Wrap(services.ErrSignatureExists, nil).WithDetail("key_timestamp", keyTimestamp)
			}
			s.logger.Info("overwriting signature set",
				zap.String("tenant", tenant),
				zap.String("key_timestamp", keyTimestamp),
				zap.Bool("was_valid", existing.Valid),
			)
		case errors.Is(err, repositories.ErrNotFound):
			if err := s.warnOutOfOrder(ctx, tenant, keyTimestamp); err != nil {
				return err
			}
		default:
			return services.Wrap(services.ErrDatabaseError, err)
		}

		if err := s.repo.Upsert(ctx, set); err != nil {
			return services.Wrap(services.ErrDatabaseError, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(CacheKey{Tenant: tenant, KeyTimestamp: keyTimestamp})
	s.metrics.RecordSignatureWrite(operation)
	s.logger.Info("signature set stored",
		zap.String("tenant", tenant),
		zap.String("key_timestamp", keyTimestamp),
		zap.String("operation", operation),
	)

	return set.ToApplicationSignatureSet(), nil
}

// warnOutOfOrder logs a new timestamp that is older than the current latest.
// Ordering is not enforced.
func (s *Service) warnOutOfOrder(ctx context.Context, tenant, keyTimestamp string) error {
	timestamps, err := s.repo.ListValidTimestamps(ctx, tenant)
	if err != nil {
		return services.Wrap(services.ErrDatabaseError, err)
	}
	if latest, ok := keys.Latest(timestamps); ok && keyTimestamp < latest {
		s.logger.Warn("signature set created out of order",
			zap.String("tenant", tenant),
			zap.String("key_timestamp", keyTimestamp),
			zap.String("latest", latest),
		)
	}
	return nil
}

// InvalidateSignatureSet marks the set at keyTimestamp invalid. Tokens signed
// under it stop verifying.
func (s *Service) InvalidateSignatureSet(ctx context.Context, tenant, keyTimestamp string) error {
	if tenant == "" {
		return services.ErrMissingTenant
	}

	err := s.repo.Invalidate(ctx, tenant, keyTimestamp)
	if errors.Is(err, repositories.ErrNotFound) {
		return services.Wrap(services.ErrSignatureNotFound, err).WithDetail("key_timestamp", keyTimestamp)
	}
	if err != nil {
		return services.Wrap(services.ErrDatabaseError, err)
	}

	s.cache.Invalidate(CacheKey{Tenant: tenant, KeyTimestamp: keyTimestamp})
	s.metrics.RecordSignatureWrite("invalidate")
	s.logger.Info("signature set invalidated",
		zap.String("tenant", tenant),
		zap.String("key_timestamp", keyTimestamp),
	)
	return nil
}

// ListKeyTimestamps returns the valid key timestamps of tenant in ascending order
func (s *Service) ListKeyTimestamps(ctx context.Context, tenant string) ([]string, error) {
	if tenant == "" {
		return nil, services.ErrMissingTenant
	}
	timestamps, err := s.repo.ListValidTimestamps(ctx, tenant)
	if err != nil {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	return timestamps, nil
}

// LatestKeyTimestamp returns the greatest valid key timestamp of tenant
func (s *Service) LatestKeyTimestamp(ctx context.Context, tenant string) (string, error) {
	timestamps, err := s.ListKeyTimestamps(ctx, tenant)
	if err != nil {
		return "", err
	}
	latest, ok := keys.Latest(timestamps)
	if !ok {
		return "", services.Wrap(services.ErrSignatureNotFound, nil).WithDetail("tenant", tenant)
	}
	return latest, nil
}

// GetSignatureSet returns the public view of the valid set at keyTimestamp
func (s *Service) GetSignatureSet(ctx context.Context, tenant, keyTimestamp string) (*models.ApplicationSignatureSet, error) {
	set, err := s.validSet(ctx, tenant, keyTimestamp)
	if err != nil {
		return nil, err
	}
	return set.ToApplicationSignatureSet(), nil
}

// GetLatestSignatureSet returns the public view of the latest valid set
func (s *Service) GetLatestSignatureSet(ctx context.Context, tenant string) (*models.ApplicationSignatureSet, error) {
	latest, err := s.LatestKeyTimestamp(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return s.GetSignatureSet(ctx, tenant, latest)
}

// GetApplicationSignature returns the application public key at keyTimestamp
func (s *Service) GetApplicationSignature(ctx context.Context, tenant, keyTimestamp string) (*models.Signature, error) {
	set, err := s.validSet(ctx, tenant, keyTimestamp)
	if err != nil {
		return nil, err
	}
	sig := set.ApplicationSignature()
	return &sig, nil
}

// GetLatestApplicationSignature returns the application public key of the latest valid set
func (s *Service) GetLatestApplicationSignature(ctx context.Context, tenant string) (string, *models.Signature, error) {
	latest, err := s.LatestKeyTimestamp(ctx, tenant)
	if err != nil {
		return "", nil, err
	}
	sig, err := s.GetApplicationSignature(ctx, tenant, latest)
	if err != nil {
		return "", nil, err
	}
	return latest, sig, nil
}

// GetLatestApplicationSigningKeyPair returns the application key pair of the
// latest valid set, for signing tokens issued by this service.
func (s *Service) GetLatestApplicationSigningKeyPair(ctx context.Context, tenant string) (string, *rsa.PrivateKey, error) {
	latest, err := s.LatestKeyTimestamp(ctx, tenant)
	if err != nil {
		return "", nil, err
	}
	set, err := s.validSet(ctx, tenant, latest)
	if err != nil {
		return "", nil, err
	}
	return latest, set.ApplicationKey, nil
}

func (s *Service) validSet(ctx context.Context, tenant, keyTimestamp string) (*models.SignatureSet, error) {
	if tenant == "" {
		return nil, services.ErrMissingTenant
	}
	set, err := s.repo.Get(ctx, tenant, keyTimestamp)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, services.Wrap(services.ErrSignatureNotFound, err).WithDetail("key_timestamp", keyTimestamp)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrDatabaseError, err)
	}
	if !set.Valid {
		return nil, services.Wrap(services.ErrSignatureNotFound, nil).WithDetail("key_timestamp", keyTimestamp)
	}
	return set, nil
}

// GetKey resolves the public key that verifies a token of tokenType signed
// under keyTimestamp. Unknown and invalidated timestamps yield ErrInvalidKeyVersion.
func (s *Service) GetKey(ctx context.Context, tokenType token.Type, tenant, keyTimestamp string) (*rsa.PublicKey, error) {
	switch tokenType {
	case token.System:
		pub, err := s.systemKeys.SystemKey(ctx, keyTimestamp)
		if err != nil {
			return nil, services.Wrap(services.ErrInvalidKeyVersion, err).WithDetail("key_timestamp", keyTimestamp)
		}
		return pub, nil
	case token.Tenant:
		return s.tenantKey(ctx, tenant, keyTimestamp)
	default:
		return nil, services.Wrap(services.ErrInvalidArgument, fmt.Errorf("no key for token type %q", tokenType))
	}
}

func (s *Service) tenantKey(ctx context.Context, tenant, keyTimestamp string) (*rsa.PublicKey, error) {
	if tenant == "" {
		return nil, services.ErrMissingTenant
	}

	cacheKey := CacheKey{Tenant: tenant, KeyTimestamp: keyTimestamp}
	if pub, ok := s.cache.Get(cacheKey); ok {
		s.metrics.RecordKeyCache(true)
		return pub, nil
	}
	s.metrics.RecordKeyCache(false)

	v, err, _ := s.group.Do(cacheKey.String(), func() (interface{}, error) {
		generation := s.cache.Generation(cacheKey)
		set, err := s.repo.Get(ctx, tenant, keyTimestamp)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.Wrap(services.ErrInvalidKeyVersion, err).WithDetail("key_timestamp", keyTimestamp)
		}
		if err != nil {
			return nil, services.Wrap(services.ErrDatabaseError, err)
		}
		if !set.Valid {
			s.logger.Warn("stale key used",
				zap.String("tenant", tenant),
				zap.String("key_timestamp", keyTimestamp),
				zap.String("token_type", string(token.Tenant)),
			)
			s.metrics.RecordStaleKeyUse(string(token.Tenant))
			return nil, services.Wrap(services.ErrInvalidKeyVersion, nil).WithDetail("key_timestamp", keyTimestamp)
		}

		pub, err := keys.PublicKey(set.IdentityManager.PublicKeyMod, set.IdentityManager.PublicKeyExp)
		if err != nil {
			return nil, services.Wrap(services.ErrInvalidKeyVersion, err)
		}
		if !s.cache.Set(cacheKey, pub, generation) {
			s.logger.Debug("key invalidated while loading, not cached",
				zap.String("tenant", tenant),
				zap.String("key_timestamp", keyTimestamp),
			)
		}
		return pub, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rsa.PublicKey), nil
}

// RefreshKeyResolver returns a resolver for refresh tokens issued by this
// service for tenant. Tokens from any other source application are rejected.
func (s *Service) RefreshKeyResolver(ctx context.Context, tenant string) token.KeyResolver {
	return func(sourceApplication, keyTimestamp string) (*rsa.PublicKey, error) {
		if sourceApplication != s.cfg.Application {
			return nil, fmt.Errorf("refresh token issued by %q", sourceApplication)
		}
		set, err := s.validSet(ctx, tenant, keyTimestamp)
		if err != nil {
			return nil, err
		}
		return &set.ApplicationKey.PublicKey, nil
	}
}

// IssueRefreshToken signs a refresh token for user of tenant with the
// application key of the latest valid signature set.
func (s *Service) IssueRefreshToken(ctx context.Context, tenant, user string) (*token.Result, error) {
	keyTimestamp, priv, err := s.GetLatestApplicationSigningKeyPair(ctx, tenant)
	if err != nil {
		return nil, err
	}
	res, err := token.BuildRefresh(token.RefreshParams{
		User:              user,
		SourceApplication: s.cfg.Application,
		KeyTimestamp:      keyTimestamp,
		PrivateKey:        priv,
		SecondsToLive:     int64(s.cfg.RefreshTTL / time.Second),
	})
	if errors.Is(err, token.ErrInvalidArgument) {
		return nil, services.Wrap(services.ErrInvalidArgument, err)
	}
	if err != nil {
		return nil, services.WrapInternal("failed to sign refresh token", err)
	}

	s.logger.Debug("refresh token issued",
		zap.String("tenant", tenant),
		zap.String("user", user),
		zap.String("key_timestamp", keyTimestamp),
	)
	return res, nil
}

// VerifyRefreshToken checks a refresh token issued by this service for tenant.
// Tokens of another application or of an invalidated key timestamp are
// rejected with ErrInvalidToken.
func (s *Service) VerifyRefreshToken(ctx context.Context, tenant, raw string) (*token.RefreshClaims, error) {
	if tenant == "" {
		return nil, services.ErrMissingTenant
	}

	var lookupErr error
	resolve := s.RefreshKeyResolver(ctx, tenant)
	claims, err := token.ParseRefresh(raw, func(sourceApplication, keyTimestamp string) (*rsa.PublicKey, error) {
		key, err := resolve(sourceApplication, keyTimestamp)
		lookupErr = err
		return key, err
	})
	if err != nil {
		if services.IsInternalError(lookupErr) {
			return nil, lookupErr
		}
		return nil, services.Wrap(services.ErrInvalidToken, err)
	}
	return claims, nil
}

// CacheStats exposes key cache statistics
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

// Ping checks the signature store is reachable
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}
