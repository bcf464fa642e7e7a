package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/upb/anubis/config"
	"github.com/upb/anubis/internal/access"
	"github.com/upb/anubis/internal/auth"
	"github.com/upb/anubis/internal/keys"
	"github.com/upb/anubis/internal/observability"
	"github.com/upb/anubis/internal/permittable"
	"github.com/upb/anubis/internal/token"
	"github.com/upb/anubis/middleware"
	"github.com/upb/anubis/repositories"
	"github.com/upb/anubis/repositories/memory"
	"github.com/upb/anubis/repositories/postgres"
	"github.com/upb/anubis/services/signature"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB // nil with in-memory storage
	Logger  *zap.Logger
	Metrics *observability.Metrics // nil when metrics are disabled

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Signatures repositories.SignatureRepository
	TxManager  repositories.TransactionManager

	// Key material and endpoint registry
	SystemKeys   keys.SystemKeyProvider
	Permittables *permittable.Registry

	// Services
	SignatureService *signature.Service
	Assembler        *auth.Assembler
	Authenticator    *auth.Authenticator
	AccessEngine     *access.Engine

	// Middleware
	AuthMiddleware   *middleware.AuthMiddleware
	AccessMiddleware *middleware.AccessMiddleware
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics()
	}

	if err := deps.initStorage(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initSystemKeys(cfg); err != nil {
		deps.closeStorage()
		return nil, fmt.Errorf("failed to initialize system keys: %w", err)
	}

	if err := deps.initPermittables(cfg); err != nil {
		deps.closeStorage()
		return nil, fmt.Errorf("failed to initialize permittables: %w", err)
	}

	deps.initServices(cfg)
	deps.initAuth(cfg)

	logger.Info("all dependencies initialized successfully",
		zap.String("application", cfg.Application.ID()),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("authentication_enabled", cfg.Auth.Enabled))
	return deps, nil
}

// initStorage opens the signature store selected by the configuration
func (d *Dependencies) initStorage(ctx context.Context, cfg *config.Config) error {
	if cfg.Storage.Driver != config.StoragePostgres {
		d.Signatures = memory.NewSignatureRepository()
		d.TxManager = memory.NewTransactionManager()
		d.Logger.Warn("using in-memory signature storage, key material is lost on restart")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if err := factory.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	repos := factory.NewRepositories()
	d.Signatures = repos.Signatures
	d.TxManager = factory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
	return nil
}

// initSystemKeys builds the system key chain: the statically configured key
// first, then the JWKS endpoint.
func (d *Dependencies) initSystemKeys(cfg *config.Config) error {
	var chain keys.ChainProvider

	if cfg.Auth.SystemPublicKeyModulus != "" {
		mod, err := keys.ParseBigInt(cfg.Auth.SystemPublicKeyModulus)
		if err != nil {
			return fmt.Errorf("system public key modulus: %w", err)
		}
		exp, err := keys.ParseBigInt(cfg.Auth.SystemPublicKeyExponent)
		if err != nil {
			return fmt.Errorf("system public key exponent: %w", err)
		}
		pub, err := keys.PublicKey(mod, exp)
		if err != nil {
			return err
		}

		timestamp := cfg.Auth.SystemKeyTimestamp
		if timestamp == "" {
			timestamp = token.DefaultKeyTimestamp
		}
		static := keys.NewStaticProvider()
		static.Add(timestamp, pub)
		chain = append(chain, static)
		d.Logger.Info("static system key configured", zap.String("key_timestamp", timestamp))
	}

	if cfg.Auth.SystemJWKSURL != "" {
		chain = append(chain, keys.NewJWKSProvider(keys.JWKSConfig{
			URL:      cfg.Auth.SystemJWKSURL,
			CacheTTL: cfg.Auth.SystemJWKSCacheTTL,
		}))
		d.Logger.Info("system JWKS configured", zap.String("url", cfg.Auth.SystemJWKSURL))
	}

	if len(chain) == 0 {
		d.Logger.Warn("no system key source configured, system tokens will be rejected")
	}
	d.SystemKeys = chain
	return nil
}

// initPermittables builds the endpoint registry from the built-in table and the optional file
func (d *Dependencies) initPermittables(cfg *config.Config) error {
	registry, err := permittable.Build(
		cfg.Application.ID(),
		cfg.Auth.PermittablesFile,
		permittable.WithGuestProbes(cfg.Auth.AcceptGuestTokensForSystemEndpoints),
	)
	if err != nil {
		return err
	}
	d.Permittables = registry

	if cfg.Auth.AcceptGuestTokensForSystemEndpoints {
		d.Logger.Warn("probe endpoints are open to guests")
	}
	d.Logger.Info("permittables registered", zap.Int("endpoints", len(registry.Endpoints())))
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config) {
	d.SignatureService = signature.NewService(
		d.Signatures,
		d.TxManager,
		d.SystemKeys,
		d.Metrics,
		signature.Config{
			Application:    cfg.Application.ID(),
			AllowOverwrite: cfg.Auth.AllowSignatureOverwrite,
			KeyBits:        cfg.Auth.KeyBits,
			CacheSize:      cfg.KeyCache.Size,
			CacheTTL:       cfg.KeyCache.TTL,
			RefreshTTL:     cfg.Auth.RefreshTokenTTL,
		},
		d.Logger.Named("signature"),
	)
}

func (d *Dependencies) initAuth(cfg *config.Config) {
	d.Assembler = auth.NewAssembler(d.Permittables)
	d.Authenticator = auth.NewAuthenticator(d.SignatureService, d.Assembler, d.Metrics, d.Logger.Named("auth"))
	d.AccessEngine = access.NewEngine(d.Metrics, d.Logger.Named("access"), access.DefaultVoters()...)

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Authenticator, d.Logger)
	d.AccessMiddleware = middleware.NewAccessMiddleware(d.AccessEngine, d.Logger)

	if !cfg.Auth.Enabled {
		d.Logger.Warn("authentication disabled, every request is trusted")
	}
}

// SQLDB returns the database pool, or nil with in-memory storage
func (d *Dependencies) SQLDB() *sql.DB {
	if d.DB == nil {
		return nil
	}
	return d.DB.DB
}

func (d *Dependencies) closeStorage() {
	if d.RepoFactory != nil {
		_ = d.RepoFactory.Close()
		d.RepoFactory = nil
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
