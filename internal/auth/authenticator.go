package auth

import (
	"context"
	"crypto/rsa"
	"errors"

	"github.com/upb/anubis/internal/observability"
	"github.com/upb/anubis/internal/token"
	"github.com/upb/anubis/services"
	"go.uber.org/zap"
)

// KeyProvider resolves the public key that verifies a token of tokenType
// signed under keyTimestamp. Unknown or invalidated timestamps must yield
// services.ErrInvalidKeyVersion.
type KeyProvider interface {
	GetKey(ctx context.Context, tokenType token.Type, tenant, keyTimestamp string) (*rsa.PublicKey, error)
}

// Credentials are the request headers relevant to authentication
type Credentials struct {
	User          string
	Authorization string
	Tenant        string
}

// Authenticator classifies credentials and dispatches to the authenticator of
// the token's trust domain.
type Authenticator struct {
	keys      KeyProvider
	assembler *Assembler
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAuthenticator creates an Authenticator. metrics may be nil.
func NewAuthenticator(keys KeyProvider, assembler *Assembler, metrics *observability.Metrics, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		keys:      keys,
		assembler: assembler,
		metrics:   metrics,
		logger:    logger,
	}
}

// Authenticate verifies creds and returns the caller's principal.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (*Principal, error) {
	typ, principal, err := a.authenticate(ctx, creds)
	if err != nil {
		a.metrics.RecordAuthentication(string(typ), observability.OutcomeFailure, services.GetErrorCode(err))
		return nil, err
	}
	a.metrics.RecordAuthentication(string(typ), observability.OutcomeSuccess, "")
	return principal, nil
}

func (a *Authenticator) authenticate(ctx context.Context, creds Credentials) (token.Type, *Principal, error) {
	if creds.Authorization == "" || creds.Authorization == token.NoAuthentication {
		p, err := a.guest(creds)
		return token.Guest, p, err
	}

	raw, err := token.StripBearer(creds.Authorization)
	if err != nil {
		return "", nil, services.Wrap(services.ErrInvalidHeader, err)
	}

	info, err := token.Decode(raw)
	switch {
	case errors.Is(err, token.ErrUnknownIssuer):
		return "", nil, services.Wrap(services.ErrInvalidTokenIssuer, err)
	case errors.Is(err, token.ErrUnsupportedAlgorithm):
		return "", nil, services.Wrap(services.ErrInvalidTokenAlgorithm, err)
	case err != nil:
		return "", nil, services.Wrap(services.ErrInvalidToken, err)
	}

	a.logger.Debug("token decoded",
		zap.String("token_type", string(info.Type)),
		zap.String("key_timestamp", info.KeyTimestamp),
		zap.String("token", raw),
	)

	switch info.Type {
	case token.System:
		p, err := a.system(ctx, info, creds)
		return token.System, p, err
	case token.Tenant:
		p, err := a.tenant(ctx, info, creds)
		return token.Tenant, p, err
	default:
		return info.Type, nil, services.Wrap(services.ErrInvalidTokenIssuer, nil)
	}
}

func (a *Authenticator) guest(creds Credentials) (*Principal, error) {
	if creds.User != "" && creds.User != token.GuestUser {
		return nil, services.Wrap(services.ErrInvalidHeader, nil).WithDetail("user", creds.User)
	}
	return &Principal{
		Type:        token.Guest,
		Identity:    token.GuestUser,
		Tenant:      creds.Tenant,
		Permissions: a.assembler.Guest(),
	}, nil
}

func (a *Authenticator) system(ctx context.Context, info *token.Info, creds Credentials) (*Principal, error) {
	if creds.User != token.SystemUser {
		return nil, services.Wrap(services.ErrInvalidHeader, nil).WithDetail("user", creds.User)
	}
	if !info.HasTimestamp {
		return nil, services.Wrap(services.ErrInvalidTokenVersion, nil)
	}

	claims, err := a.verify(ctx, info, creds.Tenant)
	if err != nil {
		return nil, err
	}
	if claims.KeyTimestamp != info.KeyTimestamp {
		return nil, services.Wrap(services.ErrInvalidTokenVersion, nil).WithDetail("key_timestamp", claims.KeyTimestamp)
	}
	if creds.Tenant != "" && claims.Subject != creds.Tenant {
		return nil, services.Wrap(services.ErrInvalidToken, nil).WithDetail("subject", claims.Subject)
	}
	if len(claims.Audience) == 0 {
		return nil, services.Wrap(services.ErrInvalidToken, nil).WithDetail("audience", "missing")
	}

	return &Principal{
		Type:         token.System,
		Identity:     token.SystemUser,
		Tenant:       creds.Tenant,
		Token:        info.Raw,
		KeyTimestamp: info.KeyTimestamp,
		Audience:     claims.Audience,
		Permissions:  a.assembler.System(),
	}, nil
}

func (a *Authenticator) tenant(ctx context.Context, info *token.Info, creds Credentials) (*Principal, error) {
	if creds.Tenant == "" {
		return nil, services.ErrMissingTenant
	}

	claims, err := a.verify(ctx, info, creds.Tenant)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.Subject != creds.User {
		return nil, services.Wrap(services.ErrInvalidToken, nil).WithDetail("subject", claims.Subject)
	}

	perms, err := a.assembler.Tenant(claims.Content)
	if err != nil {
		return nil, err
	}

	return &Principal{
		Type:              token.Tenant,
		Identity:          claims.Subject,
		Tenant:            creds.Tenant,
		Token:             info.Raw,
		KeyTimestamp:      info.KeyTimestamp,
		SourceApplication: claims.SourceApplication,
		Permissions:       perms,
	}, nil
}

// verify resolves the key of the decoded token and checks the signature.
// A key timestamp the provider does not know is reported as
// ErrInvalidTokenVersion.
func (a *Authenticator) verify(ctx context.Context, info *token.Info, tenant string) (*token.Claims, error) {
	key, err := a.keys.GetKey(ctx, info.Type, tenant, info.KeyTimestamp)
	if err != nil {
		if errors.Is(err, services.ErrInvalidKeyVersion) {
			return nil, services.Wrap(services.ErrInvalidTokenVersion, err).WithDetail("key_timestamp", info.KeyTimestamp)
		}
		if services.IsUnauthorizedError(err) || services.IsValidationError(err) {
			return nil, err
		}
		return nil, services.WrapInternal("failed to resolve verification key", err)
	}

	claims, err := token.Verify(info, key)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidToken, err)
	}
	return claims, nil
}
