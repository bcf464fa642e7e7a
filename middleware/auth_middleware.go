package middleware

import (
	"context"
	"net/http"

	"github.com/upb/anubis/internal/auth"
	"github.com/upb/anubis/internal/token"
	"github.com/upb/anubis/services"
	"github.com/upb/anubis/utils"
	"go.uber.org/zap"
)

// Authenticator turns request credentials into a principal
type Authenticator interface {
	Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Principal, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	authenticator Authenticator
	logger        *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(authenticator Authenticator, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		logger:        logger,
	}
}

// Authenticate verifies the request credentials and stores the principal in
// the context. Every verification failure gets the same 401 response; the
// failure kind is only logged. Requests without a token continue as guests.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)
		creds := auth.Credentials{
			User:          r.Header.Get(HeaderUser),
			Authorization: r.Header.Get(HeaderAuthorization),
			Tenant:        GetTenantFromContext(ctx),
		}

		principal, err := m.authenticator.Authenticate(ctx, creds)
		if err != nil {
			if services.IsInternalError(err) {
				m.logger.Error("authentication failed",
					zap.String("request_id", requestID),
					zap.String("tenant", creds.Tenant),
					zap.Error(err))
				_ = utils.WriteInternalServerError(w, "")
				return
			}
			m.logger.Info("authentication rejected",
				zap.String("request_id", requestID),
				zap.String("tenant", creds.Tenant),
				zap.String("user", creds.User),
				zap.String("reason", services.GetErrorCode(err)),
				zap.Any("details", services.GetErrorDetails(err)))
			_ = utils.WriteUnauthorized(w, "")
			return
		}

		m.logger.Info("authentication accepted",
			zap.String("request_id", requestID),
			zap.String("tenant", principal.Tenant),
			zap.String("user", principal.Identity),
			zap.String("token_type", string(principal.Type)),
			zap.String("key_timestamp", principal.KeyTimestamp))

		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(ctx, principal)))
	})
}

// Bypass stands in for Authenticate when authentication is disabled. The
// caller becomes an unrestricted principal named by the User header.
func (m *AuthMiddleware) Bypass(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identity := r.Header.Get(HeaderUser)
		if identity == "" {
			identity = token.GuestUser
		}
		principal := &auth.Principal{
			Type:     token.System,
			Identity: identity,
			Tenant:   GetTenantFromContext(ctx),
		}
		m.logger.Debug("authentication bypassed",
			zap.String("request_id", GetRequestIDFromContext(ctx)),
			zap.String("user", identity))
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(ctx, principal)))
	})
}
