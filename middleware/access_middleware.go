package middleware

import (
	"context"
	"net/http"

	"github.com/upb/anubis/internal/access"
	"github.com/upb/anubis/internal/auth"
	"github.com/upb/anubis/services"
	"github.com/upb/anubis/utils"
	"go.uber.org/zap"
)

// Authorizer decides whether a request may proceed
type Authorizer interface {
	Authorize(ctx context.Context, req *access.Request) error
}

// AccessMiddleware enforces access decisions
type AccessMiddleware struct {
	authorizer Authorizer
	logger     *zap.Logger
}

// NewAccessMiddleware creates a new AccessMiddleware
func NewAccessMiddleware(authorizer Authorizer, logger *zap.Logger) *AccessMiddleware {
	return &AccessMiddleware{
		authorizer: authorizer,
		logger:     logger,
	}
}

// Enforce evaluates the principal's permissions for the request and answers
// refusals exactly like an unknown route. This must run after Authenticate.
func (m *AccessMiddleware) Enforce(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		req := &access.Request{
			Principal: auth.PrincipalFromContext(ctx),
			Method:    r.Method,
			Path:      r.URL.Path,
		}

		if err := m.authorizer.Authorize(ctx, req); err != nil {
			if !services.IsForbiddenError(err) {
				m.logger.Error("access decision failed",
					zap.String("request_id", GetRequestIDFromContext(ctx)),
					zap.Error(err))
			}
			_ = utils.WriteNotFound(w, "")
			return
		}

		next.ServeHTTP(w, r)
	})
}
