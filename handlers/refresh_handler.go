package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/upb/anubis/internal/auth"
	"github.com/upb/anubis/internal/token"
	"github.com/upb/anubis/middleware"
	"github.com/upb/anubis/utils"
	"go.uber.org/zap"
)

// HeaderRefreshToken carries the refresh token to verify
const HeaderRefreshToken = "X-Refresh-Token"

// RefreshService issues and verifies refresh tokens signed with the
// application key of a tenant
type RefreshService interface {
	IssueRefreshToken(ctx context.Context, tenant, user string) (*token.Result, error)
	VerifyRefreshToken(ctx context.Context, tenant, raw string) (*token.RefreshClaims, error)
}

// RefreshHandler handles the refresh token endpoints
type RefreshHandler struct {
	service RefreshService
	logger  *zap.Logger
}

// NewRefreshHandler creates a new RefreshHandler
func NewRefreshHandler(service RefreshService, logger *zap.Logger) *RefreshHandler {
	return &RefreshHandler{
		service: service,
		logger:  logger,
	}
}

// RefreshTokenResponse is an issued refresh token
type RefreshTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// RefreshClaimsResponse is the verified content of a refresh token
type RefreshClaimsResponse struct {
	User              string    `json:"user"`
	SourceApplication string    `json:"sourceApplication"`
	KeyTimestamp      string    `json:"keyTimestamp"`
	ExpiresAt         time.Time `json:"expiresAt"`
}

// HandleIssue handles POST /users/{useridentifier}/refresh.
// Access control has already bound the path to the caller's own identity.
func (h *RefreshHandler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := chi.URLParam(r, "useridentifier")
	principal := auth.PrincipalFromContext(ctx)
	if principal == nil || principal.Identity != user {
		_ = utils.WriteNotFound(w, "")
		return
	}

	tenant := middleware.GetTenantFromContext(ctx)
	res, err := h.service.IssueRefreshToken(ctx, tenant, user)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("refresh token issued",
		zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
		zap.String("tenant", tenant),
		zap.String("user", user))

	_ = utils.WriteOK(w, RefreshTokenResponse{Token: res.Token, ExpiresAt: res.ExpiresAt})
}

// HandleVerify handles GET /refresh. The token is read from X-Refresh-Token.
func (h *RefreshHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := r.Header.Get(HeaderRefreshToken)
	if raw == "" {
		_ = utils.WriteBadRequest(w, "Header ["+HeaderRefreshToken+"] is required.", map[string]interface{}{
			"header": HeaderRefreshToken,
		})
		return
	}

	claims, err := h.service.VerifyRefreshToken(ctx, middleware.GetTenantFromContext(ctx), raw)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, RefreshClaimsResponse{
		User:              claims.User,
		SourceApplication: claims.SourceApplication,
		KeyTimestamp:      claims.KeyTimestamp,
		ExpiresAt:         claims.ExpiresAt,
	})
}
