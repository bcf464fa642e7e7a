package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/anubis/internal/auth"
	"github.com/upb/anubis/internal/permittable"
	"github.com/upb/anubis/utils"
	"go.uber.org/zap"
)

// Discoverer lists the endpoints that can be granted to tenant users
type Discoverer interface {
	Discoverable() []permittable.Discovered
}

// PermittableHandler serves endpoint discovery and caller permissions
type PermittableHandler struct {
	registry Discoverer
	logger   *zap.Logger
}

// NewPermittableHandler creates a new PermittableHandler
func NewPermittableHandler(registry Discoverer, logger *zap.Logger) *PermittableHandler {
	return &PermittableHandler{
		registry: registry,
		logger:   logger,
	}
}

// HandleList handles GET /permittables
func (h *PermittableHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.registry.Discoverable())
}

// PermissionResponse is one granted permission
type PermissionResponse struct {
	Path      string `json:"path"`
	Operation string `json:"operation"`
	SelfOnly  bool   `json:"selfOnly"`
}

// UserPermissionsResponse lists what a user may call
type UserPermissionsResponse struct {
	User        string               `json:"user"`
	Permissions []PermissionResponse `json:"permissions"`
}

// HandleUserPermissions handles GET /users/{useridentifier}/permissions.
// Access control has already bound the path to the caller's own identity.
func (h *PermittableHandler) HandleUserPermissions(w http.ResponseWriter, r *http.Request) {
	user := chi.URLParam(r, "useridentifier")
	principal := auth.PrincipalFromContext(r.Context())
	if principal == nil || principal.Identity != user {
		_ = utils.WriteNotFound(w, "")
		return
	}

	perms := principal.Permissions.List()
	response := UserPermissionsResponse{
		User:        user,
		Permissions: make([]PermissionResponse, 0, len(perms)),
	}
	for _, p := range perms {
		response.Permissions = append(response.Permissions, PermissionResponse{
			Path:      p.Pattern.String(),
			Operation: string(p.Operation),
			SelfOnly:  p.SelfOnly,
		})
	}
	_ = utils.WriteOK(w, response)
}
