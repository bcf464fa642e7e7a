package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/anubis/internal/auth"
	"github.com/upb/anubis/internal/permission"
	"github.com/upb/anubis/internal/permittable"
	"github.com/upb/anubis/internal/token"
	"go.uber.org/zap"
)

func TestHandleListPermittables(t *testing.T) {
	registry, err := permittable.NewRegistry("anubis-v1", permittable.DefaultEndpoints())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	NewPermittableHandler(registry, zap.NewNop()).HandleList(w, httptest.NewRequest(http.MethodGet, "/permittables", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Data []permittable.Discovered `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Contains(t, response.Data, permittable.Discovered{
		Path:   "anubis-v1/permittables",
		Method: http.MethodGet,
		Group:  "identity__v1__app",
	})
	for _, d := range response.Data {
		assert.NotContains(t, d.Path, "/signatures")
	}
}

func TestHandleUserPermissions(t *testing.T) {
	handler := NewPermittableHandler(nil, zap.NewNop())

	perm, err := permission.New("/users/{useridentifier}/permissions", permission.Read)
	require.NoError(t, err)
	principal := &auth.Principal{
		Type:        token.Tenant,
		Identity:    "alice",
		Tenant:      testTenant,
		Permissions: permission.NewSet(perm),
	}

	t.Run("own permissions", func(t *testing.T) {
		req := newRequest(http.MethodGet, "/users/alice/permissions", nil, map[string]string{"useridentifier": "alice"})
		req = req.WithContext(auth.WithPrincipal(req.Context(), principal))
		w := httptest.NewRecorder()

		handler.HandleUserPermissions(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response struct {
			Data UserPermissionsResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "alice", response.Data.User)
		require.Len(t, response.Data.Permissions, 1)
		assert.Equal(t, PermissionResponse{
			Path:      "/users/{useridentifier}/permissions",
			Operation: "READ",
			SelfOnly:  true,
		}, response.Data.Permissions[0])
	})

	t.Run("someone else", func(t *testing.T) {
		req := newRequest(http.MethodGet, "/users/bob/permissions", nil, map[string]string{"useridentifier": "bob"})
		req = req.WithContext(auth.WithPrincipal(req.Context(), principal))
		w := httptest.NewRecorder()

		handler.HandleUserPermissions(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
