package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/anubis/internal/auth"
	"github.com/upb/anubis/internal/token"
	"github.com/upb/anubis/services"
	"github.com/upb/anubis/utils"
	"go.uber.org/zap"
)

// MockAuthenticator is a mock implementation of Authenticator
type MockAuthenticator struct {
	mock.Mock
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Principal, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Principal), args.Error(1)
}

func TestAuthenticate(t *testing.T) {
	logger := zap.NewNop()

	t.Run("principal is stored in context", func(t *testing.T) {
		authenticator := new(MockAuthenticator)
		m := NewAuthMiddleware(authenticator, logger)

		principal := &auth.Principal{Type: token.Tenant, Identity: "alice", Tenant: "tenant-a"}
		authenticator.On("Authenticate", mock.Anything, auth.Credentials{
			User:          "alice",
			Authorization: "Bearer abc",
			Tenant:        "tenant-a",
		}).Return(principal, nil)

		handler := Tenant(m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Same(t, principal, auth.PrincipalFromContext(r.Context()))
			w.WriteHeader(http.StatusOK)
		})))

		req := httptest.NewRequest(http.MethodGet, "/permittables", nil)
		req.Header.Set(HeaderUser, "alice")
		req.Header.Set(HeaderAuthorization, "Bearer abc")
		req.Header.Set(HeaderTenant, "tenant-a")
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		authenticator.AssertExpectations(t)
	})

	t.Run("every failure kind gets the same response", func(t *testing.T) {
		kinds := []error{
			services.ErrInvalidHeader,
			services.ErrInvalidToken,
			services.ErrInvalidTokenIssuer,
			services.ErrInvalidTokenVersion,
			services.ErrInvalidTokenAlgorithm,
			services.ErrMissingTokenContent,
			services.ErrInvalidKeyVersion,
			services.ErrMissingTenant,
		}

		var bodies []string
		for _, kind := range kinds {
			authenticator := new(MockAuthenticator)
			authenticator.On("Authenticate", mock.Anything, mock.Anything).Return(nil, services.Wrap(kind.(*services.DomainError), nil))
			m := NewAuthMiddleware(authenticator, logger)

			handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler must not run")
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/signatures", nil))

			assert.Equal(t, http.StatusUnauthorized, w.Code, kind.Error())
			bodies = append(bodies, w.Body.String())
		}
		for _, body := range bodies[1:] {
			assert.Equal(t, bodies[0], body)
		}

		var response utils.ErrorResponse
		require.NoError(t, json.Unmarshal([]byte(bodies[0]), &response))
		assert.Equal(t, "Authentication required", response.Message)
	})

	t.Run("internal failure is 500", func(t *testing.T) {
		authenticator := new(MockAuthenticator)
		authenticator.On("Authenticate", mock.Anything, mock.Anything).
			Return(nil, services.WrapInternal("store down", errors.New("dial tcp")))
		m := NewAuthMiddleware(authenticator, logger)

		w := httptest.NewRecorder()
		m.Authenticate(http.NotFoundHandler()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/signatures", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "dial tcp")
	})
}

func TestBypass(t *testing.T) {
	m := NewAuthMiddleware(nil, zap.NewNop())

	handler := Tenant(m.Bypass(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := auth.PrincipalFromContext(r.Context())
		require.NotNil(t, p)
		assert.Equal(t, "operator", p.Identity)
		assert.Equal(t, "tenant-a", p.Tenant)
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/signatures", nil)
	req.Header.Set(HeaderUser, "operator")
	req.Header.Set(HeaderTenant, "tenant-a")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
