package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/anubis/internal/auth"
	"github.com/upb/anubis/internal/token"
	"github.com/upb/anubis/services"
	"go.uber.org/zap"
)

// MockRefreshService is a mock implementation of RefreshService
type MockRefreshService struct {
	mock.Mock
}

func (m *MockRefreshService) IssueRefreshToken(ctx context.Context, tenant, user string) (*token.Result, error) {
	args := m.Called(ctx, tenant, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*token.Result), args.Error(1)
}

func (m *MockRefreshService) VerifyRefreshToken(ctx context.Context, tenant, raw string) (*token.RefreshClaims, error) {
	args := m.Called(ctx, tenant, raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*token.RefreshClaims), args.Error(1)
}

func TestHandleIssueRefresh(t *testing.T) {
	logger := zap.NewNop()
	alice := &auth.Principal{Type: token.Tenant, Identity: "alice", Tenant: testTenant}
	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("issues for the caller", func(t *testing.T) {
		svc := new(MockRefreshService)
		svc.On("IssueRefreshToken", mock.Anything, testTenant, "alice").
			Return(&token.Result{Token: "a.b.c", ExpiresAt: expires}, nil)

		req := newRequest(http.MethodPost, "/users/alice/refresh", nil, map[string]string{"useridentifier": "alice"})
		req = req.WithContext(auth.WithPrincipal(req.Context(), alice))
		w := httptest.NewRecorder()

		NewRefreshHandler(svc, logger).HandleIssue(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Data RefreshTokenResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "a.b.c", response.Data.Token)
		assert.True(t, expires.Equal(response.Data.ExpiresAt))
		svc.AssertExpectations(t)
	})

	t.Run("someone else", func(t *testing.T) {
		svc := new(MockRefreshService)

		req := newRequest(http.MethodPost, "/users/bob/refresh", nil, map[string]string{"useridentifier": "bob"})
		req = req.WithContext(auth.WithPrincipal(req.Context(), alice))
		w := httptest.NewRecorder()

		NewRefreshHandler(svc, logger).HandleIssue(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		svc.AssertNotCalled(t, "IssueRefreshToken", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("tenant without signature sets", func(t *testing.T) {
		svc := new(MockRefreshService)
		svc.On("IssueRefreshToken", mock.Anything, testTenant, "alice").
			Return(nil, services.Wrap(services.ErrSignatureNotFound, nil))

		req := newRequest(http.MethodPost, "/users/alice/refresh", nil, map[string]string{"useridentifier": "alice"})
		req = req.WithContext(auth.WithPrincipal(req.Context(), alice))
		w := httptest.NewRecorder()

		NewRefreshHandler(svc, logger).HandleIssue(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestHandleVerifyRefresh(t *testing.T) {
	logger := zap.NewNop()

	t.Run("valid token", func(t *testing.T) {
		svc := new(MockRefreshService)
		svc.On("VerifyRefreshToken", mock.Anything, testTenant, "a.b.c").Return(&token.RefreshClaims{
			User:              "alice",
			SourceApplication: "anubis-v1",
			KeyTimestamp:      testTimestamp,
			ExpiresAt:         time.Now().Add(time.Hour),
		}, nil)

		req := newRequest(http.MethodGet, "/refresh", nil, nil)
		req.Header.Set(HeaderRefreshToken, "a.b.c")
		w := httptest.NewRecorder()

		NewRefreshHandler(svc, logger).HandleVerify(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Data RefreshClaimsResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, "alice", response.Data.User)
		assert.Equal(t, "anubis-v1", response.Data.SourceApplication)
		assert.Equal(t, testTimestamp, response.Data.KeyTimestamp)
	})

	t.Run("missing header", func(t *testing.T) {
		svc := new(MockRefreshService)
		w := httptest.NewRecorder()

		NewRefreshHandler(svc, logger).HandleVerify(w, newRequest(http.MethodGet, "/refresh", nil, nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), HeaderRefreshToken)
		svc.AssertNotCalled(t, "VerifyRefreshToken", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejected token", func(t *testing.T) {
		svc := new(MockRefreshService)
		svc.On("VerifyRefreshToken", mock.Anything, testTenant, "forged").
			Return(nil, services.Wrap(services.ErrInvalidToken, errors.New("bad signature")))

		req := newRequest(http.MethodGet, "/refresh", nil, nil)
		req.Header.Set(HeaderRefreshToken, "forged")
		w := httptest.NewRecorder()

		NewRefreshHandler(svc, logger).HandleVerify(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
