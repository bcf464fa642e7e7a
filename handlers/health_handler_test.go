package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleHealth(t *testing.T) {
	logger := zap.NewNop()

	t.Run("always returns healthy", func(t *testing.T) {
		handler := NewHealthHandler(nil, nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()

		handler.HandleHealth(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		data := response["data"].(map[string]interface{})
		assert.Equal(t, "healthy", data["status"])
		assert.NotEmpty(t, data["timestamp"])
	})
}

func TestHandleReadiness(t *testing.T) {
	logger := zap.NewNop()

	t.Run("healthy when database is available", func(t *testing.T) {
		db, sqlMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		// Expect ping
		sqlMock.ExpectPing()

		// Expect SELECT 1 query
		sqlMock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

		handler := NewHealthHandler(db, nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		w := httptest.NewRecorder()

		handler.HandleReadiness(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		data := response["data"].(map[string]interface{})
		assert.Equal(t, "healthy", data["status"])

		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["database"])

		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("unhealthy when database ping fails", func(t *testing.T) {
		db, sqlMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		// Expect ping to fail
		sqlMock.ExpectPing().WillReturnError(sql.ErrConnDone)

		handler := NewHealthHandler(db, nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		w := httptest.NewRecorder()

		handler.HandleReadiness(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response map[string]interface{}
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		data := response["data"].(map[string]interface{})
		assert.Equal(t, "unhealthy", data["status"])

		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "unhealthy", checks["database"])

		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("unhealthy when database query fails", func(t *testing.T) {
		db, sqlMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()

		// Expect ping to succeed
		sqlMock.ExpectPing()

		// Expect SELECT 1 query to fail
		sqlMock.ExpectQuery("SELECT 1").WillReturnError(sql.ErrConnDone)

		handler := NewHealthHandler(db, nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		w := httptest.NewRecorder()

		handler.HandleReadiness(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response map[string]interface{}
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		data := response["data"].(map[string]interface{})
		assert.Equal(t, "unhealthy", data["status"])

		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "unhealthy", checks["database"])

		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("healthy when no database configured", func(t *testing.T) {
		handler := NewHealthHandler(nil, nil, logger)

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		w := httptest.NewRecorder()

		handler.HandleReadiness(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		err := json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		data := response["data"].(map[string]interface{})
		assert.Equal(t, "healthy", data["status"])

		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["database"])
	})
}

// MockPinger is a mock implementation of Pinger
type MockPinger struct {
	mock.Mock
}

func (m *MockPinger) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func TestHandleReadiness_SignatureStore(t *testing.T) {
	logger := zap.NewNop()

	t.Run("healthy store", func(t *testing.T) {
		store := new(MockPinger)
		store.On("Ping", mock.Anything).Return(nil)

		w := httptest.NewRecorder()
		NewHealthHandler(nil, store, logger).HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		checks := response["data"].(map[string]interface{})["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["signature_store"])
		store.AssertExpectations(t)
	})

	t.Run("unreachable store", func(t *testing.T) {
		store := new(MockPinger)
		store.On("Ping", mock.Anything).Return(errors.New("connection refused"))

		w := httptest.NewRecorder()
		NewHealthHandler(nil, store, logger).HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})
}
