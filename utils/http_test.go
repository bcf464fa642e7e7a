package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"message": "test"}

		err := WriteJSON(w, http.StatusOK, data)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusNoContent, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteOK(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"result": "success"}

	err := WriteOK(w, data)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)

	var response SuccessResponse
	err = json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	dataMap := response.Data.(map[string]interface{})
	assert.Equal(t, "success", dataMap["result"])
}

func TestWriteAccepted(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteAccepted(w, "signature set invalidated")
	require.NoError(t, err)

	assert.Equal(t, http.StatusAccepted, w.Code)

	var response SuccessResponse
	err = json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)
	assert.Equal(t, "signature set invalidated", response.Message)
}

func TestWriteBadRequest(t *testing.T) {
	w := httptest.NewRecorder()
	details := map[string]interface{}{"header": "X-Tenant-Public-Key-Modulus"}

	err := WriteBadRequest(w, "Header [X-Tenant-Public-Key-Modulus] must be a valid big integer.", details)
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	err = json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	assert.Equal(t, "bad_request", response.Error)
	assert.Equal(t, "X-Tenant-Public-Key-Modulus", response.Details["header"])
}

func TestWriteUnauthorized(t *testing.T) {
	t.Run("with custom message", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteUnauthorized(w, "Invalid credentials")
		require.NoError(t, err)

		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var response ErrorResponse
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, "unauthorized", response.Error)
		assert.Equal(t, "Invalid credentials", response.Message)
	})

	t.Run("with empty message", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteUnauthorized(w, "")
		require.NoError(t, err)

		var response ErrorResponse
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, "Authentication required", response.Message)
	})
}

func TestWriteNotFound(t *testing.T) {
	t.Run("with custom message", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteNotFound(w, "Signature set not found")
		require.NoError(t, err)

		assert.Equal(t, http.StatusNotFound, w.Code)

		var response ErrorResponse
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)

		assert.Equal(t, "not_found", response.Error)
		assert.Equal(t, "Signature set not found", response.Message)
	})

	t.Run("empty message responses are identical", func(t *testing.T) {
		first := httptest.NewRecorder()
		second := httptest.NewRecorder()

		require.NoError(t, WriteNotFound(first, ""))
		require.NoError(t, WriteNotFound(second, ""))

		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Contains(t, first.Body.String(), "Resource not found")
	})
}

func TestWriteConflict(t *testing.T) {
	w := httptest.NewRecorder()
	details := map[string]interface{}{"key_timestamp": "2024-01-01T00_00_00"}

	err := WriteConflict(w, "Signature set already exists", details)
	require.NoError(t, err)

	assert.Equal(t, http.StatusConflict, w.Code)

	var response ErrorResponse
	err = json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	assert.Equal(t, "conflict", response.Error)
	assert.Equal(t, "2024-01-01T00_00_00", response.Details["key_timestamp"])
}

func TestWriteInternalServerError(t *testing.T) {
	w := httptest.NewRecorder()

	err := WriteInternalServerError(w, "")
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	err = json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	assert.Equal(t, "internal_error", response.Error)
	assert.Equal(t, "Internal server error", response.Message)
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name              string
		status            int
		message           string
		expectedErrorType string
	}{
		{
			name:              "bad request",
			status:            http.StatusBadRequest,
			message:           "Invalid input",
			expectedErrorType: "bad_request",
		},
		{
			name:              "unauthorized",
			status:            http.StatusUnauthorized,
			message:           "Not authenticated",
			expectedErrorType: "unauthorized",
		},
		{
			name:              "not found",
			status:            http.StatusNotFound,
			message:           "Not found",
			expectedErrorType: "not_found",
		},
		{
			name:              "conflict",
			status:            http.StatusConflict,
			message:           "Conflict",
			expectedErrorType: "conflict",
		},
		{
			name:              "unavailable",
			status:            http.StatusServiceUnavailable,
			message:           "Not ready",
			expectedErrorType: "unavailable",
		},
		{
			name:              "unknown status defaults to internal error",
			status:            http.StatusTeapot,
			message:           "I'm a teapot",
			expectedErrorType: "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			err := WriteError(w, tt.status, tt.message, nil)
			require.NoError(t, err)

			assert.Equal(t, tt.status, w.Code)

			var response ErrorResponse
			err = json.NewDecoder(w.Body).Decode(&response)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedErrorType, response.Error)
			assert.Equal(t, tt.message, response.Message)
		})
	}
}
