package utils

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps 2xx payloads
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// errorCodes maps a status to the machine readable error code of its body.
// Statuses not listed are reported as internal_error.
var errorCodes = map[int]string{
	http.StatusBadRequest:         "bad_request",
	http.StatusUnauthorized:       "unauthorized",
	http.StatusNotFound:           "not_found",
	http.StatusConflict:           "conflict",
	http.StatusServiceUnavailable: "unavailable",
}

// Default messages. Authentication failures and denials always use these so
// that callers cannot tell one failure kind from another.
const (
	msgUnauthorized = "Authentication required"
	msgNotFound     = "Resource not found"
	msgInternal     = "Internal server error"
)

// WriteJSON writes data as JSON with the given status. A nil data writes no body.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes 200 with data in the envelope
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// WriteAccepted writes 202
func WriteAccepted(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusAccepted, SuccessResponse{Message: message})
}

// WriteError writes an ErrorResponse whose code is derived from status
func WriteError(w http.ResponseWriter, status int, message string, details map[string]interface{}) error {
	code, ok := errorCodes[status]
	if !ok {
		code = "internal_error"
	}
	return WriteJSON(w, status, ErrorResponse{
		Error:   code,
		Message: message,
		Details: details,
	})
}

func WriteBadRequest(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return WriteError(w, http.StatusBadRequest, message, details)
}

// WriteUnauthorized writes 401. An empty message yields the generic one.
func WriteUnauthorized(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusUnauthorized, orDefault(message, msgUnauthorized), nil)
}

// WriteNotFound writes 404. Access denials pass an empty message so their body
// is byte-identical to that of an unknown route.
func WriteNotFound(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusNotFound, orDefault(message, msgNotFound), nil)
}

func WriteConflict(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return WriteError(w, http.StatusConflict, message, details)
}

// WriteInternalServerError writes 500 without any cause
func WriteInternalServerError(w http.ResponseWriter, message string) error {
	return WriteError(w, http.StatusInternalServerError, orDefault(message, msgInternal), nil)
}

func orDefault(message, fallback string) string {
	if message == "" {
		return fallback
	}
	return message
}
