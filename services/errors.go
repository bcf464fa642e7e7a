package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context.
// Code distinguishes errors of the same Type, e.g. the authentication failure kinds.
type DomainError struct {
	Type    ErrorType
	Code    string
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on Type, and on Code when the target has one
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

func newCoded(errType ErrorType, code, message string) *DomainError {
	e := NewDomainError(errType, message, nil)
	e.Code = code
	return e
}

// Wrap returns a fresh copy of a sentinel carrying cause. The sentinel itself
// is never mutated, so details can be attached to the result safely.
func Wrap(sentinel *DomainError, cause error) *DomainError {
	return &DomainError{
		Type:    sentinel.Type,
		Code:    sentinel.Code,
		Message: sentinel.Message,
		Err:     cause,
		Details: make(map[string]interface{}),
	}
}

// Authentication failure kinds. Callers only ever see one generic rejection;
// the kind is logged.
var (
	ErrInvalidHeader         = newCoded(ErrorTypeUnauthorized, "invalid_header", "invalid identity header")
	ErrInvalidToken          = newCoded(ErrorTypeUnauthorized, "invalid_token", "invalid authentication token")
	ErrInvalidTokenIssuer    = newCoded(ErrorTypeUnauthorized, "invalid_token_issuer", "unknown token issuer")
	ErrInvalidTokenVersion   = newCoded(ErrorTypeUnauthorized, "invalid_token_version", "token key timestamp mismatch")
	ErrInvalidTokenAlgorithm = newCoded(ErrorTypeUnauthorized, "invalid_token_algorithm", "token not signed with an RSA algorithm")
	ErrMissingTokenContent   = newCoded(ErrorTypeUnauthorized, "missing_token_content", "token content missing or malformed")
	ErrInvalidKeyVersion     = newCoded(ErrorTypeUnauthorized, "invalid_key_version", "no valid key for token key timestamp")
)

var (
	// Access decisions
	ErrAccessDenied = newCoded(ErrorTypeForbidden, "access_denied", "access denied")

	// Validation errors
	ErrMissingTenant       = newCoded(ErrorTypeValidation, "missing_tenant", "tenant context required")
	ErrInvalidArgument     = newCoded(ErrorTypeValidation, "invalid_argument", "invalid argument")
	ErrInvalidKeyTimestamp = newCoded(ErrorTypeValidation, "invalid_key_timestamp", "invalid key timestamp")
	ErrInvalidInput        = newCoded(ErrorTypeValidation, "invalid_input", "invalid input")

	// Not found errors
	ErrSignatureNotFound = newCoded(ErrorTypeNotFound, "signature_not_found", "signature set not found")

	// Conflict errors
	ErrSignatureExists = newCoded(ErrorTypeConflict, "signature_exists", "signature set already exists")

	// Internal errors
	ErrInternal      = newCoded(ErrorTypeInternal, "internal", "internal server error")
	ErrDatabaseError = newCoded(ErrorTypeInternal, "database", "database error")
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return GetErrorType(err) == ErrorTypeConflict
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorCode returns the Code of a domain error, or empty string if not a domain error
func GetErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
