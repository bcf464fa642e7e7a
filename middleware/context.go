package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Headers read by the middleware chain
const (
	HeaderUser          = "User"
	HeaderAuthorization = "Authorization"
	HeaderTenant        = "X-Tenant-Identifier"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// TenantKey is the context key for the tenant identifier
	TenantKey contextKey = "tenant"
)

// GetRequestIDFromContext retrieves the request ID from context, falling back
// to the one assigned by chi's RequestID middleware
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return chimw.GetReqID(ctx)
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetTenantFromContext retrieves the tenant identifier from context
func GetTenantFromContext(ctx context.Context) string {
	if val := ctx.Value(TenantKey); val != nil {
		if tenant, ok := val.(string); ok {
			return tenant
		}
	}
	return ""
}

// WithTenant adds a tenant identifier to the context
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}
