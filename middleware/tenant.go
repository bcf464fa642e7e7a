package middleware

import (
	"net/http"
	"strings"

	"github.com/upb/anubis/utils"
)

// Tenant stores the X-Tenant-Identifier header in the request context
func Tenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := strings.TrimSpace(r.Header.Get(HeaderTenant))
		if tenant == "" {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenant)))
	})
}

// RequireTenant rejects requests without a tenant context with 400.
// Mount it after Tenant on routes that operate on one tenant's key material.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetTenantFromContext(r.Context()) == "" {
			_ = utils.WriteBadRequest(w, "Header ["+HeaderTenant+"] is required.", map[string]interface{}{
				"header": HeaderTenant,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
