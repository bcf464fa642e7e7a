package auth

import (
	"context"

	"github.com/upb/anubis/internal/permission"
	"github.com/upb/anubis/internal/token"
)

// Principal is an authenticated caller
type Principal struct {
	Type              token.Type
	Identity          string
	Tenant            string
	Token             string // raw bearer token, empty for guests
	KeyTimestamp      string
	Audience          []string
	SourceApplication string
	Permissions       *permission.Set
}

// IsGuest reports whether the caller presented no token
func (p *Principal) IsGuest() bool {
	return p == nil || p.Type == token.Guest
}

// Can reports whether the principal may perform op on path
func (p *Principal) Can(path string, op permission.Operation) bool {
	if p == nil {
		return false
	}
	return p.Permissions.Grants(path, op, p.Identity)
}

type principalKey struct{}

// WithPrincipal adds the principal to the context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext retrieves the principal from context, or nil
func PrincipalFromContext(ctx context.Context) *Principal {
	if p, ok := ctx.Value(principalKey{}).(*Principal); ok {
		return p
	}
	return nil
}
