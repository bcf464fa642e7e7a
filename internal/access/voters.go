package access

import (
	"context"

	"github.com/upb/anubis/internal/permission"
)

// URLPermissionVoter grants when the principal holds a permission matching
// the request path and the operation of its method. Unmapped methods are denied.
func URLPermissionVoter() NamedVoter {
	return NamedVoter{
		Name: "url_permission",
		Voter: VoterFunc(func(_ context.Context, req *Request) Vote {
			if req.Principal == nil {
				return Deny
			}
			op, ok := permission.OperationForMethod(req.Method)
			if !ok {
				return Deny
			}
			if req.Principal.Can(req.Path, op) {
				return Grant
			}
			return Deny
		}),
	}
}

// DefaultVoters is the voter list used by the service. Tenant binding is
// settled during authentication, where keys are resolved per tenant.
func DefaultVoters() []NamedVoter {
	return []NamedVoter{
		URLPermissionVoter(),
	}
}
