// Package auth turns request credentials into a Principal.
//
// Three authenticators cover the trust domains: system tokens signed with the
// platform key, tenant tokens signed by the tenant's identity manager, and
// guests that present no token at all. Each principal carries the permission
// set assembled from the permittable registry and, for tenant tokens, the
// token content.
//
// Every failure is a services.DomainError of type unauthorized whose Code names
// the failure kind. Callers are expected to reveal only the type.
package auth
