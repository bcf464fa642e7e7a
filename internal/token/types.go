// Package token builds and parses the signed bearer tokens exchanged between
// the identity manager, the platform and services.
//
// Parsing is two-phase: Decode reads the unverified header and claims so the
// caller can pick the verification key, and Verify checks the signature and
// the registered claims against that key.
package token

import (
	"encoding/json"
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/anubis/internal/permission"
)

// Type identifies the trust domain a token belongs to.
type Type string

const (
	System Type = "SYSTEM"
	Tenant Type = "TENANT"
	Guest  Type = "GUEST"
)

// Issuers per token type. Guests carry no token and have no issuer.
const (
	SystemIssuer = "system"
	TenantIssuer = "identity-manager"
)

// Header values and reserved identities.
const (
	// NoAuthentication is the Authorization header value meaning "no token"
	NoAuthentication = "N/A"

	// BearerPrefix prefixes every token in the Authorization header
	BearerPrefix = "Bearer "

	// GuestUser is the identity of unauthenticated callers
	GuestUser = "guest"

	// SystemUser is the identity presented alongside system tokens
	SystemUser = "system"

	// DefaultKeyTimestamp is used for tokens that carry no key timestamp claim.
	// Keys provisioned through initialization are stored under it.
	DefaultKeyTimestamp = "1"
)

// Private claim names.
const (
	ClaimKeyTimestamp      = "kts"
	ClaimContent           = "cnt"
	ClaimSourceApplication = "src"
)

var (
	// ErrMalformed is returned when a token cannot be decoded
	ErrMalformed = errors.New("malformed token")

	// ErrUnknownIssuer is returned when the issuer matches no token type
	ErrUnknownIssuer = errors.New("unknown token issuer")

	// ErrUnsupportedAlgorithm is returned for tokens not signed with an RSA algorithm
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

	// ErrVerification is returned when the signature or registered claims do not verify
	ErrVerification = errors.New("token verification failed")

	// ErrInvalidArgument is returned by builders for unusable parameters
	ErrInvalidArgument = errors.New("invalid argument")
)

// Issuer returns the issuer string written into tokens of this type.
func (t Type) Issuer() string {
	switch t {
	case System:
		return SystemIssuer
	case Tenant:
		return TenantIssuer
	default:
		return ""
	}
}

// TypeForIssuer classifies a token by its issuer claim.
func TypeForIssuer(issuer string) (Type, bool) {
	switch issuer {
	case SystemIssuer:
		return System, true
	case TenantIssuer:
		return Tenant, true
	default:
		return "", false
	}
}

// ParseType parses a token type name such as "TENANT".
func ParseType(s string) (Type, bool) {
	switch Type(s) {
	case System, Tenant, Guest:
		return Type(s), true
	default:
		return "", false
	}
}

// Claims is the claim set carried by every token this package issues.
type Claims struct {
	jwt.RegisteredClaims
	KeyTimestamp      string `json:"kts,omitempty"`
	Content           string `json:"cnt,omitempty"`
	SourceApplication string `json:"src,omitempty"`
}

// Content lists the permissions a tenant token grants, across applications.
// Paths are prefixed with "<application>-<version>".
type Content struct {
	Permissions []ContentPermission `json:"tokenPermissions"`
}

// ContentPermission grants operations on one application path pattern.
type ContentPermission struct {
	Path       string                 `json:"path"`
	Operations []permission.Operation `json:"allowedOperations"`
}

// EncodeContent serializes content for the content claim.
func EncodeContent(c Content) (string, error) {
	if c.Permissions == nil {
		c.Permissions = []ContentPermission{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeContent parses a content claim. An empty claim or a JSON null is an error.
func DecodeContent(raw string) (*Content, error) {
	if raw == "" {
		return nil, errors.New("content claim is empty")
	}
	var c *Content
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, errors.New("content claim is null")
	}
	return c, nil
}
