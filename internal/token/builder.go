package token

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// now is replaced in tests.
var now = time.Now

// Result is a freshly signed token and its expiry.
type Result struct {
	Token     string
	ExpiresAt time.Time
}

// BearerValue returns the token as an Authorization header value.
func (r *Result) BearerValue() string {
	return BearerPrefix + r.Token
}

// SystemParams describes a system token.
type SystemParams struct {
	Tenant            string // subject; may be empty for tenant-independent calls
	TargetApplication string // audience, required
	KeyTimestamp      string
	PrivateKey        *rsa.PrivateKey
	SecondsToLive     int64
}

// TenantParams describes a tenant token issued by the identity manager.
type TenantParams struct {
	User              string
	KeyTimestamp      string
	SourceApplication string
	Content           Content
	PrivateKey        *rsa.PrivateKey
	SecondsToLive     int64
}

// BuildSystem signs a system token.
func BuildSystem(p SystemParams) (*Result, error) {
	if err := checkCommon(p.PrivateKey, p.SecondsToLive); err != nil {
		return nil, err
	}
	if p.TargetApplication == "" {
		return nil, fmt.Errorf("%w: target application is required", ErrInvalidArgument)
	}
	if p.KeyTimestamp == "" {
		return nil, fmt.Errorf("%w: key timestamp is required", ErrInvalidArgument)
	}

	issuedAt := now()
	expiresAt := issuedAt.Add(time.Duration(p.SecondsToLive) * time.Second)
	claims := Claims{
		RegisteredClaims: registered(SystemIssuer, p.Tenant, issuedAt, expiresAt),
		KeyTimestamp:     p.KeyTimestamp,
	}
	claims.Audience = jwt.ClaimStrings{p.TargetApplication}

	return sign(claims, p.PrivateKey, expiresAt)
}

// BuildTenant signs a tenant token carrying the serialized content.
func BuildTenant(p TenantParams) (*Result, error) {
	if err := checkCommon(p.PrivateKey, p.SecondsToLive); err != nil {
		return nil, err
	}
	if p.User == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidArgument)
	}
	if p.KeyTimestamp == "" {
		return nil, fmt.Errorf("%w: key timestamp is required", ErrInvalidArgument)
	}

	content, err := EncodeContent(p.Content)
	if err != nil {
		return nil, fmt.Errorf("%w: content: %v", ErrInvalidArgument, err)
	}

	issuedAt := now()
	expiresAt := issuedAt.Add(time.Duration(p.SecondsToLive) * time.Second)
	claims := Claims{
		RegisteredClaims:  registered(TenantIssuer, p.User, issuedAt, expiresAt),
		KeyTimestamp:      p.KeyTimestamp,
		Content:           content,
		SourceApplication: p.SourceApplication,
	}

	return sign(claims, p.PrivateKey, expiresAt)
}

func checkCommon(key *rsa.PrivateKey, secondsToLive int64) error {
	if secondsToLive <= 0 {
		return fmt.Errorf("%w: seconds to live must be positive, got %d", ErrInvalidArgument, secondsToLive)
	}
	if key == nil {
		return fmt.Errorf("%w: private key is required", ErrInvalidArgument)
	}
	return nil
}

func registered(issuer, subject string, issuedAt, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func sign(claims jwt.Claims, key *rsa.PrivateKey, expiresAt time.Time) (*Result, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS512, claims).SignedString(key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Result{Token: signed, ExpiresAt: expiresAt.Truncate(time.Second)}, nil
}
