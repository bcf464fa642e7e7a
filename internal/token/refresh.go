package token

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RefreshParams describes a refresh token. The source application is the
// issuer, so a refresh token can only be redeemed where it was issued.
type RefreshParams struct {
	User              string
	SourceApplication string
	KeyTimestamp      string
	PrivateKey        *rsa.PrivateKey
	SecondsToLive     int64
}

// RefreshClaims is the verified content of a refresh token.
type RefreshClaims struct {
	User              string
	SourceApplication string
	KeyTimestamp      string
	ExpiresAt         time.Time
}

// KeyResolver returns the public key of sourceApplication at keyTimestamp.
type KeyResolver func(sourceApplication, keyTimestamp string) (*rsa.PublicKey, error)

// BuildRefresh signs a refresh token.
func BuildRefresh(p RefreshParams) (*Result, error) {
	if err := checkCommon(p.PrivateKey, p.SecondsToLive); err != nil {
		return nil, err
	}
	if p.KeyTimestamp == "" {
		return nil, fmt.Errorf("%w: key timestamp is required", ErrInvalidArgument)
	}
	if p.SourceApplication == "" {
		return nil, fmt.Errorf("%w: source application is required", ErrInvalidArgument)
	}
	if p.User == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidArgument)
	}

	issuedAt := now()
	expiresAt := issuedAt.Add(time.Duration(p.SecondsToLive) * time.Second)
	claims := Claims{
		RegisteredClaims: registered(p.SourceApplication, p.User, issuedAt, expiresAt),
		KeyTimestamp:     p.KeyTimestamp,
	}
	return sign(claims, p.PrivateKey, expiresAt)
}

// ParseRefresh verifies a refresh token, with or without the bearer prefix.
func ParseRefresh(raw string, resolve KeyResolver) (*RefreshClaims, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty refresh token", ErrMalformed)
	}
	if stripped, err := StripBearer(raw); err == nil {
		raw = stripped
	}

	unverified := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, unverified); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if unverified.Issuer == "" {
		return nil, fmt.Errorf("%w: refresh token has no source application", ErrMalformed)
	}
	if unverified.KeyTimestamp == "" {
		return nil, fmt.Errorf("%w: refresh token has no key timestamp", ErrMalformed)
	}

	key, err := resolve(unverified.Issuer, unverified.KeyTimestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVerification, err)
	}

	claims := &Claims{}
	if err := verifyInto(raw, unverified.Issuer, key, claims); err != nil {
		return nil, err
	}

	return &RefreshClaims{
		User:              claims.Subject,
		SourceApplication: claims.Issuer,
		KeyTimestamp:      claims.KeyTimestamp,
		ExpiresAt:         claims.ExpiresAt.Time,
	}, nil
}
