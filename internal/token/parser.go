package token

import (
	"crypto/rsa"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// rsaAlgorithms are the only signing algorithms accepted on verification.
var rsaAlgorithms = []string{
	jwt.SigningMethodRS256.Alg(),
	jwt.SigningMethodRS384.Alg(),
	jwt.SigningMethodRS512.Alg(),
	jwt.SigningMethodPS256.Alg(),
	jwt.SigningMethodPS384.Alg(),
	jwt.SigningMethodPS512.Alg(),
}

// Info is the unverified view of a token, enough to choose a verification key.
// Nothing in Info may be trusted until Verify succeeds.
type Info struct {
	Raw          string
	Type         Type
	Algorithm    string
	KeyTimestamp string // claim value, or DefaultKeyTimestamp when absent
	HasTimestamp bool
	Claims       *Claims
}

// StripBearer removes the bearer prefix from an Authorization header value.
func StripBearer(header string) (string, error) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return "", fmt.Errorf("%w: missing %q prefix", ErrMalformed, strings.TrimSpace(BearerPrefix))
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	if raw == "" {
		return "", fmt.Errorf("%w: empty bearer token", ErrMalformed)
	}
	return raw, nil
}

// Decode parses a token without verifying it, classifies it by issuer and
// rejects non-RSA algorithms.
func Decode(raw string) (*Info, error) {
	claims := &Claims{}
	tok, _, err := jwt.NewParser().ParseUnverified(raw, claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	typ, ok := TypeForIssuer(claims.Issuer)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIssuer, claims.Issuer)
	}

	alg, _ := tok.Header["alg"].(string)
	if !isRSA(tok.Method) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}

	info := &Info{
		Raw:          raw,
		Type:         typ,
		Algorithm:    alg,
		KeyTimestamp: claims.KeyTimestamp,
		HasTimestamp: claims.KeyTimestamp != "",
		Claims:       claims,
	}
	if !info.HasTimestamp {
		info.KeyTimestamp = DefaultKeyTimestamp
	}
	return info, nil
}

// Verify checks the signature, issuer, expiry and issue time of a decoded token
// against key and returns the verified claims.
func Verify(info *Info, key *rsa.PublicKey) (*Claims, error) {
	claims := &Claims{}
	if err := verifyInto(info.Raw, info.Type.Issuer(), key, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func verifyInto(raw, issuer string, key *rsa.PublicKey, claims jwt.Claims) error {
	if key == nil {
		return fmt.Errorf("%w: no verification key", ErrVerification)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods(rsaAlgorithms),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(now),
	)
	tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerification, err)
	}
	if !tok.Valid {
		return ErrVerification
	}
	return nil
}

func isRSA(method jwt.SigningMethod) bool {
	switch method.(type) {
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
		return true
	default:
		return false
	}
}
