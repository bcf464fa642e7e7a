// Package keys handles RSA key material: generation, conversion between
// modulus/exponent pairs and public keys, PEM encoding, key timestamps and
// system key providers.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// DefaultKeyBits is the size of generated application keys.
const DefaultKeyBits = 2048

var (
	// ErrInvalidKey is returned for unusable key material
	ErrInvalidKey = errors.New("invalid key")

	// ErrKeyNotFound is returned when no key exists for a timestamp
	ErrKeyNotFound = errors.New("key not found")
)

// GenerateKeyPair creates a new RSA key pair.
func GenerateKeyPair(bits int) (*rsa.PrivateKey, error) {
	if bits <= 0 {
		bits = DefaultKeyBits
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate rsa key: %w", err)
	}
	return key, nil
}

// PublicKey builds an RSA public key from a modulus and exponent.
func PublicKey(mod, exp *big.Int) (*rsa.PublicKey, error) {
	if mod == nil || exp == nil || mod.Sign() <= 0 || exp.Sign() <= 0 {
		return nil, fmt.Errorf("%w: modulus and exponent must be positive", ErrInvalidKey)
	}
	if !exp.IsInt64() || exp.Int64() > int64(^uint32(0)>>1) {
		return nil, fmt.Errorf("%w: exponent out of range", ErrInvalidKey)
	}
	return &rsa.PublicKey{N: new(big.Int).Set(mod), E: int(exp.Int64())}, nil
}

// ModExp splits a public key into its modulus and exponent.
func ModExp(key *rsa.PublicKey) (*big.Int, *big.Int) {
	return new(big.Int).Set(key.N), big.NewInt(int64(key.E))
}

// ParseBigInt parses a base-10 integer as sent in provisioning headers.
func ParseBigInt(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q is not a valid big integer", ErrInvalidKey, s)
	}
	return v, nil
}

// EncodePrivateKeyPEM encodes a private key as a PKCS#1 PEM block.
func EncodePrivateKeyPEM(key *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

// EncodePublicKeyPEM encodes a public key as a PKIX PEM block.
func EncodePublicKeyPEM(key *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

// ParsePrivateKeyPEM decodes a PKCS#1 or PKCS#8 PEM encoded RSA private key.
func ParsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrInvalidKey)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrInvalidKey)
	}
	return key, nil
}

// MarshalPrivateKey returns the DER form used for storage.
func MarshalPrivateKey(key *rsa.PrivateKey) []byte {
	return x509.MarshalPKCS1PrivateKey(key)
}

// UnmarshalPrivateKey parses the DER form written by MarshalPrivateKey.
func UnmarshalPrivateKey(der []byte) (*rsa.PrivateKey, error) {
	key, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return key, nil
}
