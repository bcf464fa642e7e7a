package models

import (
	"crypto/rsa"
	"math/big"
	"time"
)

// Signature is an RSA public key as modulus and exponent.
type Signature struct {
	PublicKeyMod *big.Int `json:"publicKeyMod" validate:"required"`
	PublicKeyExp *big.Int `json:"publicKeyExp" validate:"required"`
}

// NewSignature captures the public half of key.
func NewSignature(key *rsa.PublicKey) Signature {
	return Signature{
		PublicKeyMod: new(big.Int).Set(key.N),
		PublicKeyExp: big.NewInt(int64(key.E)),
	}
}

// SignatureSet is the key material of one tenant at one key timestamp: the
// identity manager's public key and this application's own key pair.
// Sets are invalidated, never deleted.
type SignatureSet struct {
	Tenant          string          `json:"tenant" db:"tenant_identifier"`
	KeyTimestamp    string          `json:"timestamp" db:"key_timestamp"`
	IdentityManager Signature       `json:"identityManagerSignature"`
	ApplicationKey  *rsa.PrivateKey `json:"-" db:"application_private_key"`
	Valid           bool            `json:"valid" db:"valid"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the SignatureSet model
func (SignatureSet) TableName() string {
	return "tenant_signatures"
}

// NewSignatureSet creates a valid signature set
func NewSignatureSet(tenant, keyTimestamp string, identityManager Signature, applicationKey *rsa.PrivateKey) *SignatureSet {
	now := time.Now()
	return &SignatureSet{
		Tenant:          tenant,
		KeyTimestamp:    keyTimestamp,
		IdentityManager: identityManager,
		ApplicationKey:  applicationKey,
		Valid:           true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ApplicationSignature returns the public half of the application key pair.
func (s *SignatureSet) ApplicationSignature() Signature {
	return NewSignature(&s.ApplicationKey.PublicKey)
}

// ToApplicationSignatureSet converts to the public representation.
func (s *SignatureSet) ToApplicationSignatureSet() *ApplicationSignatureSet {
	return &ApplicationSignatureSet{
		Timestamp:                s.KeyTimestamp,
		ApplicationSignature:     s.ApplicationSignature(),
		IdentityManagerSignature: s.IdentityManager,
	}
}

// ApplicationSignatureSet is the public view of a signature set.
type ApplicationSignatureSet struct {
	Timestamp                string    `json:"timestamp"`
	ApplicationSignature     Signature `json:"applicationSignature"`
	IdentityManagerSignature Signature `json:"identityManagerSignature"`
}
