package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"encoding/base64"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"goalflow/internal/goal"
)

// Algorithm identifies a signature scheme over the normalized payload.
type Algorithm string

const (
	// AlgRSASHA512 is PKCS#1 v1.5 RSA over a SHA-512 digest of the
	// normalized payload. The default for RSA deployments.
	AlgRSASHA512 Algorithm = "rsa-sha512"

	// AlgEd25519 signs the normalized payload directly with Ed25519.
	AlgEd25519 Algorithm = "ed25519"

	// AlgJWTES256 uses the ES256 JWS scheme (ECDSA P-256 / SHA-256)
	// from golang-jwt, treating the normalized payload as the JWS
	// signing input.
	AlgJWTES256 Algorithm = "jwt-es256"
)

// Valid reports whether a is a supported algorithm identifier.
func (a Algorithm) Valid() bool {
	switch a {
	case AlgRSASHA512, AlgEd25519, AlgJWTES256:
		return true
	}
	return false
}

// Signer attaches signatures to outgoing goal events. Signing happens
// exactly once, at the point a mutation is about to be published; the
// mutator owns that call site.
type Signer struct {
	alg Algorithm
	key crypto.PrivateKey
}

// NewSigner builds a signer for the given algorithm, validating that
// the key type matches the scheme up front rather than at first use.
func NewSigner(alg Algorithm, key crypto.PrivateKey) (*Signer, error) {
	switch alg {
	case AlgRSASHA512:
		if _, ok := key.(*rsa.PrivateKey); !ok {
			return nil, fmt.Errorf("algorithm %s requires an RSA private key, got %T", alg, key)
		}
	case AlgEd25519:
		if _, ok := key.(ed25519.PrivateKey); !ok {
			return nil, fmt.Errorf("algorithm %s requires an Ed25519 private key, got %T", alg, key)
		}
	case AlgJWTES256:
		k, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("algorithm %s requires an ECDSA private key, got %T", alg, key)
		}
		if k.Curve.Params().Name != "P-256" {
			return nil, fmt.Errorf("algorithm %s requires curve P-256, got %s", alg, k.Curve.Params().Name)
		}
	default:
		return nil, fmt.Errorf("unknown signing algorithm %q", alg)
	}
	return &Signer{alg: alg, key: key}, nil
}

// Algorithm returns the signer's scheme.
func (s *Signer) Algorithm() Algorithm { return s.alg }

// VerificationKey returns the public half of the signing key, bound to
// the signer's algorithm, for inclusion in the trusted key set.
func (s *Signer) VerificationKey() (TrustedKey, error) {
	pub, err := publicHalf(s.key)
	if err != nil {
		return TrustedKey{}, err
	}
	return TrustedKey{Algorithm: s.alg, Key: pub}, nil
}

// Sign normalizes the event, signs the payload, and sets the event's
// Signature field. The signature itself is never part of the payload,
// so signing is stable under re-signing.
func (s *Signer) Sign(e *goal.Event) error {
	payload, err := Normalize(e)
	if err != nil {
		return err
	}

	var sig []byte
	switch s.alg {
	case AlgRSASHA512:
		digest := sha512.Sum512(payload)
		sig, err = rsa.SignPKCS1v15(rand.Reader, s.key.(*rsa.PrivateKey), crypto.SHA512, digest[:])
	case AlgEd25519:
		sig = ed25519.Sign(s.key.(ed25519.PrivateKey), payload)
	case AlgJWTES256:
		sig, err = jwt.SigningMethodES256.Sign(string(payload), s.key.(*ecdsa.PrivateKey))
	default:
		return fmt.Errorf("unknown signing algorithm %q", s.alg)
	}
	if err != nil {
		return fmt.Errorf("sign goal %s with %s: %w", e.Key().String(), s.alg, err)
	}

	e.Signature = base64.StdEncoding.EncodeToString(sig)
	return nil
}
