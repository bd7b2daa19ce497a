package signing

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"goalflow/internal/goal"
)

// Rejection reasons surfaced on goals that fail verification. These
// flow into the goal's failure phase, visible through the same status
// channel as ordinary failures.
const (
	ReasonSignatureMissing = "signature missing"
	ReasonSignatureInvalid = "signature invalid"
)

// ErrSignatureMissing is returned when verification is required but the
// incoming event carries no signature at all.
var ErrSignatureMissing = errors.New(ReasonSignatureMissing)

// ErrSignatureInvalid is returned when no configured trusted key
// validates the event's signature.
var ErrSignatureInvalid = errors.New(ReasonSignatureInvalid)

// TrustedKey is one entry of the ordered verification key list: a
// public key bound to the algorithm it verifies under.
type TrustedKey struct {
	Algorithm Algorithm
	Key       crypto.PublicKey
}

// Verifier checks incoming goal events against the trusted key set.
// It re-normalizes the event content rather than trusting raw wire
// bytes, tolerating transport re-encoding.
type Verifier struct {
	keys []TrustedKey
}

// NewVerifier builds a verifier over the given ordered key list.
func NewVerifier(keys []TrustedKey) *Verifier {
	return &Verifier{keys: keys}
}

// AddKey appends a trusted key. Used to auto-add the signing key's
// public half so a single-key deployment round-trips.
func (v *Verifier) AddKey(k TrustedKey) {
	v.keys = append(v.keys, k)
}

// KeyCount returns the number of configured trusted keys.
func (v *Verifier) KeyCount() int { return len(v.keys) }

// Verify checks an event's signature against every trusted key in
// order and succeeds as soon as one validates. Returns
// ErrSignatureMissing when no signature is present and
// ErrSignatureInvalid when no key validates it. The caller decides
// whether the event is in verification scope at all; Verify itself is
// unconditional.
func (v *Verifier) Verify(e *goal.Event) error {
	if e.Signature == "" {
		return ErrSignatureMissing
	}

	sig, err := base64.StdEncoding.DecodeString(e.Signature)
	if err != nil {
		slog.Debug("goal signature is not valid base64",
			"goal", e.Key().String(), "error", err)
		return ErrSignatureInvalid
	}

	payload, err := Normalize(e)
	if err != nil {
		return fmt.Errorf("re-normalize for verification: %w", err)
	}

	for i, tk := range v.keys {
		if verifyOne(tk, payload, sig) {
			slog.Debug("goal signature verified",
				"goal", e.Key().String(), "key_index", i, "algorithm", tk.Algorithm)
			return nil
		}
	}
	return ErrSignatureInvalid
}

func verifyOne(tk TrustedKey, payload, sig []byte) bool {
	switch tk.Algorithm {
	case AlgRSASHA512:
		pub, ok := tk.Key.(*rsa.PublicKey)
		if !ok {
			return false
		}
		digest := sha512.Sum512(payload)
		return rsa.VerifyPKCS1v15(pub, crypto.SHA512, digest[:], sig) == nil
	case AlgEd25519:
		pub, ok := tk.Key.(ed25519.PublicKey)
		if !ok {
			return false
		}
		return ed25519.Verify(pub, payload, sig)
	case AlgJWTES256:
		pub, ok := tk.Key.(*ecdsa.PublicKey)
		if !ok {
			return false
		}
		return jwt.SigningMethodES256.Verify(string(payload), sig, pub) == nil
	}
	return false
}
