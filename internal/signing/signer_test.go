package signing

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalflow/internal/goal"
)

func newRSASigner(t *testing.T) *Signer {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	s, err := NewSigner(AlgRSASHA512, key)
	require.NoError(t, err)
	return s
}

func newEd25519Signer(t *testing.T) *Signer {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	s, err := NewSigner(AlgEd25519, key)
	require.NoError(t, err)
	return s
}

func newES256Signer(t *testing.T) *Signer {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	s, err := NewSigner(AlgJWTES256, key)
	require.NoError(t, err)
	return s
}

func verifierFor(t *testing.T, s *Signer) *Verifier {
	t.Helper()
	tk, err := s.VerificationKey()
	require.NoError(t, err)
	return NewVerifier([]TrustedKey{tk})
}

func TestSignVerify_RoundTrip(t *testing.T) {
	signers := map[string]func(*testing.T) *Signer{
		"rsa-sha512": newRSASigner,
		"ed25519":    newEd25519Signer,
		"jwt-es256":  newES256Signer,
	}

	for name, mk := range signers {
		t.Run(name, func(t *testing.T) {
			signer := mk(t)
			v := verifierFor(t, signer)

			e := fixtureEvent()
			require.NoError(t, signer.Sign(&e))
			require.NotEmpty(t, e.Signature)

			assert.NoError(t, v.Verify(&e))
		})
	}
}

func TestSignVerify_RoundTripWithAbsentOptionalFields(t *testing.T) {
	signer := newEd25519Signer(t)
	v := verifierFor(t, signer)

	// Bare event: every optional field absent.
	e := goal.Event{
		Environment: "0-code",
		UniqueName:  "build",
		Name:        "build",
		GoalSetID:   "gs-1",
		State:       goal.Planned,
		Version:     1,
		Ts:          42,
	}
	require.NoError(t, signer.Sign(&e))
	assert.NoError(t, v.Verify(&e))
}

func TestVerify_TamperDetection(t *testing.T) {
	signer := newRSASigner(t)
	v := verifierFor(t, signer)

	tampers := map[string]func(*goal.Event){
		"state":         func(e *goal.Event) { e.State = goal.Success },
		"environment":   func(e *goal.Event) { e.Environment = "9-prod" },
		"unique_name":   func(e *goal.Event) { e.UniqueName = "deploy" },
		"sha":           func(e *goal.Event) { e.SHA = "deadbeef" },
		"version":       func(e *goal.Event) { e.Version++ },
		"ts":            func(e *goal.Event) { e.Ts++ },
		"phase":         func(e *goal.Event) { e.Phase = "rooted" },
		"description":   func(e *goal.Event) { e.Description = "x" },
		"fulfillment":   func(e *goal.Event) { e.Fulfillment.Registration = "evil/sdm" },
		"preconditions": func(e *goal.Event) { e.PreConditions = nil },
		"provenance":    func(e *goal.Event) { e.Provenance[0].Name = "Mallory" },
		"approval":      func(e *goal.Event) { e.Approval = &goal.Approval{UserID: "mallory"} },
	}

	for name, tamper := range tampers {
		t.Run(name, func(t *testing.T) {
			e := fixtureEvent()
			require.NoError(t, signer.Sign(&e))
			tamper(&e)
			assert.ErrorIs(t, v.Verify(&e), ErrSignatureInvalid)
		})
	}
}

func TestVerify_MissingSignature(t *testing.T) {
	v := verifierFor(t, newEd25519Signer(t))

	e := fixtureEvent()
	assert.ErrorIs(t, v.Verify(&e), ErrSignatureMissing)
}

func TestVerify_GarbageSignature(t *testing.T) {
	v := verifierFor(t, newEd25519Signer(t))

	e := fixtureEvent()
	e.Signature = "not base64!!!"
	assert.ErrorIs(t, v.Verify(&e), ErrSignatureInvalid)

	e.Signature = "YWJjZGVm" // valid base64, nonsense bytes
	assert.ErrorIs(t, v.Verify(&e), ErrSignatureInvalid)
}

func TestVerify_AnyConfiguredKeyValidates(t *testing.T) {
	// Key rotation: old and new keys both trusted, event signed with
	// either verifies.
	old := newEd25519Signer(t)
	current := newRSASigner(t)

	oldTK, err := old.VerificationKey()
	require.NoError(t, err)
	curTK, err := current.VerificationKey()
	require.NoError(t, err)
	v := NewVerifier([]TrustedKey{oldTK, curTK})

	e := fixtureEvent()
	require.NoError(t, old.Sign(&e))
	assert.NoError(t, v.Verify(&e))

	e = fixtureEvent()
	require.NoError(t, current.Sign(&e))
	assert.NoError(t, v.Verify(&e))
}

func TestVerify_UntrustedKeyRejected(t *testing.T) {
	trusted := newEd25519Signer(t)
	stranger := newEd25519Signer(t)
	v := verifierFor(t, trusted)

	e := fixtureEvent()
	require.NoError(t, stranger.Sign(&e))
	assert.ErrorIs(t, v.Verify(&e), ErrSignatureInvalid)
}

func TestNewSigner_KeyTypeMismatch(t *testing.T) {
	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	_, err = NewSigner(AlgRSASHA512, edKey)
	assert.Error(t, err)

	_, err = NewSigner(Algorithm("rot13"), edKey)
	assert.Error(t, err)
}

func TestParsePrivateKey_PKCS8RoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	parsed, err := ParsePrivateKey(pemBytes, "")
	require.NoError(t, err)
	assert.IsType(t, &rsa.PrivateKey{}, parsed)
}

func TestParsePublicKey_PKIXRoundTrip(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})

	parsed, err := ParsePublicKey(pemBytes)
	require.NoError(t, err)
	assert.IsType(t, &ecdsa.PublicKey{}, parsed)
}

func TestParsePrivateKey_Garbage(t *testing.T) {
	_, err := ParsePrivateKey([]byte("not pem at all"), "")
	assert.Error(t, err)
}
