package config

import (
	"fmt"
	"os"

	"goalflow/internal/engine"
	"goalflow/internal/goal"
	"goalflow/internal/signing"
)

// BuildSigner constructs the configured signer, or nil when signing is
// disabled.
func (c Config) BuildSigner() (*signing.Signer, error) {
	if !c.Signing.Enabled {
		return nil, nil
	}

	pemBytes, err := os.ReadFile(c.Signing.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	key, err := signing.ParsePrivateKey(pemBytes, c.Signing.Passphrase)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", c.Signing.PrivateKey, err)
	}
	return signing.NewSigner(signing.Algorithm(c.Signing.Algorithm), key)
}

// BuildVerifier constructs the configured verifier, or nil when signing
// is disabled. The signer's own public half is always trusted, followed
// by the configured trusted keys in order.
func (c Config) BuildVerifier(signer *signing.Signer) (*signing.Verifier, error) {
	if !c.Signing.Enabled {
		return nil, nil
	}

	var keys []signing.TrustedKey
	if signer != nil {
		own, err := signer.VerificationKey()
		if err != nil {
			return nil, fmt.Errorf("derive verification key: %w", err)
		}
		keys = append(keys, own)
	}
	for _, tk := range c.Signing.TrustedKeys {
		pemBytes, err := os.ReadFile(tk.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("read trusted key: %w", err)
		}
		key, err := signing.ParsePublicKey(pemBytes)
		if err != nil {
			return nil, fmt.Errorf("parse trusted key %s: %w", tk.PublicKey, err)
		}
		keys = append(keys, signing.TrustedKey{
			Algorithm: signing.Algorithm(tk.Algorithm),
			Key:       key,
		})
	}
	return signing.NewVerifier(keys), nil
}

// VerifyScope maps the configured scope onto the engine's.
func (c Config) VerifyScope() engine.VerifyScope {
	if c.Signing.Scope == "fulfillment" {
		return engine.VerifyFulfillment
	}
	return engine.VerifyAll
}

// SweepConfig maps the sweep section onto the engine's.
func (c Config) SweepConfig() engine.SweepConfig {
	cfg := engine.SweepConfig{
		Interval:      c.Sweep.Interval.Std(),
		Timeout:       c.Sweep.Timeout.Std(),
		WatchedState:  goal.State(c.Sweep.WatchedState),
		TerminalState: goal.State(c.Sweep.TerminalState),
		Primary:       true,
	}
	if c.Sweep.Primary != nil {
		cfg.Primary = *c.Sweep.Primary
	}
	return cfg
}
