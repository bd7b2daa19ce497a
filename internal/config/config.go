// Package config loads the runtime configuration from a YAML file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"goalflow/internal/goal"
	"goalflow/internal/signing"
)

// Config is the root runtime configuration.
type Config struct {
	// Database is the path to the SQLite event log.
	Database string `yaml:"database"`

	Registration Registration `yaml:"registration"`
	Signing      Signing      `yaml:"signing"`
	Sweep        Sweep        `yaml:"sweep"`
	Redirect     Redirect     `yaml:"redirect"`
}

// Registration identifies this runtime in provenance entries.
type Registration struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

// Signing configures goal message signing and verification.
type Signing struct {
	Enabled bool `yaml:"enabled"`

	// Algorithm is one of rsa-sha512, ed25519, jwt-es256.
	Algorithm string `yaml:"algorithm"`

	// PrivateKey is the path to a PEM-encoded private key.
	PrivateKey string `yaml:"private_key"`

	// Passphrase decrypts the private key PEM when set.
	Passphrase string `yaml:"passphrase"`

	// Scope is "all" or "fulfillment".
	Scope string `yaml:"scope"`

	// TrustedKeys lists additional verification keys beyond the
	// signer's own public half.
	TrustedKeys []TrustedKey `yaml:"trusted_keys"`
}

// TrustedKey names one PEM-encoded public key accepted during
// verification.
type TrustedKey struct {
	Algorithm string `yaml:"algorithm"`
	PublicKey string `yaml:"public_key"`
}

// Sweep configures the timeout sweeper.
type Sweep struct {
	Interval      Duration `yaml:"interval"`
	Timeout       Duration `yaml:"timeout"`
	WatchedState  string   `yaml:"watched_state"`
	TerminalState string   `yaml:"terminal_state"`
	Primary       *bool    `yaml:"primary"`
}

// Redirect configures container fulfillment redirection.
type Redirect struct {
	Enabled bool `yaml:"enabled"`

	// Registration is the external execution environment goals are
	// handed to.
	Registration string `yaml:"registration"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	primary := true
	return Config{
		Database: "goalflow.db",
		Registration: Registration{
			Name:    "goalflow",
			Version: "0.1.0",
		},
		Signing: Signing{
			Scope: "all",
		},
		Sweep: Sweep{
			Interval:      Duration(30 * time.Second),
			Timeout:       Duration(time.Hour),
			WatchedState:  string(goal.InProcess),
			TerminalState: string(goal.Canceled),
			Primary:       &primary,
		},
	}
}

// Load reads the configuration from path, applying defaults for
// omitted fields.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the runtime cannot
// start with.
func (c Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Registration.Name == "" {
		return fmt.Errorf("registration name is required")
	}

	if c.Signing.Enabled {
		if !signing.Algorithm(c.Signing.Algorithm).Valid() {
			return fmt.Errorf("unknown signing algorithm %q", c.Signing.Algorithm)
		}
		if c.Signing.PrivateKey == "" {
			return fmt.Errorf("signing enabled but no private key configured")
		}
	}
	switch c.Signing.Scope {
	case "all", "fulfillment":
	default:
		return fmt.Errorf("signing scope must be \"all\" or \"fulfillment\", got %q", c.Signing.Scope)
	}
	for _, tk := range c.Signing.TrustedKeys {
		if !signing.Algorithm(tk.Algorithm).Valid() {
			return fmt.Errorf("trusted key %s: unknown algorithm %q", tk.PublicKey, tk.Algorithm)
		}
	}

	if !goal.State(c.Sweep.WatchedState).Valid() {
		return fmt.Errorf("unknown sweep watched state %q", c.Sweep.WatchedState)
	}
	if !goal.State(c.Sweep.TerminalState).Valid() {
		return fmt.Errorf("unknown sweep terminal state %q", c.Sweep.TerminalState)
	}
	if c.Sweep.Interval <= 0 || c.Sweep.Timeout <= 0 {
		return fmt.Errorf("sweep interval and timeout must be positive")
	}

	if c.Redirect.Enabled && c.Redirect.Registration == "" {
		return fmt.Errorf("redirect enabled but no registration configured")
	}
	return nil
}
