package provider

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/xjwt/kms/awskms"
	"gopkg.in/yaml.v3"
)

// Key for HMAC signature
type Key struct {
	// ID of the key
	ID string `json:"id" yaml:"id"`
	// Seed of the key, can be prefixed with file:// or env://
	Seed string `json:"seed" yaml:"seed"`
}

// Config provides JWT provider configuration.
// Values set in the environment override the ones loaded from file.
type Config struct {
	// Issuer specifies issuer claim
	Issuer string `json:"issuer" yaml:"issuer" env:"XJWT_ISSUER"`
	// KeyID specifies ID of the current key
	KeyID string `json:"kid" yaml:"kid" env:"XJWT_KID"`
	// Keys specifies list of issuer's HMAC keys
	Keys []*Key `json:"keys,omitempty" yaml:"keys,omitempty"`
	// Algorithm specifies alg for HMAC keys, HS256 by default,
	// or overrides alg detected from KMS key
	Algorithm string `json:"alg,omitempty" yaml:"alg,omitempty" env:"XJWT_ALG"`
	// JWKS specifies path to JWKS file with RSA or ECDSA keys
	JWKS string `json:"jwks,omitempty" yaml:"jwks,omitempty" env:"XJWT_JWKS"`
	// KMS specifies AWS KMS key to sign with
	KMS awskms.Config `json:"kms" yaml:"kms" envPrefix:"XJWT_KMS_"`
	// TokenExpiry specifies default token lifetime, 1h by default
	TokenExpiry string `json:"token_expiry,omitempty" yaml:"token_expiry,omitempty" env:"XJWT_TOKEN_EXPIRY"`
	// Audience specifies default audience of signed tokens
	Audience []string `json:"audience,omitempty" yaml:"audience,omitempty" env:"XJWT_AUDIENCE" envSeparator:","`
}

// LoadConfig returns configuration loaded from a file
func LoadConfig(file string) (*Config, error) {
	var config Config
	if file != "" {
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		if strings.HasSuffix(file, ".json") {
			err = json.Unmarshal(raw, &config)
			if err != nil {
				return nil, errors.WithMessagef(err, "unable to unmarshal JSON: %q", file)
			}
		} else {
			err = yaml.Unmarshal(raw, &config)
			if err != nil {
				return nil, errors.WithMessagef(err, "unable to unmarshal YAML: %q", file)
			}
		}
	}

	if err := env.Parse(&config); err != nil {
		return nil, errors.WithMessagef(err, "unable to parse environment")
	}

	if config.JWKS == "" && config.KMS.KeyID == "" {
		if config.KeyID == "" {
			return nil, errors.Errorf("missing kid: %q", file)
		}
		if len(config.Keys) == 0 {
			return nil, errors.Errorf("missing keys: %q", file)
		}
	}
	return &config, nil
}
