package config

import (
	"fmt"
	"time"
)

// minSecretBytes is the HS256 key length below which tokens are easy to forge.
const minSecretBytes = 16

// JWTConfig describes the access tokens issued by the identity provider.
// Issuer is optional; when set, tokens from any other issuer are rejected.
type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	Issuer          string        `mapstructure:"issuer"`
	ExpirationHours int           `mapstructure:"expiration_hours"`
	Leeway          time.Duration `mapstructure:"leeway"`
}

// TokenTTL is the lifetime given to locally generated tokens.
func (c *JWTConfig) TokenTTL() time.Duration {
	return time.Duration(c.ExpirationHours) * time.Hour
}

func (c *JWTConfig) validate() error {
	if c.Secret == "" {
		return fmt.Errorf("jwt.secret is required (set JWT_SECRET)")
	}
	if len(c.Secret) < minSecretBytes {
		return fmt.Errorf("jwt.secret must be at least %d bytes", minSecretBytes)
	}
	if c.ExpirationHours < 1 {
		return fmt.Errorf("jwt.expiration_hours must be at least 1, got: %d", c.ExpirationHours)
	}
	if c.Leeway < 0 || c.Leeway > 5*time.Minute {
		return fmt.Errorf("jwt.leeway must be between 0 and 5m, got: %s", c.Leeway)
	}
	return nil
}
