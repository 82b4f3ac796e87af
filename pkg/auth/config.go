package auth

import (
	"fmt"
	"os"
)

// Config selects the token verifier. With an Issuer set, tokens are OIDC ID
// tokens checked against the issuer's keys; otherwise they are HS256 JWTs
// signed with Secret.
type Config struct {
	Issuer   string `toml:"issuer"`
	ClientID string `toml:"client_id"`
	Secret   string `toml:"secret"`
}

type Env struct {
	Issuer   string
	ClientID string
	Secret   string
}

// OIDC reports whether tokens are verified against an OIDC issuer.
func (c *Config) OIDC() bool {
	return c.Issuer != ""
}

func (c *Config) Finalize(env *Env) error {
	if env != nil {
		if v := getenv(env.Issuer); v != "" {
			c.Issuer = v
		}
		if v := getenv(env.ClientID); v != "" {
			c.ClientID = v
		}
		if v := getenv(env.Secret); v != "" {
			c.Secret = v
		}
	}
	return c.validate()
}

func (c *Config) Merge(overlay *Config) {
	if overlay.Issuer != "" {
		c.Issuer = overlay.Issuer
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
	if overlay.Secret != "" {
		c.Secret = overlay.Secret
	}
}

func (c *Config) validate() error {
	if c.OIDC() {
		if c.ClientID == "" {
			return fmt.Errorf("client_id required when issuer is set")
		}
		return nil
	}
	if len(c.Secret) < 32 {
		return fmt.Errorf("secret must be at least 32 bytes when no issuer is set")
	}
	return nil
}

func getenv(key string) string {
	if key == "" {
		return ""
	}
	return os.Getenv(key)
}
