package auth

import "time"

// SimpleConfig is a plain-struct Config for wiring and tests.
type SimpleConfig struct {
	SigningKey     string        `json:"signing_key" yaml:"signing_key"`
	Issuer         string        `json:"issuer" yaml:"issuer"`
	Audience       []string      `json:"audience" yaml:"audience"`
	AccessTokenTTL time.Duration `json:"access_token_ttl" yaml:"access_token_ttl"`
	RefreshTTL     time.Duration `json:"refresh_token_ttl" yaml:"refresh_token_ttl"`
	ResetTokenTTL  time.Duration `json:"reset_token_ttl" yaml:"reset_token_ttl"`
}

var _ Config = SimpleConfig{}

// DefaultConfig returns the documented defaults: 15 minute access tokens,
// 7 day refresh tokens, 1 hour reset windows.
func DefaultConfig(signingKey string) SimpleConfig {
	return SimpleConfig{
		SigningKey:     signingKey,
		Issuer:         "portal-auth",
		AccessTokenTTL: 15 * time.Minute,
		RefreshTTL:     7 * 24 * time.Hour,
		ResetTokenTTL:  time.Hour,
	}
}

func (c SimpleConfig) GetSigningKey() string {
	return c.SigningKey
}

func (c SimpleConfig) GetIssuer() string {
	return c.Issuer
}

func (c SimpleConfig) GetAudience() []string {
	return c.Audience
}

func (c SimpleConfig) GetAccessTokenExpiration() time.Duration {
	return c.AccessTokenTTL
}

func (c SimpleConfig) GetRefreshTokenExpiration() time.Duration {
	return c.RefreshTTL
}

func (c SimpleConfig) GetResetTokenExpiration() time.Duration {
	return c.ResetTokenTTL
}
