package session

import (
	"fmt"
	"strings"
	"time"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/caarlos0/env/v11"
)

// Config defines the runtime configuration of the session subsystem.
type Config struct {
	// Issuer is the "iss" claim of session blobs.
	Issuer string `env:"WARDEN_SESSION_ISSUER" envDefault:"warden"`

	// CookieTTL bounds the lifetime of a serialized session blob.
	CookieTTL time.Duration `env:"WARDEN_SESSION_COOKIE_TTL" envDefault:"720h"`

	// ClockSkew is the tolerated clock difference during verification.
	ClockSkew time.Duration `env:"WARDEN_SESSION_CLOCK_SKEW" envDefault:"30s"`

	// PasetoV4SecretKeyHex is the hex-encoded Ed25519 secret key used to
	// sign blobs.
	PasetoV4SecretKeyHex string `env:"WARDEN_PASETO_V4_SECRET_KEY_HEX"`
}

// EnvSecretKey names the variable holding the signing key.
// #nosec G101 -- not a credential; it's an environment variable name.
const EnvSecretKey = "WARDEN_PASETO_V4_SECRET_KEY_HEX"

// DefaultConfig returns development defaults without a signing key.
func DefaultConfig() Config {
	return Config{
		Issuer:    "warden",
		CookieTTL: 30 * 24 * time.Hour,
		ClockSkew: 30 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Required:
//   - WARDEN_PASETO_V4_SECRET_KEY_HEX
//
// Optional (durations are Go duration strings):
//   - WARDEN_SESSION_ISSUER
//   - WARDEN_SESSION_COOKIE_TTL
//   - WARDEN_SESSION_CLOCK_SKEW
//
// Returns an error wrapping ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and that the signing key parses.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Issuer) == "":
		return fmt.Errorf("%w: empty issuer", ErrConfig)
	case c.CookieTTL <= 0:
		return fmt.Errorf("%w: WARDEN_SESSION_COOKIE_TTL must be positive", ErrConfig)
	case c.ClockSkew < 0 || c.ClockSkew > 5*time.Minute:
		return fmt.Errorf("%w: WARDEN_SESSION_CLOCK_SKEW out of range [0..5m]", ErrConfig)
	case c.PasetoV4SecretKeyHex == "":
		return fmt.Errorf("%w: WARDEN_PASETO_V4_SECRET_KEY_HEX is required", ErrConfig)
	}
	if _, err := paseto.NewV4AsymmetricSecretKeyFromHex(c.PasetoV4SecretKeyHex); err != nil {
		return fmt.Errorf("%w: WARDEN_PASETO_V4_SECRET_KEY_HEX is not a v4 secret key", ErrConfig)
	}
	return nil
}
