package authtoken

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the environment surface of the token service.
type Config struct {
	MaxAge time.Duration `env:"WARDEN_TOKEN_MAX_AGE" envDefault:"504h"`

	// PurposeMaxAge overrides MaxAge per purpose, e.g.
	// WARDEN_TOKEN_PURPOSE_MAX_AGE="signup=48h,reset-password=1h".
	PurposeMaxAge map[string]time.Duration `env:"WARDEN_TOKEN_PURPOSE_MAX_AGE" envKeyValSeparator:"="`

	// Bytes is the entropy of generated token values.
	Bytes int `env:"WARDEN_TOKEN_BYTES" envDefault:"32"`
}

// DefaultMaxAge is three weeks.
const DefaultMaxAge = 3 * 7 * 24 * time.Hour

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{MaxAge: DefaultMaxAge, Bytes: 32}
}

// LoadConfigFromEnv parses Config from the environment.
// Returns ErrConfig if a value is out of range.
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

// Validate checks ranges.
func (c Config) Validate() error {
	if c.MaxAge <= 0 {
		return fmt.Errorf("%w: WARDEN_TOKEN_MAX_AGE must be positive", ErrConfig)
	}
	for p, d := range c.PurposeMaxAge {
		if p == "" || d <= 0 {
			return fmt.Errorf("%w: WARDEN_TOKEN_PURPOSE_MAX_AGE entry %q", ErrConfig, p)
		}
	}
	if c.Bytes < 16 || c.Bytes > 128 {
		return fmt.Errorf("%w: WARDEN_TOKEN_BYTES out of range [16..128]", ErrConfig)
	}
	return nil
}

// Options turns c into service options.
func (c Config) Options() []Option {
	opts := []Option{WithMaxAge(c.MaxAge), WithTokenBytes(c.Bytes)}
	for p, d := range c.PurposeMaxAge {
		opts = append(opts, WithPurposeMaxAge(p, d))
	}
	return opts
}
