package password

import (
	"fmt"
	"runtime"

	"github.com/caarlos0/env/v11"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32 `env:"WARDEN_ARGON2_MEMORY_KIB"`
	Iterations  uint32 `env:"WARDEN_ARGON2_ITERATIONS"`
	Parallelism uint8  `env:"WARDEN_ARGON2_PARALLELISM"`
	SaltLength  uint32 `env:"WARDEN_ARGON2_SALT_LEN"`
	KeyLength   uint32 `env:"WARDEN_ARGON2_KEY_LEN"`
}

// Policy controls password validation and anti-DoS boundaries.
type Policy struct {
	MinLength int `env:"WARDEN_PASSWORD_MIN_LEN"`
	MaxLength int `env:"WARDEN_PASSWORD_MAX_LEN"`
	// If true, enable an extra, minimal weak-pattern rejection.
	RejectVeryWeak bool `env:"WARDEN_PASSWORD_REJECT_VERY_WEAK"`
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns a strong baseline for interactive logins.
func DefaultConfig() Config {
	// Clamp parallelism to [1..4] to keep resource usage predictable in containers.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024, // 64 MiB
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above; safe conversion.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength:      8,
			MaxLength:      256,
			RejectVeryWeak: false,
		},
	}
}

// FromEnv loads config from environment variables on top of DefaultConfig.
// Unset variables keep their defaults.
//
// Env surface:
// - WARDEN_PASSWORD_MIN_LEN         [1..1024]
// - WARDEN_PASSWORD_MAX_LEN         [1..4096]
// - WARDEN_PASSWORD_REJECT_VERY_WEAK (true/false)
// - WARDEN_ARGON2_MEMORY_KIB        [8192..1048576]
// - WARDEN_ARGON2_ITERATIONS        [1..20]
// - WARDEN_ARGON2_PARALLELISM       [1..64]
// - WARDEN_ARGON2_SALT_LEN          [8..64]
// - WARDEN_ARGON2_KEY_LEN           [16..64]
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if err := env.Parse(&cfg.Policy); err != nil {
		return Config{}, fmt.Errorf("password policy env: %w", err)
	}
	if err := env.Parse(&cfg.Params); err != nil {
		return Config{}, fmt.Errorf("argon2 env: %w", err)
	}

	if err := cfg.check(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) check() error {
	checks := []struct {
		name     string
		v        uint64
		min, max uint64
	}{
		{"WARDEN_PASSWORD_MIN_LEN", uint64(max(c.Policy.MinLength, 0)), 1, 1024},
		{"WARDEN_PASSWORD_MAX_LEN", uint64(max(c.Policy.MaxLength, 0)), 1, 4096},
		{"WARDEN_ARGON2_MEMORY_KIB", uint64(c.Params.MemoryKiB), 8 * 1024, 1024 * 1024}, // 8 MiB .. 1 GiB
		{"WARDEN_ARGON2_ITERATIONS", uint64(c.Params.Iterations), 1, 20},
		{"WARDEN_ARGON2_PARALLELISM", uint64(c.Params.Parallelism), 1, 64},
		{"WARDEN_ARGON2_SALT_LEN", uint64(c.Params.SaltLength), 8, 64},
		{"WARDEN_ARGON2_KEY_LEN", uint64(c.Params.KeyLength), 16, 64},
	}
	for _, ck := range checks {
		if ck.v < ck.min || ck.v > ck.max {
			return fmt.Errorf("%s: out of range [%d..%d]", ck.name, ck.min, ck.max)
		}
	}

	if c.Policy.MinLength > c.Policy.MaxLength {
		return fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			c.Policy.MinLength,
			c.Policy.MaxLength,
		)
	}
	return nil
}
