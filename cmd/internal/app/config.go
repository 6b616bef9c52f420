package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrConfig is returned for invalid runtime configuration.
var ErrConfig = errors.New("invalid config")

// Claim backends selectable with WARDEN_CLAIM_BACKEND.
const (
	ClaimBackendMemory   = "memory"
	ClaimBackendPostgres = "postgres"
	ClaimBackendRedis    = "redis"
	ClaimBackendSQLite   = "sqlite"
)

// Config contains the runtime configuration loaded from environment variables.
type Config struct {
	// HTTPAddr is the ops listener (/healthz, /readyz, /metrics).
	HTTPAddr  string `env:"WARDEN_HTTP_ADDR" envDefault:"127.0.0.1:9090"`
	LogLevel  string `env:"WARDEN_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"WARDEN_LOG_FORMAT" envDefault:"json"`

	ReadHeaderTimeout time.Duration `env:"WARDEN_HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ReadTimeout       time.Duration `env:"WARDEN_HTTP_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout      time.Duration `env:"WARDEN_HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout       time.Duration `env:"WARDEN_HTTP_IDLE_TIMEOUT" envDefault:"60s"`
	MaxHeaderBytes    int           `env:"WARDEN_HTTP_MAX_HEADER_BYTES" envDefault:"1048576"`

	// DatabaseURL enables the Postgres stores. Empty means in-memory stores.
	DatabaseURL string `env:"WARDEN_DATABASE_URL"`
	DBSchema    string `env:"WARDEN_DB_SCHEMA" envDefault:"warden"`
	DBMaxConns  int32  `env:"WARDEN_DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"WARDEN_DB_MIN_CONNS" envDefault:"0"`

	// ClaimBackend selects the unique-claim store. Empty picks postgres when
	// a database is configured and memory otherwise.
	ClaimBackend string `env:"WARDEN_CLAIM_BACKEND"`
	RedisURL     string `env:"WARDEN_REDIS_URL"`
	SQLitePath   string `env:"WARDEN_SQLITE_PATH"`

	SweepInterval     time.Duration `env:"WARDEN_SWEEP_INTERVAL" envDefault:"1h"`
	SweepInactiveDays int           `env:"WARDEN_SWEEP_INACTIVE_DAYS" envDefault:"30"`

	// If true, /readyz returns 503 unless the database is configured and reachable.
	ReadinessRequireDB bool `env:"WARDEN_READINESS_REQUIRE_DB" envDefault:"false"`

	// If true, WARDEN_TOKEN_HMAC_KEY must be set (>= 32 bytes).
	RequireTokenHMAC bool `env:"WARDEN_REQUIRE_TOKEN_HMAC" envDefault:"false"`
}

// LoadConfig parses Config from the environment and validates it.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	cfg.ClaimBackend = cfg.claimBackend()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) claimBackend() string {
	b := strings.ToLower(strings.TrimSpace(c.ClaimBackend))
	if b != "" {
		return b
	}
	if c.DatabaseURL != "" {
		return ClaimBackendPostgres
	}
	return ClaimBackendMemory
}

// Validate checks ranges and backend prerequisites.
func (c Config) Validate() error {
	switch c.claimBackend() {
	case ClaimBackendMemory:
	case ClaimBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: claim backend postgres needs WARDEN_DATABASE_URL", ErrConfig)
		}
	case ClaimBackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("%w: claim backend redis needs WARDEN_REDIS_URL", ErrConfig)
		}
	case ClaimBackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: claim backend sqlite needs WARDEN_SQLITE_PATH", ErrConfig)
		}
	default:
		return fmt.Errorf("%w: unknown WARDEN_CLAIM_BACKEND %q", ErrConfig, c.ClaimBackend)
	}

	switch {
	case c.SweepInterval <= 0:
		return fmt.Errorf("%w: WARDEN_SWEEP_INTERVAL must be positive", ErrConfig)
	case c.SweepInactiveDays < 1 || c.SweepInactiveDays > 3650:
		return fmt.Errorf("%w: WARDEN_SWEEP_INACTIVE_DAYS out of range [1..3650]", ErrConfig)
	case c.DBMaxConns < 0 || c.DBMinConns < 0 || (c.DBMaxConns > 0 && c.DBMinConns > c.DBMaxConns):
		return fmt.Errorf("%w: WARDEN_DB_MIN_CONNS/WARDEN_DB_MAX_CONNS", ErrConfig)
	}

	switch strings.ToLower(strings.TrimSpace(c.LogFormat)) {
	case "", "json", "pretty":
	default:
		return fmt.Errorf("%w: WARDEN_LOG_FORMAT must be json or pretty", ErrConfig)
	}
	return nil
}
