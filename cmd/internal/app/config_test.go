package app

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("WARDEN_DATABASE_URL", "")
	t.Setenv("WARDEN_CLAIM_BACKEND", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:9090" {
		t.Fatalf("addr = %q", cfg.HTTPAddr)
	}
	if cfg.ClaimBackend != ClaimBackendMemory {
		t.Fatalf("claim backend = %q, want memory", cfg.ClaimBackend)
	}
	if cfg.SweepInterval != time.Hour || cfg.SweepInactiveDays != 30 {
		t.Fatalf("sweep defaults: %v %d", cfg.SweepInterval, cfg.SweepInactiveDays)
	}
	if cfg.DBSchema != "warden" || cfg.MaxHeaderBytes != 1<<20 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfig_PostgresClaimsWhenDatabaseSet(t *testing.T) {
	t.Setenv("WARDEN_DATABASE_URL", "postgres://localhost/warden")
	t.Setenv("WARDEN_CLAIM_BACKEND", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ClaimBackend != ClaimBackendPostgres {
		t.Fatalf("claim backend = %q, want postgres", cfg.ClaimBackend)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	base := Config{SweepInterval: time.Hour, SweepInactiveDays: 30, DBMaxConns: 10}

	cases := []struct {
		name string
		mod  func(*Config)
		ok   bool
	}{
		{"memory", func(c *Config) {}, true},
		{"redis without url", func(c *Config) { c.ClaimBackend = "redis" }, false},
		{"redis with url", func(c *Config) { c.ClaimBackend = "redis"; c.RedisURL = "redis://localhost:6379/0" }, true},
		{"sqlite without path", func(c *Config) { c.ClaimBackend = "sqlite" }, false},
		{"postgres without db", func(c *Config) { c.ClaimBackend = "postgres" }, false},
		{"unknown backend", func(c *Config) { c.ClaimBackend = "etcd" }, false},
		{"zero interval", func(c *Config) { c.SweepInterval = 0 }, false},
		{"zero days", func(c *Config) { c.SweepInactiveDays = 0 }, false},
		{"min above max conns", func(c *Config) { c.DBMinConns = 20 }, false},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, false},
		{"pretty log format", func(c *Config) { c.LogFormat = "pretty" }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := base
			tc.mod(&c)
			err := c.Validate()
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}
