package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"warden/cmd/identity"
	"warden/cmd/internal/auth/session"

	paseto "aidanwoods.dev/go-paseto"
	"github.com/alicebob/miniredis/v2"
)

func testConfig() Config {
	return Config{
		HTTPAddr:          "127.0.0.1:0",
		DBSchema:          "warden",
		SweepInterval:     time.Hour,
		SweepInactiveDays: 30,
	}
}

func newTestApp(t *testing.T, cfg Config) *App {
	t.Helper()

	t.Setenv("WARDEN_TOKEN_HMAC_KEY", "")
	a, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestNew_InMemoryWiring(t *testing.T) {
	t.Setenv(session.EnvSecretKey, paseto.NewV4AsymmetricSecretKey().ExportHex())
	a := newTestApp(t, testConfig())
	ctx := context.Background()

	if a.DB() != nil {
		t.Fatalf("expected no database pool")
	}

	u, err := a.Identity.CreateUser(ctx, identity.CreateUserInput{AuthID: "own:alice", Emails: []string{"alice@example.com"}})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := a.Identity.CreateUser(ctx, identity.CreateUserInput{AuthID: "own:alice"}); !identity.IsDuplicate(err) {
		t.Fatalf("expected duplicate, got %v", err)
	}

	s, err := a.Sessions.Create(ctx, "", nil, time.Time{})
	if err != nil {
		t.Fatalf("session create: %v", err)
	}
	up, err := a.Sessions.UpgradeToUserSession(ctx, s.ID, u.ID, time.Time{})
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	blob, err := a.Sessions.Serialize(up)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if got, ok, err := a.Sessions.GetByValue(ctx, blob, time.Time{}); err != nil || !ok || got.UserID != u.ID {
		t.Fatalf("GetByValue: %+v ok=%v err=%v", got, ok, err)
	}

	res, err := a.Sweeper.Run(ctx, time.Now().Add(31*24*time.Hour))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.SessionsRemoved != 1 {
		t.Fatalf("expected the idle session swept, got %+v", res)
	}
}

func TestNew_WithoutSessionKeyDisablesBlobs(t *testing.T) {
	t.Setenv(session.EnvSecretKey, "")
	a := newTestApp(t, testConfig())

	s, err := a.Sessions.Create(context.Background(), "", nil, time.Time{})
	if err != nil {
		t.Fatalf("session create: %v", err)
	}
	if _, err := a.Sessions.Serialize(s); err == nil {
		t.Fatalf("expected serialize to fail without a signing key")
	}
}

func TestNew_SQLiteClaims(t *testing.T) {
	t.Setenv(session.EnvSecretKey, "")
	cfg := testConfig()
	cfg.ClaimBackend = ClaimBackendSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "claims.db")

	a := newTestApp(t, cfg)
	ctx := context.Background()

	won, err := a.Claims.Create(ctx, identity.ScopeAuthID, "own:bob", "owner-1")
	if err != nil || !won {
		t.Fatalf("claim: won=%v err=%v", won, err)
	}
	won, err = a.Claims.Create(ctx, identity.ScopeAuthID, "own:bob", "owner-2")
	if err != nil || won {
		t.Fatalf("second claim: won=%v err=%v", won, err)
	}
}

func TestNew_RedisClaims(t *testing.T) {
	t.Setenv(session.EnvSecretKey, "")
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.ClaimBackend = ClaimBackendRedis
	cfg.RedisURL = "redis://" + mr.Addr() + "/0"

	a := newTestApp(t, cfg)
	if _, err := a.Identity.CreateUser(context.Background(), identity.CreateUserInput{AuthID: "own:carol"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if !mr.Exists("warden:claim:" + identity.ScopeAuthID + ":own:carol") {
		t.Fatalf("expected claim key in redis, keys: %v", mr.Keys())
	}
}

func TestNew_RequireTokenHMAC(t *testing.T) {
	t.Setenv(session.EnvSecretKey, "")
	t.Setenv("WARDEN_TOKEN_HMAC_KEY", "")

	cfg := testConfig()
	cfg.RequireTokenHMAC = true
	if _, err := New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Fatalf("expected security policy error")
	}

	t.Setenv("WARDEN_TOKEN_HMAC_KEY", "0123456789abcdef0123456789abcdef")
	if _, err := ValidateSecurityConfig(cfg); err != nil {
		t.Fatalf("expected keyed hasher, got %v", err)
	}
}
