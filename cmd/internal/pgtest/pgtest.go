// Package pgtest opens throwaway PostgreSQL schemas for integration tests.
//
// Tests are opt-in and require WARDEN_DATABASE_URL. Outside CI an
// unreachable Postgres skips the test instead of failing it.
package pgtest

import (
	"context"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"warden/cmd/internal/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// EnvURL names the variable holding the test database URL.
const EnvURL = "WARDEN_DATABASE_URL"

// Open connects to the test database or skips the test.
// The pool is closed on test cleanup.
func Open(t *testing.T) *pgxpool.Pool {
	t.Helper()

	raw := strings.TrimSpace(os.Getenv(EnvURL))
	if raw == "" {
		t.Skip("integration test skipped: " + EnvURL + " is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 12*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(raw)
	if err != nil {
		t.Fatalf("parse %s: %v", EnvURL, err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer pingCancel()

	c, err := pool.Acquire(pingCtx)
	if err != nil {
		pool.Close()
		if ShouldSkip(err) {
			t.Skipf("integration test skipped: Postgres unreachable (%s set): %v", EnvURL, err)
		}
		t.Fatalf("acquire: %v", err)
	}
	c.Release()

	t.Cleanup(pool.Close)
	return pool
}

// Schema creates a fresh schema with every migration applied and drops it
// on cleanup. It returns the schema name.
func Schema(t *testing.T, pool *pgxpool.Pool) string {
	t.Helper()

	schema := "warden_it_" + strings.ToLower(ulid.MustNew(ulid.Now(), rand.Reader).String())
	ident := pgx.Identifier{schema}.Sanitize()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	up, err := migrations.UpSQL()
	if err != nil {
		t.Fatalf("load migrations: %v", err)
	}

	// One simple-protocol Exec runs on one connection, so the search_path
	// applies to every statement in the batch.
	batch := "CREATE SCHEMA " + ident + ";\nSET search_path TO " + ident + ";\n" + up + "\nRESET search_path;"
	if _, err := pool.Exec(ctx, batch); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = pool.Exec(ctx, `DROP SCHEMA IF EXISTS `+ident+` CASCADE`)
	})
	return schema
}

// ShouldSkip reports connectivity failures that should skip rather than
// fail a local run. In CI nothing is skipped.
func ShouldSkip(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}
