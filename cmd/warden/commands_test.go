package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"
)

func testCLI(out *bytes.Buffer) *cli.App {
	return &cli.App{
		Name:     "warden",
		Writer:   out,
		Commands: []*cli.Command{sweepCmd(), repairClaimCmd(), migrateCmd()},
	}
}

func inMemoryEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"WARDEN_DATABASE_URL", "WARDEN_CLAIM_BACKEND", "WARDEN_TOKEN_HMAC_KEY", "WARDEN_PASETO_V4_SECRET_KEY_HEX"} {
		t.Setenv(k, "")
	}
	t.Setenv("WARDEN_LOG_LEVEL", "error")
}

func TestSweepCommand_InMemory(t *testing.T) {
	inMemoryEnv(t)

	var out bytes.Buffer
	if err := testCLI(&out).RunContext(context.Background(), []string{"warden", "sweep", "--days", "5"}); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !strings.Contains(out.String(), "sessions removed: 0") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestRepairClaimCommand(t *testing.T) {
	inMemoryEnv(t)

	var out bytes.Buffer
	app := testCLI(&out)

	if err := app.RunContext(context.Background(), []string{"warden", "repair-claim", "--scope", "User.auth_id"}); err == nil {
		t.Fatalf("expected missing --value to fail")
	}

	out.Reset()
	if err := app.RunContext(context.Background(), []string{"warden", "repair-claim", "--scope", "User.auth_id", "--value", "own:ghost"}); err != nil {
		t.Fatalf("repair-claim: %v", err)
	}
	if !strings.Contains(out.String(), "kept User.auth_id:own:ghost") {
		t.Fatalf("unexpected output: %q", out.String())
	}
}

func TestMigrateCommand_RequiresDatabase(t *testing.T) {
	inMemoryEnv(t)

	var out bytes.Buffer
	if err := testCLI(&out).RunContext(context.Background(), []string{"warden", "migrate"}); err == nil {
		t.Fatalf("expected error without WARDEN_DATABASE_URL")
	}
}
