package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "warden",
		Usage: "Identity, credential and session store",
		Commands: []*cli.Command{
			serveCmd(),
			migrateCmd(),
			sweepCmd(),
			repairClaimCmd(),
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("warden.fail", "err", err)
		cancel()
		os.Exit(1)
	}
}
