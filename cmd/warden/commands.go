package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warden/cmd/internal/app"
	"warden/cmd/internal/migrations"

	"github.com/urfave/cli/v2"
)

// open loads config and builds the runtime. The caller must Close it.
func open(ctx context.Context) (*app.App, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.NewLogger(cfg.LogLevel, cfg.LogFormat))
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the ops HTTP server and the periodic sweeper",
		Action: func(c *cli.Context) error {
			a, err := open(c.Context)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.Serve(c.Context)
		},
	}
}

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the embedded Postgres migrations",
		Action: func(c *cli.Context) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("migrate: WARDEN_DATABASE_URL is not set")
			}
			log := app.NewLogger(cfg.LogLevel, cfg.LogFormat)

			if err := migrations.Up(c.Context, cfg.DatabaseURL, cfg.DBSchema); err != nil {
				return err
			}
			log.Info("migrate.done", "schema", cfg.DBSchema)
			return nil
		},
	}
}

func sweepCmd() *cli.Command {
	days := 0
	return &cli.Command{
		Name:  "sweep",
		Usage: "Remove inactive sessions and purge expired tokens once",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "days",
				Usage:       "Remove sessions not updated for this many days (default WARDEN_SWEEP_INACTIVE_DAYS)",
				Destination: &days,
			},
		},
		Action: func(c *cli.Context) error {
			a, err := open(c.Context)
			if err != nil {
				return err
			}
			defer a.Close()

			if days > 0 {
				a.Sweeper.InactiveDays = days
			}
			res, err := a.Sweeper.Run(c.Context, time.Time{})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "sessions removed: %d\ntokens purged: %d\n", res.SessionsRemoved, res.TokensPurged)
			return nil
		},
	}
}

func repairClaimCmd() *cli.Command {
	var scope, value string
	return &cli.Command{
		Name:  "repair-claim",
		Usage: "Release a claim whose owner no longer exists",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "scope",
				Usage:       "Claim scope, e.g. User.auth_id",
				Required:    true,
				Destination: &scope,
			},
			&cli.StringFlag{
				Name:        "value",
				Usage:       "Claimed value",
				Required:    true,
				Destination: &value,
			},
		},
		Action: func(c *cli.Context) error {
			a, err := open(c.Context)
			if err != nil {
				return err
			}
			defer a.Close()

			released, err := a.Identity.RepairClaim(c.Context, scope, value)
			if err != nil {
				return err
			}
			if released {
				fmt.Fprintf(c.App.Writer, "released %s:%s\n", scope, value)
			} else {
				fmt.Fprintf(c.App.Writer, "kept %s:%s (absent or owned by a live user)\n", scope, value)
			}
			return nil
		},
	}
}
