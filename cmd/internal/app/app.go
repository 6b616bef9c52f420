// Package app wires the warden runtime: config, logging, storage backends,
// services, the ops HTTP server and the maintenance sweeper.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"warden/cmd/identity"
	"warden/cmd/identity/profile"
	"warden/cmd/identity/unique"
	"warden/cmd/internal/auth/authtoken"
	"warden/cmd/internal/auth/session"
	"warden/cmd/internal/metrics"
	"warden/cmd/internal/sweep"
	"warden/cmd/security/password"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App owns the backends and services of one warden process.
type App struct {
	cfg Config
	log Logger

	registry *prometheus.Registry
	metrics  *metrics.Collector

	dbPool  *pgxpool.Pool
	closers []func() error

	Claims   *unique.Registry
	Profiles *profile.Service
	Tokens   *authtoken.Service
	Sessions *session.Service
	Identity *identity.Service
	Sweeper  *sweep.Job
}

// New opens the configured backends and builds every service. On error
// anything opened so far is closed.
func New(ctx context.Context, cfg Config, log Logger) (_ *App, err error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{
		cfg:      cfg,
		log:      log,
		registry: reg,
		metrics:  metrics.NewCollector(reg),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	hasher, err := ValidateSecurityConfig(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL != "" {
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db: %w", err)
		}
		a.dbPool = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		log.Info("db.enabled.postgres_store", "schema", cfg.DBSchema)
	} else {
		log.Info("db.disabled.inmemory_store")
	}

	claimStore, err := a.claimStore(ctx)
	if err != nil {
		return nil, err
	}
	a.Claims = unique.NewRegistry(claimStore, unique.WithLogger(log), unique.WithMetrics(a.metrics))

	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	tokCfg, err := authtoken.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	tokenStore, err := a.tokenStore(ctx, tokCfg)
	if err != nil {
		return nil, err
	}
	a.Tokens = authtoken.NewService(tokenStore, append(tokCfg.Options(),
		authtoken.WithHasher(hasher),
		authtoken.WithLogger(log),
		authtoken.WithMetrics(a.metrics),
	)...)

	var (
		users    identity.Store = identity.NewMemoryStore()
		profiles profile.Store  = profile.NewMemoryStore()
		sessions session.Store  = session.NewMemoryStore()
	)
	if a.dbPool != nil {
		if users, err = identity.NewPostgresStore(a.dbPool, identity.WithSchema(cfg.DBSchema)); err != nil {
			return nil, err
		}
		if profiles, err = profile.NewPostgresStore(a.dbPool, profile.WithSchema(cfg.DBSchema)); err != nil {
			return nil, err
		}
		if sessions, err = session.NewPostgresStore(a.dbPool, session.WithSchema(cfg.DBSchema)); err != nil {
			return nil, err
		}
	}

	a.Profiles = profile.NewService(profiles, pwCfg, profile.WithLogger(log))

	codec, err := sessionCodec(log)
	if err != nil {
		return nil, err
	}
	a.Sessions = session.NewService(sessions, codec, session.WithLogger(log), session.WithMetrics(a.metrics))

	a.Identity, err = identity.NewService(identity.Deps{
		Users:    users,
		Claims:   a.Claims,
		Profiles: a.Profiles,
		Tokens:   a.Tokens,
	}, identity.WithLogger(log), identity.WithMetrics(a.metrics))
	if err != nil {
		return nil, err
	}

	a.Sweeper = sweep.NewJob(a.Sessions, a.Tokens, log, a.metrics)
	a.Sweeper.InactiveDays = cfg.SweepInactiveDays

	return a, nil
}

func (a *App) claimStore(ctx context.Context) (unique.Store, error) {
	switch a.cfg.claimBackend() {
	case ClaimBackendPostgres:
		if a.dbPool == nil {
			return nil, fmt.Errorf("%w: claim backend postgres needs WARDEN_DATABASE_URL", ErrConfig)
		}
		return unique.NewPostgresStore(a.dbPool, unique.WithSchema(a.cfg.DBSchema))
	case ClaimBackendRedis:
		rdb, err := NewRedisClient(ctx, a.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		return unique.NewRedisStore(rdb)
	case ClaimBackendSQLite:
		st, err := unique.OpenSQLite(a.cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, st.Close)
		return st, nil
	default:
		return unique.NewMemoryStore(), nil
	}
}

func (a *App) tokenStore(ctx context.Context, cfg authtoken.Config) (authtoken.Store, error) {
	if a.dbPool != nil {
		return authtoken.NewPostgresStore(a.dbPool, authtoken.WithSchema(a.cfg.DBSchema))
	}

	window := cfg.MaxAge
	for _, d := range cfg.PurposeMaxAge {
		window = max(window, d)
	}
	st, err := authtoken.NewMemoryStore(ctx, window)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.Close)
	return st, nil
}

// sessionCodec loads the blob codec. Without a signing key the session
// service still works; only Serialize and GetByValue are unavailable.
func sessionCodec(log Logger) (*session.Codec, error) {
	if strings.TrimSpace(os.Getenv(session.EnvSecretKey)) == "" {
		log.Warn("session.codec.disabled", "reason", session.EnvSecretKey+" not set")
		return nil, nil
	}
	cfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return session.NewCodec(cfg)
}

// Registry returns the Prometheus registry of this App.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// DB returns the Postgres pool, or nil when running in memory.
func (a *App) DB() *pgxpool.Pool { return a.dbPool }

// Close releases backends in reverse order of opening.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.log.Error("store.close.fail", "err", err)
		return err
	}
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

