// Package sweep runs warden's periodic maintenance: removing inactive
// sessions and purging expired tokens. Both steps are idempotent.
package sweep

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"warden/cmd/internal/metrics"
)

// Sessions is the part of session.Service the job needs.
type Sessions interface {
	RemoveInactive(ctx context.Context, daysOld int, now time.Time) (int64, error)
}

// Tokens is the part of authtoken.Service the job needs.
type Tokens interface {
	Purge(ctx context.Context, now time.Time) (int64, error)
}

// Result reports what one Run removed.
type Result struct {
	SessionsRemoved int64
	TokensPurged    int64
}

// Job removes inactive sessions and expired tokens.
type Job struct {
	sessions Sessions
	tokens   Tokens
	logger   *slog.Logger
	metrics  metrics.Recorder

	// InactiveDays is passed to RemoveInactive (default 30).
	InactiveDays int
}

// NewJob returns a Job. Either dependency may be nil to skip that step.
func NewJob(sessions Sessions, tokens Tokens, logger *slog.Logger, m metrics.Recorder) *Job {
	if logger == nil {
		logger = slog.Default()
	}
	return &Job{
		sessions:     sessions,
		tokens:       tokens,
		logger:       logger,
		metrics:      metrics.OrNop(m),
		InactiveDays: 30,
	}
}

// Run performs one sweep at now (zero means the current time). A failing
// step does not stop the other; failures are returned joined.
func (j *Job) Run(ctx context.Context, now time.Time) (Result, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var (
		res  Result
		errs []error
	)

	if j.sessions != nil {
		start := time.Now()
		n, err := j.sessions.RemoveInactive(ctx, j.InactiveDays, now)
		j.metrics.SweepDuration("sessions", time.Since(start))
		if err != nil {
			j.logger.Error("sweep.sessions.fail",
				slog.String("error", err.Error()),
				slog.Int("inactive_days", j.InactiveDays),
			)
			errs = append(errs, err)
		} else {
			res.SessionsRemoved = n
			j.logger.Info("sweep.sessions.done",
				slog.Int64("removed", n),
				slog.Int("inactive_days", j.InactiveDays),
				slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
			)
		}
	}

	if j.tokens != nil {
		start := time.Now()
		n, err := j.tokens.Purge(ctx, now)
		j.metrics.SweepDuration("tokens", time.Since(start))
		if err != nil {
			j.logger.Error("sweep.tokens.fail", slog.String("error", err.Error()))
			errs = append(errs, err)
		} else {
			res.TokensPurged = n
			j.logger.Info("sweep.tokens.done",
				slog.Int64("purged", n),
				slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
			)
		}
	}

	return res, errors.Join(errs...)
}

// Loop runs the job every interval until ctx is done. Errors are logged
// and the loop keeps going.
func (j *Job) Loop(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("sweep: interval must be positive")
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			_, _ = j.Run(ctx, time.Time{})
		}
	}
}
