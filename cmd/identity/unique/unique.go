// Package unique emulates a unique index with claim records.
//
// A claim is a record keyed by scope + ":" + value whose existence proves
// that the value belongs to the record's owner. Creating a claim is an atomic
// insert-if-absent in the backing Store; it never overwrites. Every
// uniqueness guarantee in warden (auth ids, emails, unique attributes)
// reduces to one or more Create calls.
package unique

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"warden/cmd/internal/metrics"
)

// ErrInvalidClaim is returned for claims with an empty scope or owner.
var ErrInvalidClaim = errors.New("unique: invalid claim")

// Store is the storage contract for claim records.
//
// Insert must be atomic with respect to concurrent callers on the same key:
// at most one of them may ever observe true.
type Store interface {
	Insert(ctx context.Context, key, owner string, now time.Time) (bool, error)
	Owner(ctx context.Context, key string) (owner string, ok bool, err error)
	Delete(ctx context.Context, key string) error
}

// Claim names one value to claim within a scope.
type Claim struct {
	Scope string
	Value string
	Owner string
}

// Key is the record key for c.
func (c Claim) Key() string { return Key(c.Scope, c.Value) }

// Key builds the record key for a scoped value.
func Key(scope, value string) string {
	return scope + ":" + value
}

// Registry creates and releases claims.
type Registry struct {
	store   Store
	log     *slog.Logger
	metrics metrics.Recorder
}

// Option configures a Registry.
type Option func(*Registry)

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(r *Registry) { r.metrics = metrics.OrNop(m) }
}

// NewRegistry returns a Registry backed by store.
func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		log:     slog.Default(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Create claims value within scope for owner.
// It returns true iff this call created the record.
func (r *Registry) Create(ctx context.Context, scope, value, owner string) (bool, error) {
	const op = "unique.Create"

	if r == nil || r.store == nil {
		return false, fmt.Errorf("%s: nil registry", op)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if strings.TrimSpace(scope) == "" || owner == "" {
		return false, fmt.Errorf("%s: %w", op, ErrInvalidClaim)
	}

	won, err := r.store.Insert(ctx, Key(scope, value), owner, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	r.metrics.ClaimAttempt(scope, won)
	return won, nil
}

// CreateMulti applies Create to each claim independently and reports
// per-claim results. Partial success is the caller's to undo.
//
// On a storage error CreateMulti stops; the returned slice still reports
// the claims won before the failure (later entries are false).
func (r *Registry) CreateMulti(ctx context.Context, claims []Claim) ([]bool, error) {
	out := make([]bool, len(claims))
	for i, c := range claims {
		won, err := r.Create(ctx, c.Scope, c.Value, c.Owner)
		if err != nil {
			return out, err
		}
		out[i] = won
	}
	return out, nil
}

// Release deletes the claim for value within scope. Releasing an absent
// claim is not an error.
func (r *Registry) Release(ctx context.Context, scope, value string) error {
	const op = "unique.Release"

	if r == nil || r.store == nil {
		return fmt.Errorf("%s: nil registry", op)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := r.store.Delete(ctx, Key(scope, value)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	r.metrics.ClaimReleased(scope)
	return nil
}

// ReleaseAll releases every claim in claims whose won flag is true.
// It keeps going after failures and returns them joined.
func (r *Registry) ReleaseAll(ctx context.Context, claims []Claim, won []bool) error {
	var errs []error
	for i, c := range claims {
		if i >= len(won) || !won[i] {
			continue
		}
		if err := r.Release(ctx, c.Scope, c.Value); err != nil {
			r.log.Error("unique.release.fail", "scope", c.Scope, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Owner returns the owner of value within scope. A missing claim is
// reported as ok=false, not as an error.
func (r *Registry) Owner(ctx context.Context, scope, value string) (string, bool, error) {
	const op = "unique.Owner"

	if r == nil || r.store == nil {
		return "", false, fmt.Errorf("%s: nil registry", op)
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	owner, ok, err := r.store.Owner(ctx, Key(scope, value))
	if err != nil {
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return owner, ok, nil
}
