package unique

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warden/cmd/internal/pgutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps claims in <schema>.unique_claims.
// The primary key on key makes ON CONFLICT DO NOTHING the atomic claim.
// The pool is owned by the caller.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema (default "warden").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		v, err := pgutil.Schema("unique", schema)
		if err != nil {
			return err
		}
		s.schema = v
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{pool: pool, schema: pgutil.DefaultSchema}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("unique: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table() string { return pgutil.Ident(s.schema, "unique_claims") }

func (s *PostgresStore) Insert(ctx context.Context, key, owner string, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.table()+` (key, owner, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING
	`, key, owner, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Owner(ctx context.Context, key string) (string, bool, error) {
	var owner string
	err := s.pool.QueryRow(ctx, `SELECT owner FROM `+s.table()+` WHERE key = $1`, key).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return owner, true, nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE key = $1`, key)
	return err
}
