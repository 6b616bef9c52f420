package authtoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warden/cmd/internal/pgutil"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps token records in <schema>.user_tokens. The pool is
// owned by the caller.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema (default "warden").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		v, err := pgutil.Schema("authtoken", schema)
		if err != nil {
			return err
		}
		s.schema = v
		return nil
	}
}

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
		return nil, fmt.Errorf("authtoken: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table() string { return pgutil.Ident(s.schema, "user_tokens") }

func (s *PostgresStore) Put(ctx context.Context, r Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (subject, purpose, token_hash, created_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (subject, purpose, token_hash) DO UPDATE
		    SET created_at = EXCLUDED.created_at`,
		r.Subject, r.Purpose, r.Hash, r.CreatedAt,
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, k Key) (Record, bool, error) {
	r := Record{Subject: k.Subject, Purpose: k.Purpose, Hash: k.Hash}
	err := s.pool.QueryRow(ctx,
		`SELECT created_at FROM `+s.table()+`
		  WHERE subject = $1 AND purpose = $2 AND token_hash = $3`,
		k.Subject, k.Purpose, k.Hash,
	).Scan(&r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

func (s *PostgresStore) FindByPurpose(ctx context.Context, purpose, hash string) (Record, bool, error) {
	r := Record{Purpose: purpose, Hash: hash}
	err := s.pool.QueryRow(ctx,
		`SELECT subject, created_at FROM `+s.table()+`
		  WHERE purpose = $1 AND token_hash = $2
		  ORDER BY created_at DESC
		  LIMIT 1`,
		purpose, hash,
	).Scan(&r.Subject, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

func (s *PostgresStore) Delete(ctx context.Context, k Key) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM `+s.table()+` WHERE subject = $1 AND purpose = $2 AND token_hash = $3`,
		k.Subject, k.Purpose, k.Hash,
	)
	return err
}

// DeleteExpired runs one DELETE per overridden purpose and one for the rest,
// inside a single transaction.
func (s *PostgresStore) DeleteExpired(ctx context.Context, exp Expiry, now time.Time) (int64, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		total    int64
		purposes = make([]string, 0, len(exp.PerPurpose))
	)
	for purpose, d := range exp.PerPurpose {
		if d <= 0 {
			continue
		}
		purposes = append(purposes, purpose)
		tag, err := tx.Exec(ctx,
			`DELETE FROM `+s.table()+` WHERE purpose = $1 AND created_at <= $2`,
			purpose, now.Add(-d),
		)
		if err != nil {
			return 0, err
		}
		total += tag.RowsAffected()
	}

	tag, err := tx.Exec(ctx,
		`DELETE FROM `+s.table()+` WHERE NOT (purpose = ANY($1)) AND created_at <= $2`,
		purposes, now.Add(-exp.Default),
	)
	if err != nil {
		return 0, err
	}
	total += tag.RowsAffected()

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return total, nil
}
