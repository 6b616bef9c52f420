package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"warden/cmd/internal/pgutil"
	"warden/cmd/internal/value"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps profiles in <schema>.profiles. The pool is owned by
// the caller.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema (default "warden").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		v, err := pgutil.Schema("profile", schema)
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
		return nil, fmt.Errorf("profile: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table() string { return pgutil.Ident(s.schema, "profiles") }

func (s *PostgresStore) Put(ctx context.Context, p Profile) error {
	info, err := json.Marshal(p.UserInfo)
	if err != nil {
		return fmt.Errorf("encode user_info: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (auth_id, password_hash, user_info, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (auth_id) DO UPDATE
		    SET password_hash = EXCLUDED.password_hash,
		        user_info = EXCLUDED.user_info,
		        created_at = EXCLUDED.created_at,
		        updated_at = EXCLUDED.updated_at`,
		p.AuthID, p.PasswordHash, info, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, authID string) (Profile, bool, error) {
	var (
		p    Profile
		info []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT auth_id, password_hash, user_info, created_at, updated_at
		   FROM `+s.table()+`
		  WHERE auth_id = $1`,
		authID,
	).Scan(&p.AuthID, &p.PasswordHash, &info, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, err
	}

	p.UserInfo = value.Map{}
	if err := json.Unmarshal(info, &p.UserInfo); err != nil {
		return Profile{}, false, fmt.Errorf("decode user_info: %w", err)
	}
	return p, true, nil
}

func (s *PostgresStore) Delete(ctx context.Context, authID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE auth_id = $1`, authID)
	return err
}
