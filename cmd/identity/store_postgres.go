package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"warden/cmd/internal/pgutil"
	"warden/cmd/internal/value"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements user persistence over PostgreSQL.
//
// Design notes:
// - The pgx pool is owned by the caller; this store must NOT close it.
// - Schema/table identifiers are quoted via pgx.Identifier.
// - Auth id and email appends are single conditional UPDATEs, so concurrent
//   appends to the same user never lose each other's writes.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema used by the store (default "warden").
// The schema name is validated to be a legal PostgreSQL identifier.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		v, err := pgutil.Schema("identity", schema)
		if err != nil {
			return err
		}
		s.schema = v
		return nil
	}
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: pgutil.DefaultSchema,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, fmt.Errorf("identity: nil pool")
	}
	return st, nil
}

const userColumns = `id, auth_ids, emails, attrs, unique_attrs, created_at, updated_at`

func (s *PostgresStore) table() string { return pgutil.Ident(s.schema, "users") }

func (s *PostgresStore) Insert(ctx context.Context, u User) error {
	attrs, err := json.Marshal(u.Attrs)
	if err != nil {
		return fmt.Errorf("encode attrs: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID,
		nonNil(u.AuthIDs),
		nonNil(u.Emails),
		attrs,
		nonNil(u.UniqueAttrs),
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if pgutil.IsUniqueViolation(err) {
			return fmt.Errorf("%w: user id", ErrConflict)
		}
		return err
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (User, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM `+s.table()+` WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

func (s *PostgresStore) AppendAuthID(ctx context.Context, id, authID string, now time.Time) (User, bool, error) {
	return s.appendTo(ctx, "auth_ids", id, authID, now)
}

func (s *PostgresStore) AppendEmail(ctx context.Context, id, email string, now time.Time) (User, bool, error) {
	return s.appendTo(ctx, "emails", id, email, now)
}

// appendTo appends v to column unless it is already present. column is one
// of the fixed array columns, never caller input.
func (s *PostgresStore) appendTo(ctx context.Context, column, id, v string, now time.Time) (User, bool, error) {
	col := pgx.Identifier{column}.Sanitize()

	row := s.pool.QueryRow(ctx,
		`UPDATE `+s.table()+`
		    SET `+col+` = array_append(`+col+`, $2),
		        updated_at = $3
		  WHERE id = $1
		    AND NOT ($2 = ANY(`+col+`))
		  RETURNING `+userColumns,
		id, v, now,
	)
	u, err := scanUser(row)
	if err == nil {
		return u, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return User{}, false, err
	}

	// Either the user is missing or v was already present.
	return s.Get(ctx, id)
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE id = $1`, id)
	return err
}

func scanUser(row pgx.Row) (User, error) {
	var (
		u     User
		attrs []byte
	)
	if err := row.Scan(&u.ID, &u.AuthIDs, &u.Emails, &attrs, &u.UniqueAttrs, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	u.Attrs = value.Map{}
	if err := json.Unmarshal(attrs, &u.Attrs); err != nil {
		return User{}, fmt.Errorf("decode attrs: %w", err)
	}
	return u, nil
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
