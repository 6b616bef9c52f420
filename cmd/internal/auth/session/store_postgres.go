package session

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

// PostgresStore implements Store using PostgreSQL (<schema>.sessions).
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the Postgres schema (default "warden").
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		v, err := pgutil.Schema("session", schema)
		if err != nil {
			return err
		}
		s.schema = v
		return nil
	}
}

// NewPostgresStore creates a Postgres-backed session store.
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
		return nil, fmt.Errorf("session: nil pool")
	}
	return st, nil
}

func (s *PostgresStore) table() string { return pgutil.Ident(s.schema, "sessions") }

const sessionColumns = `id, user_id, data, data_hash, created_at, updated_at`

// Insert adds a new session row.
func (s *PostgresStore) Insert(ctx context.Context, sess Session) error {
	data, err := encodeData(sess.Data)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+s.table()+` (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, nullIfEmpty(sess.UserID), data, sess.Hash, sess.CreatedAt, sess.UpdatedAt,
	)
	if pgutil.IsUniqueViolation(err) {
		return fmt.Errorf("%w: session id", ErrConflict)
	}
	return err
}

// Get loads a session row by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Session, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM `+s.table()+` WHERE id = $1`, id)
	return scanSession(row)
}

// GetLatestByUser loads the most recently updated session of a user.
func (s *PostgresStore) GetLatestByUser(ctx context.Context, userID string) (Session, bool, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		   FROM `+s.table()+`
		  WHERE user_id = $1
		  ORDER BY updated_at DESC
		  LIMIT 1`, userID)
	return scanSession(row)
}

// Update overwrites the mutable columns of an existing row.
func (s *PostgresStore) Update(ctx context.Context, sess Session) (bool, error) {
	data, err := encodeData(sess.Data)
	if err != nil {
		return false, err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE `+s.table()+`
		    SET user_id = $2, data = $3, data_hash = $4, updated_at = $5
		  WHERE id = $1`,
		sess.ID, nullIfEmpty(sess.UserID), data, sess.Hash, sess.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Replace upserts sess and removes oldID in one transaction.
func (s *PostgresStore) Replace(ctx context.Context, oldID string, sess Session) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if oldID != sess.ID {
		if err := deleteTx(ctx, tx, s.table(), oldID); err != nil {
			return err
		}
	}
	if err := upsertTx(ctx, tx, s.table(), sess); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Delete removes a session row (idempotent).
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE id = $1`, id)
	return err
}

// DeleteInactive removes rows last updated before cutoff.
func (s *PostgresStore) DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM `+s.table()+` WHERE updated_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanSession(row pgx.Row) (Session, bool, error) {
	var (
		sess   Session
		userID *string
		data   []byte
	)
	err := row.Scan(&sess.ID, &userID, &data, &sess.Hash, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}

	if userID != nil {
		sess.UserID = *userID
	}
	sess.Data = value.Map{}
	if err := json.Unmarshal(data, &sess.Data); err != nil {
		return Session{}, false, fmt.Errorf("decode session data: %w", err)
	}
	return sess, true, nil
}

func encodeData(m value.Map) ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode session data: %w", err)
	}
	return b, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
