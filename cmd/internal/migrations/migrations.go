// Package migrations embeds warden's PostgreSQL schema and applies it with
// golang-migrate.
//
// The SQL files are schema-unqualified: tables land in the first schema on
// the connection's search_path, which Up pins to the requested schema.
package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"sort"
	"strings"

	"warden/cmd/internal/pgutil"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5:// scheme
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
)

//go:embed sql/*.sql
var files embed.FS

const dir = "sql"

// NewMigrator returns a migrate instance bound to schema.
// The caller must Close it.
func NewMigrator(databaseURL, schema string) (*migrate.Migrate, error) {
	target, err := migrateURL(databaseURL, schema)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(files, dir)
	if err != nil {
		return nil, fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, target)
	if err != nil {
		return nil, fmt.Errorf("migrator: %w", err)
	}
	return m, nil
}

// Up creates schema if needed and applies all pending migrations.
// Being already up to date is not an error.
func Up(ctx context.Context, databaseURL, schema string) error {
	schema, err := pgutil.Schema("migrations", schema)
	if err != nil {
		return err
	}

	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	_, err = conn.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{schema}.Sanitize())
	_ = conn.Close(ctx)
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	m, err := NewMigrator(databaseURL, schema)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// UpSQL returns every up migration concatenated in version order.
// Integration tests run it inside a throwaway schema.
func UpSQL() (string, error) {
	names, err := fs.Glob(files, dir+"/*.up.sql")
	if err != nil {
		return "", err
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return "", err
		}
		b.Write(body)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func migrateURL(databaseURL, schema string) (string, error) {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	switch u.Scheme {
	case "postgres", "postgresql", "pgx5":
	default:
		return "", fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}
	u.Scheme = "pgx5"

	q := u.Query()
	q.Set("search_path", schema)
	q.Set("x-migrations-table", "schema_migrations")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
