// Package pgutil holds the small PostgreSQL helpers shared by warden's pgx stores.
package pgutil

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultSchema is the schema used by every store unless overridden.
const DefaultSchema = "warden"

var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidIdent reports whether s is a plain, unquoted-safe PostgreSQL identifier.
func ValidIdent(s string) bool {
	return identRe.MatchString(s)
}

// Schema trims and validates a schema name for a store option.
func Schema(pkg, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%s: empty schema", pkg)
	}
	if !ValidIdent(raw) {
		return "", fmt.Errorf("%s: invalid schema identifier", pkg)
	}
	return raw, nil
}

// Ident safely quotes a schema-qualified identifier: "schema"."name".
func Ident(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

// IsUniqueViolation reports a 23505 unique_violation.
func IsUniqueViolation(err error) bool {
	return hasCode(err, "23505")
}

// IsForeignKeyViolation reports a 23503 foreign_key_violation.
func IsForeignKeyViolation(err error) bool {
	return hasCode(err, "23503")
}

// ConstraintName returns the violated constraint, if err is a PgError.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == code
}
