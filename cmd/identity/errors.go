package identity

import (
	"errors"
	"fmt"
	"strings"
)

// OpError is a typed operation error with a stable Op + Kind contract.
// Msg may include human-readable context; it never includes secrets.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e OpError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Msg)
}

func (e OpError) Unwrap() error { return e.Kind }

// DuplicateError reports values that are already claimed by another user.
// Fields holds stable logical names: "auth_id", "email" or an attribute name.
type DuplicateError struct {
	Op     string
	Fields []string
}

func (e *DuplicateError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %v", e.Op, ErrConflict)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrConflict, strings.Join(e.Fields, ","))
}

func (e *DuplicateError) Unwrap() error { return ErrConflict }

// NotFoundError reports a missing referenced resource.
type NotFoundError struct {
	Op       string
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s: %v", e.Op, ErrNotFound)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrNotFound, e.Resource)
}

func (e NotFoundError) Unwrap() error { return ErrNotFound }

func invalid(op, msg string) error {
	return OpError{Op: op, Kind: ErrInvalidInput, Msg: msg}
}

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// IsDuplicate reports whether err is a *DuplicateError.
func IsDuplicate(err error) bool {
	var de *DuplicateError
	return errors.As(err, &de)
}

// DuplicateFields returns the offending fields of a *DuplicateError in err.
func DuplicateFields(err error) []string {
	var de *DuplicateError
	if !errors.As(err, &de) {
		return nil
	}
	return de.Fields
}

// IsNotFound reports whether err represents ErrNotFound (including NotFoundError).
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidInput reports whether err represents ErrInvalidInput.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
