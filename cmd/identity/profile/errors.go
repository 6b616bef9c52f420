package profile

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the kind for rejected arguments and password policy
// violations.
var ErrInvalidInput = errors.New("invalid_input")

// OpError is a typed operation error. Msg never carries secrets.
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

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}
