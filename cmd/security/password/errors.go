package password

import "errors"

// Policy and hash errors. Policy errors are wrapped with the offending
// length; match them with errors.Is.
var (
	ErrPasswordTooShort = errors.New("password: shorter than WARDEN_PASSWORD_MIN_LEN")
	ErrPasswordTooLong  = errors.New("password: longer than WARDEN_PASSWORD_MAX_LEN")
	ErrWeakPassword     = errors.New("password: rejected as trivially guessable")
	ErrInvalidHash      = errors.New("password: malformed or unsupported argon2id hash")
)
