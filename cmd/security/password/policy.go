package password

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// trivialPasswords are rejected when Policy.RejectVeryWeak is set.
var trivialPasswords = map[string]struct{}{
	"password":    {},
	"password123": {},
	"123456":      {},
	"123456789":   {},
	"qwerty":      {},
	"qwerty123":   {},
	"11111111":    {},
	"warden":      {},
	"letmein":     {},
}

// Validate applies the length policy, counted in runes, and the optional
// weak-password check.
func (c Config) Validate(raw string) error {
	n := utf8.RuneCountInString(raw)
	switch {
	case n < c.Policy.MinLength:
		return fmt.Errorf("%w (%d < %d)", ErrPasswordTooShort, n, c.Policy.MinLength)
	case n > c.Policy.MaxLength:
		return fmt.Errorf("%w (%d > %d)", ErrPasswordTooLong, n, c.Policy.MaxLength)
	case c.Policy.RejectVeryWeak && isTrivial(raw):
		return ErrWeakPassword
	}
	return nil
}

// isTrivial catches blank input, a single repeated rune, short all-digit
// PINs and a handful of well-known passwords. It is no strength estimator.
func isTrivial(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return true
	}
	if _, ok := trivialPasswords[strings.ToLower(s)]; ok {
		return true
	}

	first, _ := utf8.DecodeRuneInString(s)
	repeated, digits := true, true
	for _, r := range s {
		repeated = repeated && r == first
		digits = digits && unicode.IsDigit(r)
	}
	return repeated || (digits && utf8.RuneCountInString(s) < 12)
}
