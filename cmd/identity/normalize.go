package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
// Note: for now we only trim + lower-case. Additional rules (unicode
// confusables, provider dot-folding) can be added later behind a versioned
// policy, since normalized values are what gets claimed.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
