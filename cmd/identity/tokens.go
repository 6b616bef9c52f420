package identity

import (
	"context"
	"time"

	"warden/cmd/internal/auth/authtoken"
)

func purposeOrDefault(purpose string) string {
	if purpose == "" {
		return authtoken.DefaultPurpose
	}
	return purpose
}

// CreateToken issues a token for subject. An empty purpose means "session".
func (s *Service) CreateToken(ctx context.Context, subject, purpose string, now time.Time) (string, error) {
	tok, err := s.tokens.Create(ctx, subject, purposeOrDefault(purpose), "", now)
	if err != nil {
		return "", err
	}
	return tok.Value, nil
}

// ValidateToken reports whether value is a live token of subject for purpose.
func (s *Service) ValidateToken(ctx context.Context, subject, value, purpose string, now time.Time) (bool, error) {
	if subject == "" || value == "" {
		return false, nil
	}
	_, ok, err := s.tokens.Get(ctx, authtoken.Query{Subject: subject, Purpose: purposeOrDefault(purpose), Value: value}, now)
	return ok, err
}

// DeleteToken revokes one token of subject.
func (s *Service) DeleteToken(ctx context.Context, subject, value, purpose string) error {
	return s.tokens.Delete(ctx, subject, purposeOrDefault(purpose), value)
}

// GetByAuthToken resolves a session token to its user. subject is the user
// id. It returns the token's creation time; any invalid input, token or
// user reads as not found.
func (s *Service) GetByAuthToken(ctx context.Context, subject, value string, now time.Time) (User, time.Time, bool, error) {
	const op = "identity.GetByAuthToken"

	if subject == "" || value == "" {
		return User{}, time.Time{}, false, nil
	}

	tok, ok, err := s.tokens.Get(ctx, authtoken.Query{Subject: subject, Purpose: authtoken.DefaultPurpose, Value: value}, now)
	if err != nil {
		return User{}, time.Time{}, false, wrap(op, err)
	}
	if !ok {
		return User{}, time.Time{}, false, nil
	}

	u, ok, err := s.users.Get(ctx, subject)
	if err != nil {
		return User{}, time.Time{}, false, wrap(op, err)
	}
	if !ok {
		return User{}, time.Time{}, false, nil
	}
	return u, tok.CreatedAt, true, nil
}
