package authtoken

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"warden/cmd/internal/metrics"
	"warden/cmd/security/token"
)

// Service issues, looks up and revokes tokens.
type Service struct {
	store   Store
	hasher  token.Hasher
	expiry  Expiry
	nbytes  int
	log     *slog.Logger
	metrics metrics.Recorder
}

// Option configures a Service.
type Option func(*Service)

// WithHasher sets the hasher used for stored token values. The default is
// unkeyed SHA-256.
func WithHasher(h token.Hasher) Option {
	return func(s *Service) { s.hasher = h }
}

// WithMaxAge sets the service-wide age limit (default DefaultMaxAge).
func WithMaxAge(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.expiry.Default = d
		}
	}
}

// WithPurposeMaxAge overrides the age limit for one purpose.
func WithPurposeMaxAge(purpose string, d time.Duration) Option {
	return func(s *Service) {
		if purpose == "" || d <= 0 {
			return
		}
		if s.expiry.PerPurpose == nil {
			s.expiry.PerPurpose = make(map[string]time.Duration)
		}
		s.expiry.PerPurpose[purpose] = d
	}
}

// WithTokenBytes sets the entropy of generated values.
func WithTokenBytes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.nbytes = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

func WithMetrics(m metrics.Recorder) Option {
	return func(s *Service) { s.metrics = metrics.OrNop(m) }
}

// NewService returns a Service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		hasher:  token.NewHasher(nil),
		expiry:  Expiry{Default: DefaultMaxAge},
		nbytes:  token.DefaultBytes,
		log:     slog.Default(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// MaxAge returns the age limit applied to purpose.
func (s *Service) MaxAge(purpose string) time.Duration { return s.expiry.MaxAge(purpose) }

// KeyOf returns the storage key for a token value.
func (s *Service) KeyOf(subject, purpose, value string) Key {
	return Key{Subject: subject, Purpose: purpose, Hash: s.hasher.HashHex(value)}
}

// Create issues a token for (subject, purpose). An empty value is replaced
// by a fresh random one.
func (s *Service) Create(ctx context.Context, subject, purpose, value string, now time.Time) (Token, error) {
	const op = "authtoken.Create"

	if s == nil || s.store == nil {
		return Token{}, invalid(op, "nil service")
	}
	if err := ctx.Err(); err != nil {
		return Token{}, err
	}
	if strings.TrimSpace(subject) == "" {
		return Token{}, invalid(op, "missing subject")
	}
	if strings.TrimSpace(purpose) == "" {
		return Token{}, invalid(op, "missing purpose")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	if value == "" {
		v, err := token.NewOpaque(s.nbytes)
		if err != nil {
			return Token{}, wrap(op, err)
		}
		value = v
	}

	rec := Record{
		Subject:   subject,
		Purpose:   purpose,
		Hash:      s.hasher.HashHex(value),
		CreatedAt: now,
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return Token{}, wrap(op, err)
	}

	s.metrics.TokenIssued(purpose)
	return Token{Subject: subject, Purpose: purpose, Value: value, CreatedAt: now}, nil
}

// Get looks up a live token. Expired and unknown tokens are reported as
// absent. Purpose and Value are required.
func (s *Service) Get(ctx context.Context, q Query, now time.Time) (Token, bool, error) {
	const op = "authtoken.Get"

	if s == nil || s.store == nil {
		return Token{}, false, invalid(op, "nil service")
	}
	if err := ctx.Err(); err != nil {
		return Token{}, false, err
	}
	if q.Purpose == "" {
		return Token{}, false, invalid(op, "missing purpose")
	}
	if q.Value == "" {
		return Token{}, false, invalid(op, "missing value")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	hash := s.hasher.HashHex(q.Value)

	var (
		rec Record
		ok  bool
		err error
	)
	if q.Subject != "" {
		rec, ok, err = s.store.Get(ctx, Key{Subject: q.Subject, Purpose: q.Purpose, Hash: hash})
	} else {
		rec, ok, err = s.store.FindByPurpose(ctx, q.Purpose, hash)
	}
	if err != nil {
		return Token{}, false, wrap(op, err)
	}

	live := ok && !s.expiry.Expired(rec.Purpose, rec.CreatedAt, now)
	s.metrics.TokenValidated(q.Purpose, live)
	if !live {
		return Token{}, false, nil
	}
	return Token{Subject: rec.Subject, Purpose: rec.Purpose, Value: q.Value, CreatedAt: rec.CreatedAt}, true, nil
}

// Delete revokes one token. Deleting an unknown token is not an error.
func (s *Service) Delete(ctx context.Context, subject, purpose, value string) error {
	return s.DeleteKey(ctx, s.KeyOf(subject, purpose, value))
}

// DeleteKey revokes the token stored under k.
func (s *Service) DeleteKey(ctx context.Context, k Key) error {
	const op = "authtoken.Delete"

	if s == nil || s.store == nil {
		return invalid(op, "nil service")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if k.Subject == "" || k.Purpose == "" || k.Hash == "" {
		return invalid(op, "incomplete key")
	}
	if err := s.store.Delete(ctx, k); err != nil {
		return wrap(op, err)
	}
	return nil
}

// Purge deletes every expired token and returns how many were removed.
func (s *Service) Purge(ctx context.Context, now time.Time) (int64, error) {
	const op = "authtoken.Purge"

	if s == nil || s.store == nil {
		return 0, invalid(op, "nil service")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	n, err := s.store.DeleteExpired(ctx, s.expiry, now)
	if err != nil {
		return 0, wrap(op, err)
	}
	s.metrics.TokensPurged(n)
	s.log.Info("authtoken.purge", "deleted", n)
	return n, nil
}
