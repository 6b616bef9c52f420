// Package profile stores one credential record per auth id.
//
// A Profile holds the password hash for password-style auth ids and an
// optional user-info payload from the identity provider. Profiles are
// replaced wholesale on password change and are never deleted implicitly.
package profile

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"warden/cmd/internal/value"
	"warden/cmd/security/password"
)

// Profile is the credential record for one auth id.
type Profile struct {
	AuthID       string
	PasswordHash string // PHC string; empty for non-password auth ids
	UserInfo     value.Map
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasPassword reports whether p carries a password hash.
func (p Profile) HasPassword() bool { return p.PasswordHash != "" }

// Store persists profiles. Put replaces any existing record for the auth id.
type Store interface {
	Put(ctx context.Context, p Profile) error
	Get(ctx context.Context, authID string) (Profile, bool, error)
	Delete(ctx context.Context, authID string) error
}

// CreateInput describes a new profile. Password may be empty.
type CreateInput struct {
	AuthID   string
	Password string
	UserInfo value.Map
	Now      time.Time
}

// Service hashes credentials and persists profiles.
type Service struct {
	store  Store
	hasher password.Hasher
	log    *slog.Logger

	dummyOnce sync.Once
	dummy     string
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService returns a Service. A nil hasher uses password.DefaultConfig().
func NewService(store Store, hasher password.Hasher, opts ...Option) *Service {
	if hasher == nil {
		hasher = password.DefaultConfig()
	}
	s := &Service{store: store, hasher: hasher, log: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Create stores a new profile, replacing any previous one for the auth id.
func (s *Service) Create(ctx context.Context, in CreateInput) (Profile, error) {
	const op = "profile.Create"

	if s == nil || s.store == nil {
		return Profile{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil service"}
	}
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}

	p, err := s.build(op, in)
	if err != nil {
		return Profile{}, err
	}
	if err := s.store.Put(ctx, p); err != nil {
		return Profile{}, wrap(op, err)
	}
	return p, nil
}

func (s *Service) build(op string, in CreateInput) (Profile, error) {
	if strings.TrimSpace(in.AuthID) == "" {
		return Profile{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing auth_id"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	p := Profile{
		AuthID:    in.AuthID,
		UserInfo:  in.UserInfo.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if p.UserInfo == nil {
		p.UserInfo = value.Map{}
	}
	if in.Password != "" {
		h, err := s.hasher.Hash(in.Password)
		if err != nil {
			return Profile{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
		}
		p.PasswordHash = h
	}
	return p, nil
}

// Get loads the profile for authID. Absence is (Profile{}, false, nil).
func (s *Service) Get(ctx context.Context, authID string) (Profile, bool, error) {
	const op = "profile.Get"

	if s == nil || s.store == nil {
		return Profile{}, false, OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil service"}
	}
	if err := ctx.Err(); err != nil {
		return Profile{}, false, err
	}

	p, ok, err := s.store.Get(ctx, authID)
	if err != nil {
		return Profile{}, false, wrap(op, err)
	}
	return p, ok, nil
}

// SetPassword replaces the profile for authID with one holding a fresh hash
// of raw. User info and the creation time carry over; a missing profile is
// created.
func (s *Service) SetPassword(ctx context.Context, authID, raw string, now time.Time) (Profile, error) {
	const op = "profile.SetPassword"

	if raw == "" {
		return Profile{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: "missing password"}
	}

	cur, ok, err := s.Get(ctx, authID)
	if err != nil {
		return Profile{}, err
	}

	in := CreateInput{AuthID: authID, Password: raw, Now: now}
	if ok {
		in.UserInfo = cur.UserInfo
	}
	p, err := s.build(op, in)
	if err != nil {
		return Profile{}, err
	}
	if ok && !cur.CreatedAt.IsZero() {
		p.CreatedAt = cur.CreatedAt
	}

	if err := s.store.Put(ctx, p); err != nil {
		return Profile{}, wrap(op, err)
	}
	return p, nil
}

// CheckPassword reports whether raw matches the stored hash for authID.
// Missing profiles and profiles without a password still run one hash
// verification so the outcome is not observable through timing.
func (s *Service) CheckPassword(ctx context.Context, authID, raw string) (bool, error) {
	p, ok, err := s.Get(ctx, authID)
	if err != nil {
		return false, err
	}
	if !ok || !p.HasPassword() {
		s.hasher.Verify(raw, s.dummyHash())
		return false, nil
	}
	return s.hasher.Verify(raw, p.PasswordHash), nil
}

// rehasher is implemented by hashers that can spot hashes encoded with
// outdated parameters. password.Config is one.
type rehasher interface {
	NeedsRehash(encoded string) bool
}

// Rehash rewrites the password hash of authID when it was produced with
// parameters other than the hasher's current ones. raw must already have
// been verified. It reports whether the profile was rewritten.
func (s *Service) Rehash(ctx context.Context, authID, raw string, now time.Time) (bool, error) {
	rh, ok := s.hasher.(rehasher)
	if !ok {
		return false, nil
	}

	p, found, err := s.Get(ctx, authID)
	if err != nil {
		return false, err
	}
	if !found || !p.HasPassword() || !rh.NeedsRehash(p.PasswordHash) {
		return false, nil
	}

	if _, err := s.SetPassword(ctx, authID, raw, now); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the profile for authID. Deleting an absent profile is not
// an error.
func (s *Service) Delete(ctx context.Context, authID string) error {
	const op = "profile.Delete"

	if s == nil || s.store == nil {
		return OpError{Op: op, Kind: ErrInvalidInput, Msg: "nil service"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, authID); err != nil {
		return wrap(op, err)
	}
	return nil
}

func (s *Service) dummyHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("warden-dummy-password-for-timing")
		if err != nil {
			s.log.Warn("profile.dummy_hash.fail", "err", err)
			return
		}
		s.dummy = h
	})
	return s.dummy
}
