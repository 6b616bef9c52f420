package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"warden/cmd/internal/metrics"
	"warden/cmd/internal/value"

	"github.com/google/uuid"
)

// DefaultInactiveDays is the sweep age used when RemoveInactive gets a
// non-positive day count.
const DefaultInactiveDays = 30

// Service implements the session operations for warden.
type Service struct {
	store   Store
	codec   *Codec
	log     *slog.Logger
	metrics metrics.Recorder
	clock   func() time.Time
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

func WithMetrics(m metrics.Recorder) Option {
	return func(s *Service) { s.metrics = metrics.OrNop(m) }
}

// WithClock sets the time source for Serialize and Deserialize.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// NewService constructs a Service over store. codec may be nil when blobs
// are never serialized.
func NewService(store Store, codec *Codec, opts ...Option) *Service {
	s := &Service{
		store:   store,
		codec:   codec,
		log:     slog.Default(),
		metrics: metrics.Nop{},
		clock:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Service) now(now time.Time) time.Time {
	if now.IsZero() {
		return s.clock()
	}
	return now.UTC()
}

// Create stores a new session with a random id. An empty userID creates an
// anonymous session.
func (s *Service) Create(ctx context.Context, userID string, data value.Map, now time.Time) (Session, error) {
	const op = "session.Create"

	if s == nil || s.store == nil {
		return Session{}, fmt.Errorf("%s: nil service", op)
	}
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}

	now = s.now(now)
	if data == nil {
		data = value.Map{}
	}

	sess := Session{
		ID:        uuid.NewString(),
		UserID:    strings.TrimSpace(userID),
		Data:      data.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	h, err := sess.ComputeHash()
	if err != nil {
		return Session{}, invalid(op, "data is not encodable")
	}
	sess.Hash = h

	if err := s.store.Insert(ctx, sess); err != nil {
		return Session{}, wrap(op, err)
	}

	s.metrics.SessionCreated(sess.Anonymous())
	return sess, nil
}

// GetBySID loads a session by id.
func (s *Service) GetBySID(ctx context.Context, sid string) (Session, bool, error) {
	const op = "session.GetBySID"

	if s == nil || s.store == nil {
		return Session{}, false, fmt.Errorf("%s: nil service", op)
	}
	if err := ctx.Err(); err != nil {
		return Session{}, false, err
	}
	if sid == "" {
		return Session{}, false, nil
	}

	sess, ok, err := s.store.Get(ctx, sid)
	if err != nil {
		return Session{}, false, wrap(op, err)
	}
	return sess, ok, nil
}

// GetByUserID returns the most recently updated session of a user.
func (s *Service) GetByUserID(ctx context.Context, userID string) (Session, bool, error) {
	const op = "session.GetByUserID"

	if s == nil || s.store == nil {
		return Session{}, false, fmt.Errorf("%s: nil service", op)
	}
	if err := ctx.Err(); err != nil {
		return Session{}, false, err
	}
	if userID == "" {
		return Session{}, false, nil
	}

	sess, ok, err := s.store.GetLatestByUser(ctx, userID)
	if err != nil {
		return Session{}, false, wrap(op, err)
	}
	return sess, ok, nil
}

// Save persists sess.Data under a recomputed hash and stamps UpdatedAt.
// It reports false without writing when the content is unchanged.
// A session missing from the store yields ErrNotFound.
func (s *Service) Save(ctx context.Context, sess *Session, now time.Time) (bool, error) {
	const op = "session.Save"

	if s == nil || s.store == nil {
		return false, fmt.Errorf("%s: nil service", op)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if sess == nil || sess.ID == "" {
		return false, invalid(op, "missing session")
	}

	if sess.Data == nil {
		sess.Data = value.Map{}
	}
	h, err := sess.ComputeHash()
	if err != nil {
		return false, invalid(op, "data is not encodable")
	}
	if h == sess.Hash {
		return false, nil
	}

	next := *sess
	next.Hash = h
	next.UpdatedAt = s.now(now)

	ok, err := s.store.Update(ctx, next)
	if err != nil {
		return false, wrap(op, err)
	}
	if !ok {
		return false, OpError{Op: op, Kind: ErrNotFound}
	}

	*sess = next
	return true, nil
}

// Serialize returns the client-side blob for sess.
func (s *Service) Serialize(sess Session) (string, error) {
	const op = "session.Serialize"

	if s == nil || s.codec == nil {
		return "", fmt.Errorf("%s: %w: no codec", op, ErrConfig)
	}
	if sess.ID == "" {
		return "", invalid(op, "missing session id")
	}
	blob, err := s.codec.Encode(sess.Ref(), s.clock())
	if err != nil {
		return "", wrap(op, err)
	}
	return blob, nil
}

// Deserialize verifies blob and returns the reference it carries.
func (s *Service) Deserialize(blob string) (Ref, error) {
	const op = "session.Deserialize"

	if s == nil || s.codec == nil {
		return Ref{}, fmt.Errorf("%s: %w: no codec", op, ErrConfig)
	}
	blob = strings.TrimSpace(blob)
	if blob == "" || len(blob) > 4096 {
		return Ref{}, OpError{Op: op, Kind: ErrInvalidToken}
	}
	ref, err := s.codec.Decode(blob, s.clock())
	if err != nil {
		return Ref{}, OpError{Op: op, Kind: ErrInvalidToken}
	}
	return ref, nil
}

// GetByValue loads the session named by blob. An invalid blob, a missing
// session or a user id mismatch are all reported as absent.
func (s *Service) GetByValue(ctx context.Context, blob string, now time.Time) (Session, bool, error) {
	const op = "session.GetByValue"

	if s == nil || s.store == nil {
		return Session{}, false, fmt.Errorf("%s: nil service", op)
	}
	if s.codec == nil {
		return Session{}, false, fmt.Errorf("%s: %w: no codec", op, ErrConfig)
	}
	if err := ctx.Err(); err != nil {
		return Session{}, false, err
	}

	blob = strings.TrimSpace(blob)
	if blob == "" || len(blob) > 4096 {
		return Session{}, false, nil
	}
	ref, err := s.codec.Decode(blob, s.now(now))
	if err != nil {
		s.log.Debug("session.blob.invalid")
		return Session{}, false, nil
	}

	sess, ok, err := s.store.Get(ctx, ref.SessionID)
	if err != nil {
		return Session{}, false, wrap(op, err)
	}
	if !ok || sess.UserID != ref.UserID {
		return Session{}, false, nil
	}
	return sess, true, nil
}

// UpgradeToUserSession re-keys the session oldSID under userID, keeping its
// data. The old record is removed in the same store operation, so the number
// of sessions does not change. A missing old session yields a fresh, empty
// user session. When several anonymous sessions upgrade to the same user the
// last one wins.
func (s *Service) UpgradeToUserSession(ctx context.Context, oldSID, userID string, now time.Time) (Session, error) {
	const op = "session.UpgradeToUserSession"

	if s == nil || s.store == nil {
		return Session{}, fmt.Errorf("%s: nil service", op)
	}
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Session{}, invalid(op, "missing user id")
	}

	now = s.now(now)

	old, found, err := s.store.Get(ctx, oldSID)
	if err != nil {
		return Session{}, wrap(op, err)
	}
	if found && old.UserID != "" && old.UserID != userID {
		return Session{}, invalid(op, "session belongs to another user")
	}
	if found && old.ID == userID && old.UserID == userID {
		return old, nil
	}

	next := Session{
		ID:        userID,
		UserID:    userID,
		Data:      value.Map{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if found {
		next.Data = old.Data.Clone()
		if next.Data == nil {
			next.Data = value.Map{}
		}
		next.CreatedAt = old.CreatedAt
	}
	h, err := next.ComputeHash()
	if err != nil {
		return Session{}, invalid(op, "data is not encodable")
	}
	next.Hash = h

	if err := s.store.Replace(ctx, oldSID, next); err != nil {
		return Session{}, wrap(op, err)
	}

	s.metrics.SessionUpgraded()
	s.log.Info("session.upgrade", "had_session", found)
	return next, nil
}

// RemoveInactive deletes sessions not updated within daysOld days of now.
// A non-positive daysOld means DefaultInactiveDays.
func (s *Service) RemoveInactive(ctx context.Context, daysOld int, now time.Time) (int64, error) {
	const op = "session.RemoveInactive"

	if s == nil || s.store == nil {
		return 0, fmt.Errorf("%s: nil service", op)
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if daysOld <= 0 {
		daysOld = DefaultInactiveDays
	}

	cutoff := s.now(now).Add(-time.Duration(daysOld) * 24 * time.Hour)
	n, err := s.store.DeleteInactive(ctx, cutoff)
	if err != nil {
		return 0, wrap(op, err)
	}

	s.metrics.SessionsRemoved(n)
	if n > 0 {
		s.log.Info("session.sweep", "removed", n, "days_old", daysOld)
	}
	return n, nil
}

// Delete removes a session (idempotent).
func (s *Service) Delete(ctx context.Context, sid string) error {
	const op = "session.Delete"

	if s == nil || s.store == nil {
		return fmt.Errorf("%s: nil service", op)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, sid); err != nil {
		return wrap(op, err)
	}
	return nil
}

// IsInvalidToken reports whether err stems from a rejected blob.
func IsInvalidToken(err error) bool { return errors.Is(err, ErrInvalidToken) }
