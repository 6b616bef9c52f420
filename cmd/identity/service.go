package identity

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"warden/cmd/identity/profile"
	"warden/cmd/identity/unique"
	"warden/cmd/internal/auth/authtoken"
	"warden/cmd/internal/metrics"
	"warden/cmd/internal/value"
)

// Deps are the collaborators of a Service. All are required.
type Deps struct {
	Users    Store
	Claims   *unique.Registry
	Profiles *profile.Service
	Tokens   *authtoken.Service
}

// Service implements the user lifecycle on top of claims, profiles and
// tokens. It is safe for concurrent use.
type Service struct {
	users    Store
	claims   *unique.Registry
	profiles *profile.Service
	tokens   *authtoken.Service

	log     *slog.Logger
	metrics metrics.Recorder
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

// NewService validates deps and returns a Service.
func NewService(deps Deps, opts ...Option) (*Service, error) {
	const op = "identity.NewService"

	switch {
	case deps.Users == nil:
		return nil, invalid(op, "nil user store")
	case deps.Claims == nil:
		return nil, invalid(op, "nil claim registry")
	case deps.Profiles == nil:
		return nil, invalid(op, "nil profile service")
	case deps.Tokens == nil:
		return nil, invalid(op, "nil token service")
	}

	s := &Service{
		users:    deps.Users,
		claims:   deps.Claims,
		profiles: deps.Profiles,
		tokens:   deps.Tokens,
		log:      slog.Default(),
		metrics:  metrics.Nop{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

// CreateUserInput describes a new user.
type CreateUserInput struct {
	AuthID string

	// Password, when set, creates a password profile for AuthID.
	Password string

	Emails []string
	Attrs  value.Map

	// UniqueAttrs names string-valued entries of Attrs that must be unique
	// across users.
	UniqueAttrs []string

	Now time.Time
}

// CreateUser claims the user's auth id, emails and unique attributes, then
// persists the user and, when a password is given, its profile.
//
// A value already claimed by someone else fails the whole call with a
// *DuplicateError listing every offending field; claims won along the way
// are released. Later failures are compensated the same way.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	if s == nil {
		return User{}, invalid(op, "nil service")
	}
	if err := ctx.Err(); err != nil {
		return User{}, err
	}
	if strings.TrimSpace(in.AuthID) == "" {
		return User{}, invalid(op, "missing auth_id")
	}

	attrs := in.Attrs.Clone()
	if attrs == nil {
		attrs = value.Map{}
	}
	uniqueVals, err := uniqueAttrValues(attrs, in.UniqueAttrs)
	if err != nil {
		return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
	}
	emails := normalizeEmails(in.Emails)

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	id, err := NewULID(now)
	if err != nil {
		return User{}, wrap(op, err)
	}

	claims, fields := userClaims(id, in.AuthID, emails, in.UniqueAttrs, uniqueVals)

	won, err := s.claims.CreateMulti(ctx, claims)
	if err != nil {
		s.release(ctx, claims, won)
		return User{}, wrap(op, err)
	}

	if dup := lostFields(fields, won); len(dup) > 0 {
		s.release(ctx, claims, won)
		for _, f := range dup {
			s.metrics.DuplicateRejected(f)
		}
		s.log.Info("identity.create.conflict", "fields", dup)
		return User{}, &DuplicateError{Op: op, Fields: dup}
	}

	u := User{
		ID:          id,
		AuthIDs:     []string{in.AuthID},
		Emails:      emails,
		Attrs:       attrs,
		UniqueAttrs: slices.Clone(in.UniqueAttrs),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.users.Insert(ctx, u); err != nil {
		s.release(ctx, claims, won)
		return User{}, wrap(op, err)
	}

	if in.Password != "" {
		_, err := s.profiles.Create(ctx, profile.CreateInput{AuthID: in.AuthID, Password: in.Password, Now: now})
		if err != nil {
			if derr := s.users.Delete(ctx, id); derr != nil {
				s.log.Error("identity.create.compensate.fail", "user_id", id, "err", derr)
			}
			s.release(ctx, claims, won)
			if errors.Is(err, profile.ErrInvalidInput) {
				return User{}, OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
			}
			return User{}, wrap(op, err)
		}
	}

	s.metrics.UserCreated()
	s.log.Info("identity.create", "user_id", id)
	return u, nil
}

// AddAuthID claims authID for u and appends it. Adding an auth id u already
// has is a no-op. u is refreshed from the store on success.
func (s *Service) AddAuthID(ctx context.Context, u *User, authID string, now time.Time) error {
	const op = "identity.AddAuthID"

	if strings.TrimSpace(authID) == "" {
		return invalid(op, "missing auth_id")
	}
	return s.addClaimed(ctx, op, u, ScopeAuthID, "auth_id", authID, now, s.users.AppendAuthID)
}

// AddEmail claims the normalized email for u and appends it. Adding an email
// u already has is a no-op.
func (s *Service) AddEmail(ctx context.Context, u *User, email string, now time.Time) error {
	const op = "identity.AddEmail"

	email = NormalizeEmail(email)
	if email == "" {
		return invalid(op, "missing email")
	}
	return s.addClaimed(ctx, op, u, ScopeEmail, "email", email, now, s.users.AppendEmail)
}

type appendFunc func(ctx context.Context, id, v string, now time.Time) (User, bool, error)

func (s *Service) addClaimed(ctx context.Context, op string, u *User, scope, field, v string, now time.Time, appendTo appendFunc) error {
	if s == nil {
		return invalid(op, "nil service")
	}
	if u == nil || u.ID == "" {
		return invalid(op, "missing user")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	list := u.AuthIDs
	if scope == ScopeEmail {
		list = u.Emails
	}
	if slices.Contains(list, v) {
		return nil
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	won, err := s.claims.Create(ctx, scope, v, u.ID)
	if err != nil {
		return wrap(op, err)
	}
	if !won {
		// A claim we already hold (e.g. from an earlier interrupted append)
		// is fine; anyone else's is a duplicate.
		owner, ok, err := s.claims.Owner(ctx, scope, v)
		if err != nil {
			return wrap(op, err)
		}
		if !ok || owner != u.ID {
			s.metrics.DuplicateRejected(field)
			return &DuplicateError{Op: op, Fields: []string{field}}
		}
	}

	updated, ok, err := appendTo(ctx, u.ID, v, now)
	if err == nil && !ok {
		err = NotFoundError{Op: op, Resource: "user"}
	}
	if err != nil {
		if won {
			if rerr := s.claims.Release(ctx, scope, v); rerr != nil {
				s.log.Error("identity.add.compensate.fail", "scope", scope, "user_id", u.ID, "err", rerr)
			}
		}
		if IsNotFound(err) {
			return err
		}
		return wrap(op, err)
	}

	*u = updated
	return nil
}

// GetByAuthID resolves the user owning authID.
func (s *Service) GetByAuthID(ctx context.Context, authID string) (User, bool, error) {
	return s.getByClaim(ctx, "identity.GetByAuthID", ScopeAuthID, authID)
}

// GetByEmail resolves the user owning the normalized email.
func (s *Service) GetByEmail(ctx context.Context, email string) (User, bool, error) {
	return s.getByClaim(ctx, "identity.GetByEmail", ScopeEmail, NormalizeEmail(email))
}

func (s *Service) getByClaim(ctx context.Context, op, scope, v string) (User, bool, error) {
	if s == nil {
		return User{}, false, invalid(op, "nil service")
	}
	if err := ctx.Err(); err != nil {
		return User{}, false, err
	}
	if v == "" {
		return User{}, false, nil
	}

	owner, ok, err := s.claims.Owner(ctx, scope, v)
	if err != nil {
		return User{}, false, wrap(op, err)
	}
	if !ok {
		return User{}, false, nil
	}

	u, ok, err := s.users.Get(ctx, owner)
	if err != nil {
		return User{}, false, wrap(op, err)
	}
	if !ok {
		s.log.Warn("identity.claim.dangling", "scope", scope, "owner", owner)
		return User{}, false, nil
	}
	return u, true, nil
}

// FindUser looks up by auth id first, then by email.
func (s *Service) FindUser(ctx context.Context, authID, email string) (User, bool, error) {
	u, ok, err := s.GetByAuthID(ctx, authID)
	if err != nil || ok {
		return u, ok, err
	}
	return s.GetByEmail(ctx, email)
}

// GetByAuthPassword returns the user for authID when password matches its
// profile. Unknown auth ids cost one hash verification, like known ones.
func (s *Service) GetByAuthPassword(ctx context.Context, authID, password string) (User, bool, error) {
	u, found, err := s.GetByAuthID(ctx, authID)
	if err != nil {
		return User{}, false, err
	}

	match, err := s.profiles.CheckPassword(ctx, authID, password)
	if err != nil {
		return User{}, false, wrap("identity.GetByAuthPassword", err)
	}
	if !found || !match {
		return User{}, false, nil
	}

	// The login already succeeded; a failed upgrade only delays it.
	rehashed, err := s.profiles.Rehash(ctx, authID, password, time.Time{})
	if err != nil {
		s.log.Warn("identity.password.rehash.fail", "user_id", u.ID, "err", err)
	} else if rehashed {
		s.log.Info("identity.password.rehash", "user_id", u.ID)
	}
	return u, true, nil
}

// SetPassword replaces the password profile of an existing auth id.
func (s *Service) SetPassword(ctx context.Context, authID, password string, now time.Time) error {
	const op = "identity.SetPassword"

	_, ok, err := s.GetByAuthID(ctx, authID)
	if err != nil {
		return err
	}
	if !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}

	if _, err := s.profiles.SetPassword(ctx, authID, password, now); err != nil {
		if errors.Is(err, profile.ErrInvalidInput) {
			return OpError{Op: op, Kind: ErrInvalidInput, Msg: err.Error()}
		}
		return wrap(op, err)
	}
	return nil
}

// DeleteUser releases every claim the user holds, deletes its profiles and
// then the user record.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	const op = "identity.DeleteUser"

	if s == nil {
		return invalid(op, "nil service")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	u, ok, err := s.users.Get(ctx, id)
	if err != nil {
		return wrap(op, err)
	}
	if !ok {
		return NotFoundError{Op: op, Resource: "user"}
	}

	uniqueVals, _ := uniqueAttrValues(u.Attrs, u.UniqueAttrs)
	claims, _ := userClaims(u.ID, "", u.Emails, u.UniqueAttrs, uniqueVals)
	for _, a := range u.AuthIDs {
		claims = append(claims, unique.Claim{Scope: ScopeAuthID, Value: a, Owner: u.ID})
	}

	var errs []error
	for _, c := range claims {
		// Release is last-writer-wins; never drop a claim someone else owns.
		owner, ok, err := s.claims.Owner(ctx, c.Scope, c.Value)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok || owner != u.ID {
			continue
		}
		if err := s.claims.Release(ctx, c.Scope, c.Value); err != nil {
			errs = append(errs, err)
		}
	}
	for _, a := range u.AuthIDs {
		if err := s.profiles.Delete(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return wrap(op, err)
	}

	if err := s.users.Delete(ctx, u.ID); err != nil {
		return wrap(op, err)
	}
	s.log.Info("identity.delete", "user_id", u.ID)
	return nil
}

// RepairClaim releases a claim whose owner no longer exists. It reports
// whether a claim was released. Claims owned by live users are left alone.
func (s *Service) RepairClaim(ctx context.Context, scope, v string) (bool, error) {
	const op = "identity.RepairClaim"

	if s == nil {
		return false, invalid(op, "nil service")
	}
	if strings.TrimSpace(scope) == "" {
		return false, invalid(op, "missing scope")
	}

	owner, ok, err := s.claims.Owner(ctx, scope, v)
	if err != nil {
		return false, wrap(op, err)
	}
	if !ok {
		return false, nil
	}

	_, exists, err := s.users.Get(ctx, owner)
	if err != nil {
		return false, wrap(op, err)
	}
	if exists {
		return false, nil
	}

	if err := s.claims.Release(ctx, scope, v); err != nil {
		return false, wrap(op, err)
	}
	s.log.Warn("identity.claim.repaired", "scope", scope, "owner", owner)
	return true, nil
}

func (s *Service) release(ctx context.Context, claims []unique.Claim, won []bool) {
	if err := s.claims.ReleaseAll(ctx, claims, won); err != nil {
		s.log.Error("identity.claims.release.fail", "err", err)
	}
}

// userClaims lists the claims for a user along with the logical field name
// each one reports on conflict. An empty authID is skipped.
func userClaims(id, authID string, emails, attrNames, attrVals []string) ([]unique.Claim, []string) {
	claims := make([]unique.Claim, 0, 1+len(emails)+len(attrNames))
	fields := make([]string, 0, cap(claims))

	if authID != "" {
		claims = append(claims, unique.Claim{Scope: ScopeAuthID, Value: authID, Owner: id})
		fields = append(fields, "auth_id")
	}
	for _, e := range emails {
		claims = append(claims, unique.Claim{Scope: ScopeEmail, Value: e, Owner: id})
		fields = append(fields, "email")
	}
	for i, name := range attrNames {
		if i >= len(attrVals) {
			break
		}
		claims = append(claims, unique.Claim{Scope: AttrScope(name), Value: attrVals[i], Owner: id})
		fields = append(fields, name)
	}
	return claims, fields
}

// lostFields returns the distinct fields whose claim was not won, in order.
func lostFields(fields []string, won []bool) []string {
	var out []string
	for i, f := range fields {
		if i < len(won) && won[i] {
			continue
		}
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// uniqueAttrValues returns the string values of the named attributes.
func uniqueAttrValues(attrs value.Map, names []string) ([]string, error) {
	out := make([]string, 0, len(names))
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("empty unique attribute name")
		}
		if name == "auth_id" || name == "email" {
			return nil, errors.New("reserved unique attribute name " + name)
		}
		if slices.Contains(names[:i], name) {
			return nil, errors.New("repeated unique attribute " + name)
		}
		v, ok := attrs.Get(name)
		if !ok {
			return nil, errors.New("unique attribute " + name + " is not set")
		}
		str, ok := v.AsString()
		if !ok {
			return nil, errors.New("unique attribute " + name + " is not a string")
		}
		out = append(out, str)
	}
	return out, nil
}

func normalizeEmails(in []string) []string {
	out := make([]string, 0, len(in))
	for _, e := range in {
		n := NormalizeEmail(e)
		if n == "" || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}
