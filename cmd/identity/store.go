package identity

import (
	"context"
	"slices"
	"time"

	"warden/cmd/internal/value"
)

// Claim scopes. Unique attributes are claimed under AttrScope(name).
const (
	ScopeAuthID = "User.auth_id"
	ScopeEmail  = "User.email"
)

// AttrScope returns the claim scope for a unique attribute.
func AttrScope(name string) string { return "User." + name }

// User is warden's durable identity.
type User struct {
	ID string

	// AuthIDs is ordered; the first entry is the primary auth id.
	AuthIDs []string
	Emails  []string

	// Attrs holds free-form attributes. UniqueAttrs names the ones that are
	// claimed globally.
	Attrs       value.Map
	UniqueAttrs []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PrimaryAuthID returns the first auth id, or "".
func (u User) PrimaryAuthID() string {
	if len(u.AuthIDs) == 0 {
		return ""
	}
	return u.AuthIDs[0]
}

func (u User) HasAuthID(authID string) bool { return slices.Contains(u.AuthIDs, authID) }

// HasEmail compares normalized forms.
func (u User) HasEmail(email string) bool {
	return slices.Contains(u.Emails, NormalizeEmail(email))
}

// Attr returns the attribute stored under name.
func (u User) Attr(name string) (value.Value, bool) { return u.Attrs.Get(name) }

// Clone returns a deep copy of u.
func (u User) Clone() User {
	u.AuthIDs = slices.Clone(u.AuthIDs)
	u.Emails = slices.Clone(u.Emails)
	u.UniqueAttrs = slices.Clone(u.UniqueAttrs)
	u.Attrs = u.Attrs.Clone()
	return u
}

// Store is the user persistence boundary.
//
// AppendAuthID and AppendEmail append atomically and are idempotent: a value
// already present leaves the record unchanged. They return the resulting
// user, or ok=false when the user does not exist.
type Store interface {
	Insert(ctx context.Context, u User) error
	Get(ctx context.Context, id string) (User, bool, error)
	AppendAuthID(ctx context.Context, id, authID string, now time.Time) (u User, ok bool, err error)
	AppendEmail(ctx context.Context, id, email string, now time.Time) (u User, ok bool, err error)
	Delete(ctx context.Context, id string) error
}
