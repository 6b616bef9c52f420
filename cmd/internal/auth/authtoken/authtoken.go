package authtoken

import (
	"context"
	"time"
)

// DefaultPurpose is the purpose used for session continuation tokens.
const DefaultPurpose = "session"

// Token is an issued token. Value is only populated for the caller that
// created or presented it; it is never persisted.
type Token struct {
	Subject   string
	Purpose   string
	Value     string
	CreatedAt time.Time
}

// Key is the exact storage key of a token.
type Key struct {
	Subject string
	Purpose string
	Hash    string
}

// String renders k as subject.purpose.hash.
func (k Key) String() string {
	return k.Subject + "." + k.Purpose + "." + k.Hash
}

// Record is the persisted form of a token.
type Record struct {
	Subject   string
	Purpose   string
	Hash      string
	CreatedAt time.Time
}

func (r Record) Key() Key {
	return Key{Subject: r.Subject, Purpose: r.Purpose, Hash: r.Hash}
}

// Query selects a token by value. Purpose and Value are required; an empty
// Subject matches any subject.
type Query struct {
	Subject string
	Purpose string
	Value   string
}

// Expiry decides token age limits.
type Expiry struct {
	Default    time.Duration
	PerPurpose map[string]time.Duration
}

// MaxAge returns the age limit for purpose.
func (e Expiry) MaxAge(purpose string) time.Duration {
	if d, ok := e.PerPurpose[purpose]; ok && d > 0 {
		return d
	}
	return e.Default
}

// Expired reports whether a token of purpose created at createdAt is past its
// age limit at now. A token exactly MaxAge old is expired.
func (e Expiry) Expired(purpose string, createdAt, now time.Time) bool {
	return now.Sub(createdAt) >= e.MaxAge(purpose)
}

// Store persists token records.
//
// Put overwrites a record with the same key. FindByPurpose returns the most
// recently created record for (purpose, hash) across subjects.
// DeleteExpired removes every record that exp reports as expired at now.
type Store interface {
	Put(ctx context.Context, r Record) error
	Get(ctx context.Context, k Key) (Record, bool, error)
	FindByPurpose(ctx context.Context, purpose, hash string) (Record, bool, error)
	Delete(ctx context.Context, k Key) error
	DeleteExpired(ctx context.Context, exp Expiry, now time.Time) (int64, error)
}
