package session

import (
	"context"
	"time"
)

// Store persists sessions.
//
// Insert fails with ErrConflict when the id exists. Update reports
// ok=false for a missing id. Replace upserts s and deletes oldID in one
// atomic step; a missing oldID is not an error.
type Store interface {
	Insert(ctx context.Context, s Session) error
	Get(ctx context.Context, id string) (Session, bool, error)
	GetLatestByUser(ctx context.Context, userID string) (Session, bool, error)
	Update(ctx context.Context, s Session) (bool, error)
	Replace(ctx context.Context, oldID string, s Session) error
	Delete(ctx context.Context, id string) error
	DeleteInactive(ctx context.Context, cutoff time.Time) (int64, error)
}
