package session

import (
	"time"
	"unicode/utf8"

	"warden/cmd/internal/value"
)

// Session is a server-side session record.
type Session struct {
	ID     string
	UserID string // empty while anonymous
	Data   value.Map

	// Hash is the content hash as of the last load or save.
	Hash string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Anonymous reports whether s is not bound to a user.
func (s Session) Anonymous() bool { return s.UserID == "" }

// Ref returns the client-side reference to s.
func (s Session) Ref() Ref { return Ref{SessionID: s.ID, UserID: s.UserID} }

// ComputeHash hashes the current id, user id and data of s.
func (s Session) ComputeHash() (string, error) {
	return Hash(s.ID, s.UserID, s.Data)
}

// Intact reports whether the stored hash matches the current contents.
func (s Session) Intact() bool {
	h, err := s.ComputeHash()
	return err == nil && h == s.Hash
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	s.Data = s.Data.Clone()
	return s
}

type hashInput struct {
	Data value.Map `json:"data"`
	SID  string    `json:"sid"`
	UID  string    `json:"uid"`
}

// Hash returns the hex SHA-256 of the canonical JSON of
// {"data": data, "sid": id, "uid": userID}. Map keys are sorted by typed key
// at every depth; a nil map hashes like an empty one. Every string, ids
// included, must be valid UTF-8.
func Hash(id, userID string, data value.Map) (string, error) {
	if !utf8.ValidString(id) || !utf8.ValidString(userID) {
		return "", value.ErrInvalidUTF8
	}
	return value.ContentHash(hashInput{Data: data, SID: id, UID: userID})
}
