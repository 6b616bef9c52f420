package identity

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps users in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]User)}
}

func (s *MemoryStore) Insert(ctx context.Context, u User) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("%w: user id", ErrConflict)
	}
	s.users[u.ID] = u.Clone()
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (User, bool, error) {
	if err := ctx.Err(); err != nil {
		return User{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, false, nil
	}
	return u.Clone(), true, nil
}

func (s *MemoryStore) AppendAuthID(ctx context.Context, id, authID string, now time.Time) (User, bool, error) {
	return s.appendTo(ctx, id, now, func(u *User) *[]string { return &u.AuthIDs }, authID)
}

func (s *MemoryStore) AppendEmail(ctx context.Context, id, email string, now time.Time) (User, bool, error) {
	return s.appendTo(ctx, id, now, func(u *User) *[]string { return &u.Emails }, email)
}

func (s *MemoryStore) appendTo(ctx context.Context, id string, now time.Time, field func(*User) *[]string, v string) (User, bool, error) {
	if err := ctx.Err(); err != nil {
		return User{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, false, nil
	}
	list := field(&u)
	if !slices.Contains(*list, v) {
		*list = append(slices.Clone(*list), v)
		u.UpdatedAt = now
		s.users[id] = u
	}
	return u.Clone(), true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

// Len returns the number of stored users.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}
