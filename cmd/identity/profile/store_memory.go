package profile

import (
	"context"
	"sync"
)

// MemoryStore keeps profiles in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[string]Profile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]Profile)}
}

func (s *MemoryStore) Put(ctx context.Context, p Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.UserInfo = p.UserInfo.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.AuthID] = p
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, authID string) (Profile, bool, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[authID]
	if !ok {
		return Profile{}, false, nil
	}
	p.UserInfo = p.UserInfo.Clone()
	return p, true, nil
}

func (s *MemoryStore) Delete(ctx context.Context, authID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, authID)
	return nil
}
