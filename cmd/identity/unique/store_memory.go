package unique

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps claims in process memory. It is the dev and test
// backend; claims do not survive a restart.
type MemoryStore struct {
	mu     sync.Mutex
	claims map[string]memClaim
}

type memClaim struct {
	owner     string
	createdAt time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{claims: make(map[string]memClaim)}
}

func (s *MemoryStore) Insert(ctx context.Context, key, owner string, now time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.claims[key]; exists {
		return false, nil
	}
	s.claims[key] = memClaim{owner: owner, createdAt: now}
	return true, nil
}

func (s *MemoryStore) Owner(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.claims[key]
	return c.owner, ok, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.claims, key)
	return nil
}

// Len returns the number of live claims.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}
