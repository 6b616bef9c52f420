package authtoken

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
)

// MemoryStore keeps token records in a bigcache instance.
//
// Primary entries are keyed subject\x00purpose\x00hash and hold the
// creation time. A secondary entry \x01purpose\x00hash lists every subject
// holding a token with that value, oldest first, for lookups without a
// subject. The index is read-modify-written under mu.
//
// bigcache evicts entries older than its life window on its own; the window
// is set to the longest configured max age so the service's expiry check
// stays authoritative.
type MemoryStore struct {
	cache *bigcache.BigCache
	mu    sync.Mutex
}

const (
	memSep         = "\x00"
	memIndexPrefix = "\x01"
)

// NewMemoryStore starts a cache whose entries live at most lifeWindow.
// Close stops its cleanup goroutine.
func NewMemoryStore(ctx context.Context, lifeWindow time.Duration) (*MemoryStore, error) {
	if lifeWindow <= 0 {
		lifeWindow = DefaultMaxAge
	}
	cfg := bigcache.DefaultConfig(lifeWindow)
	cfg.Shards = 64
	cfg.MaxEntriesInWindow = 10_000
	cfg.MaxEntrySize = 256
	cfg.CleanWindow = time.Minute
	cfg.Verbose = false

	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("authtoken: bigcache: %w", err)
	}
	return &MemoryStore{cache: cache}, nil
}

// Close releases the cache.
func (s *MemoryStore) Close() error {
	if s == nil || s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

func memKey(k Key) string {
	return k.Subject + memSep + k.Purpose + memSep + k.Hash
}

func memIndexKey(purpose, hash string) string {
	return memIndexPrefix + purpose + memSep + hash
}

func parseMemKey(raw string) (Key, bool) {
	if strings.HasPrefix(raw, memIndexPrefix) {
		return Key{}, false
	}
	parts := strings.SplitN(raw, memSep, 3)
	if len(parts) != 3 {
		return Key{}, false
	}
	return Key{Subject: parts[0], Purpose: parts[1], Hash: parts[2]}, true
}

func encodeCreatedAt(t time.Time) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(t.UnixNano())) // #nosec G115 -- round-tripped by decodeCreatedAt.
	return b
}

func decodeCreatedAt(b []byte) (time.Time, bool) {
	if len(b) != 8 {
		return time.Time{}, false
	}
	return time.Unix(0, int64(binary.BigEndian.Uint64(b))).UTC(), true // #nosec G115
}

func (s *MemoryStore) Put(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.Contains(r.Subject, memSep) || strings.Contains(r.Purpose, memSep) {
		return fmt.Errorf("authtoken: subject and purpose must not contain NUL")
	}
	if err := s.cache.Set(memKey(r.Key()), encodeCreatedAt(r.CreatedAt)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := memIndexKey(r.Purpose, r.Hash)
	subjects, err := s.indexSubjects(idx)
	if err != nil {
		return err
	}
	subjects = slices.DeleteFunc(subjects, func(sub string) bool { return sub == r.Subject })
	return s.setIndex(idx, append(subjects, r.Subject))
}

func (s *MemoryStore) Get(ctx context.Context, k Key) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	b, err := s.cache.Get(memKey(k))
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	createdAt, ok := decodeCreatedAt(b)
	if !ok {
		return Record{}, false, fmt.Errorf("authtoken: corrupt entry")
	}
	return Record{Subject: k.Subject, Purpose: k.Purpose, Hash: k.Hash, CreatedAt: createdAt}, true, nil
}

// FindByPurpose returns the newest live token with the given value.
func (s *MemoryStore) FindByPurpose(ctx context.Context, purpose, hash string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}

	s.mu.Lock()
	subjects, err := s.indexSubjects(memIndexKey(purpose, hash))
	s.mu.Unlock()
	if err != nil {
		return Record{}, false, err
	}

	var (
		best  Record
		found bool
	)
	// The index may outlive primary entries evicted by bigcache.
	for _, sub := range subjects {
		r, ok, err := s.Get(ctx, Key{Subject: sub, Purpose: purpose, Hash: hash})
		if err != nil {
			return Record{}, false, err
		}
		if ok && (!found || !r.CreatedAt.Before(best.CreatedAt)) {
			best, found = r, true
		}
	}
	return best, found, nil
}

func (s *MemoryStore) Delete(ctx context.Context, k Key) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.cache.Delete(memKey(k)); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := memIndexKey(k.Purpose, k.Hash)
	subjects, err := s.indexSubjects(idx)
	if err != nil {
		return err
	}
	rest := slices.DeleteFunc(subjects, func(sub string) bool { return sub == k.Subject })
	if len(rest) == len(subjects) {
		return nil
	}
	return s.setIndex(idx, rest)
}

// indexSubjects reads the subject list of a value index. mu must be held
// by callers that write it back.
func (s *MemoryStore) indexSubjects(idx string) ([]string, error) {
	b, err := s.cache.Get(idx)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	return strings.Split(string(b), memSep), nil
}

func (s *MemoryStore) setIndex(idx string, subjects []string) error {
	if len(subjects) == 0 {
		if err := s.cache.Delete(idx); err != nil && !errors.Is(err, bigcache.ErrEntryNotFound) {
			return err
		}
		return nil
	}
	return s.cache.Set(idx, []byte(strings.Join(subjects, memSep)))
}

func (s *MemoryStore) DeleteExpired(ctx context.Context, exp Expiry, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var expired []Key
	it := s.cache.Iterator()
	for it.SetNext() {
		entry, err := it.Value()
		if err != nil {
			continue
		}
		k, ok := parseMemKey(entry.Key())
		if !ok {
			continue
		}
		createdAt, ok := decodeCreatedAt(entry.Value())
		if !ok || exp.Expired(k.Purpose, createdAt, now) {
			expired = append(expired, k)
		}
	}

	var n int64
	for _, k := range expired {
		if err := s.Delete(ctx, k); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
