package unique

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces claim keys in a shared Redis.
const DefaultRedisPrefix = "warden:claim:"

// RedisStore keeps claims as plain Redis strings; SETNX is the atomic claim.
// Claims carry no TTL: like the SQL backends they live until released.
// Durability follows the server's persistence settings (AOF recommended).
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKeyPrefix overrides DefaultRedisPrefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(s *RedisStore) { s.prefix = prefix }
}

// NewRedisStore wraps an existing client. The caller owns the client.
func NewRedisStore(rdb redis.Cmdable, opts ...RedisOption) (*RedisStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("unique: nil redis client")
	}
	s := &RedisStore{rdb: rdb, prefix: DefaultRedisPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *RedisStore) Insert(ctx context.Context, key, owner string, _ time.Time) (bool, error) {
	return s.rdb.SetNX(ctx, s.prefix+key, owner, 0).Result()
}

func (s *RedisStore) Owner(ctx context.Context, key string) (string, bool, error) {
	owner, err := s.rdb.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return owner, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.prefix+key).Err()
}
