package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "authcore:otp:"

// RedisStore is the primary Store implementation. Expiry is delegated
// to Redis TTLs and single use to GETDEL.
type RedisStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisStore(client redis.Cmdable, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(identifier string) string {
	return s.prefix + identifier
}

func (s *RedisStore) Put(ctx context.Context, identifier, codeHash string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(identifier), codeHash, ttl).Err(); err != nil {
		return fmt.Errorf("store otp code: %w", err)
	}
	return nil
}

func (s *RedisStore) Consume(ctx context.Context, identifier string) (string, bool, error) {
	val, err := s.client.GetDel(ctx, s.key(identifier)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("consume otp code: %w", err)
	}
	return val, true, nil
}
