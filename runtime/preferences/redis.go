package preferences

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "museum-agent"

// RedisStore keeps preferences in one Redis hash, so a kiosk fleet can share
// settings per profile.
type RedisStore struct {
	client  *redis.Client
	ttl     time.Duration
	prefix  string
	profile string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL expires the preference hash ttl after the last write.
// Zero, the default, keeps it forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix. Default is "museum-agent".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// WithProfile selects the preference profile. Default is "default".
func WithProfile(profile string) RedisOption {
	return func(s *RedisStore) {
		s.profile = profile
	}
}

// NewRedisStore creates a Redis-backed preference store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithProfile("gallery-3"),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client:  client,
		prefix:  defaultRedisPrefix,
		profile: "default",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	v, err := s.client.HGet(ctx, s.hashKey(), key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("redis hget failed: %w", err)
	}
	return v, nil
}

// Set implements Store. The write and the TTL refresh share one pipeline.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	hashKey := s.hashKey()
	pipe := s.client.Pipeline()
	pipe.HSet(ctx, hashKey, key, value)
	if s.ttl > 0 {
		pipe.Expire(ctx, hashKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) hashKey() string {
	return fmt.Sprintf("%s:preferences:%s", s.prefix, s.profile)
}
