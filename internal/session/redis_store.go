// Package session provides the single-slot session storage: each user has
// exactly one valid access token at a time. Logging in overwrites the slot,
// which invalidates any token issued earlier even if its JWT has not
// expired yet.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoSession is returned when no slot exists or the presented token does
// not match the slot's current token hash.
var ErrNoSession = errors.New("no active session")

// RedisStore implements the session slot on Redis.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis-backed session store
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "session:"}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "session:"}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

// Set fills the user's slot with the given token hash, replacing whatever
// token was active before. The slot expires with the token.
func (s *RedisStore) Set(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.client.Set(ctx, s.key(userID), tokenHash, ttl).Err(); err != nil {
		return fmt.Errorf("set session slot: %w", err)
	}
	return nil
}

// Check verifies that tokenHash is the user's currently active token.
func (s *RedisStore) Check(ctx context.Context, userID, tokenHash string) error {
	current, err := s.client.Get(ctx, s.key(userID)).Result()
	if err == redis.Nil {
		return ErrNoSession
	}
	if err != nil {
		return fmt.Errorf("lookup session slot: %w", err)
	}
	if current != tokenHash {
		return ErrNoSession
	}
	return nil
}

// Clear empties the user's slot.
func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("clear session slot: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
