package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the user list as a JSON Snapshot under one Redis key, so
// that other processes can see who is online.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed Store.
//
// Example:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := NewRedisStore(client, "udpchat:presence", 3*time.Minute)
//
// Parameters:
//   - client: Connected Redis client
//   - key: Key holding the snapshot; empty selects DefaultKey
//   - ttl: Expiry of a published list; 0 keeps it until cleared
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultKey
	}

	return &RedisStore{
		client: client,
		key:    key,
		ttl:    ttl,
	}
}

// Publish implements Store.
func (s *RedisStore) Publish(ctx context.Context, users []string) error {
	data, err := json.Marshal(Snapshot{Users: users, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to publish presence: %w", err)
	}

	return nil
}

// Online implements Store.
func (s *RedisStore) Online(ctx context.Context) ([]string, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get error: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal presence: %w", err)
	}

	return snapshot.Users, nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to clear presence: %w", err)
	}
	return nil
}
