package presence

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps the user list in process memory using go-cache.
type MemoryStore struct {
	cache *cache.Cache
	key   string
	ttl   time.Duration
}

// NewMemoryStore creates an in-memory Store.
//
// Parameters:
//   - ttl: Lifetime of a published list (use cache.NoExpiration to keep it)
//   - cleanupInterval: Interval at which expired entries are purged
//
// Returns:
//   - A new MemoryStore
func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: cache.New(ttl, cleanupInterval),
		key:   DefaultKey,
		ttl:   ttl,
	}
}

// Publish implements Store.
func (s *MemoryStore) Publish(ctx context.Context, users []string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	s.cache.Set(s.key, Snapshot{
		Users:     append([]string(nil), users...),
		UpdatedAt: time.Now(),
	}, s.ttl)
	return nil
}

// Online implements Store.
func (s *MemoryStore) Online(ctx context.Context) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	val, found := s.cache.Get(s.key)
	if !found {
		return nil, nil
	}

	snapshot, ok := val.(Snapshot)
	if !ok {
		return nil, nil
	}

	return append([]string(nil), snapshot.Users...), nil
}

// Clear implements Store.
func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	s.cache.Delete(s.key)
	return nil
}
