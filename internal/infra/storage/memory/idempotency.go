package memory

import (
	"context"
	"sync"
	"time"

	"rentspot/internal/app/middleware"
)

// IdempotencyStore keeps command results in memory until TTL elapses.
type IdempotencyStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]idempotencyEntry
}

type idempotencyEntry struct {
	rec     middleware.IdempotencyRecord
	expires time.Time
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{ttl: ttl, now: time.Now, items: make(map[string]idempotencyEntry)}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.live(key)
	return entry.rec, ok, nil
}

func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.live(key); ok {
		return false, nil
	}
	now := s.now()
	s.items[key] = idempotencyEntry{
		rec:     middleware.IdempotencyRecord{Key: key, Pending: true, OccurredAt: now.UTC()},
		expires: now.Add(s.ttl),
	}
	return true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.Pending = false
	s.items[rec.Key] = idempotencyEntry{rec: rec, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *IdempotencyStore) live(key string) (idempotencyEntry, bool) {
	entry, ok := s.items[key]
	if !ok {
		return idempotencyEntry{}, false
	}
	if !s.now().Before(entry.expires) {
		delete(s.items, key)
		return idempotencyEntry{}, false
	}
	return entry, true
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
