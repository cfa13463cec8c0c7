package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"

	"rentspot/internal/app/middleware"
)

const keyPrefix = "idemp:"

// IdempotencyStore keeps command results in Redis. SETNX gives the atomic
// reservation; the TTL bounds how long a crashed reservation blocks a key.
type IdempotencyStore struct {
	rdb redis.Cmdable
	ttl time.Duration
	now func() time.Time
}

func NewIdempotencyStore(rdb redis.Cmdable, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{rdb: rdb, ttl: ttl, now: time.Now}
}

type entry struct {
	Payload    []byte    `json:"payload,omitempty"`
	Pending    bool      `json:"pending"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	raw, err := s.rdb.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return middleware.IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return middleware.IdempotencyRecord{}, false, err
	}
	return middleware.IdempotencyRecord{Key: key, Payload: e.Payload, Pending: e.Pending, OccurredAt: e.OccurredAt}, true, nil
}

func (s *IdempotencyStore) Reserve(ctx context.Context, key string) (bool, error) {
	value, err := encode(entry{Pending: true, OccurredAt: s.now().UTC()})
	if err != nil {
		return false, err
	}
	return s.rdb.SetNX(ctx, keyPrefix+key, value, s.ttl).Result()
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	value, err := encode(entry{Payload: rec.Payload, OccurredAt: rec.OccurredAt})
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, keyPrefix+rec.Key, value, s.ttl).Err()
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, keyPrefix+key).Err()
}

func encode(e entry) (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
