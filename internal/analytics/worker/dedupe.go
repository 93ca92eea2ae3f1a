package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const defaultDedupeTTL = 7 * 24 * time.Hour

type keyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// RedisDeduper remembers which event IDs a consumer has already handled.
type RedisDeduper struct {
	store keyStore
	ttl   time.Duration
}

// NewRedisDeduper builds a deduper whose markers expire after ttl.
func NewRedisDeduper(store keyStore, ttl time.Duration) (*RedisDeduper, error) {
	if store == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &RedisDeduper{store: store, ttl: ttl}, nil
}

// Claim reports true only for the first caller to see the event.
func (d *RedisDeduper) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	return d.store.SetNX(ctx, d.key(consumer, eventID), time.Now().UTC().Format(time.RFC3339), d.ttl)
}

// Release clears the marker so a redelivery is handled again.
func (d *RedisDeduper) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	return d.store.Del(ctx, d.key(consumer, eventID))
}

func (d *RedisDeduper) key(consumer string, eventID uuid.UUID) string {
	return d.store.IdempotencyKey("consumer:"+consumer, eventID.String())
}
