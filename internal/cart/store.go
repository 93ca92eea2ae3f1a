package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/pos-backend/pkg/config"
	redisclient "github.com/angelmondragon/pos-backend/pkg/redis"
)

type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type cartKeyer interface {
	CartKey(sessionID string) string
}

// Store keeps one cart per terminal session in Redis. The TTL is refreshed on
// every save so an idle terminal's cart eventually expires.
type Store struct {
	kv    kvStore
	keyer cartKeyer
	ttl   time.Duration
	now   func() time.Time
}

// NewStore constructs a Redis-backed cart store.
func NewStore(client *redisclient.Client, cfg config.CartConfig) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("cart ttl must be positive")
	}
	return &Store{kv: client, keyer: client, ttl: cfg.TTL, now: time.Now}, nil
}

// Load returns the session's cart, or an empty cart when none is stored.
func (s *Store) Load(ctx context.Context, sessionID string) (*Cart, error) {
	key, err := s.key(sessionID)
	if err != nil {
		return nil, err
	}
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return New(), nil
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	return &c, nil
}

// Save writes the cart and stamps UpdatedAt.
func (s *Store) Save(ctx context.Context, sessionID string, c *Cart) error {
	key, err := s.key(sessionID)
	if err != nil {
		return err
	}
	c.UpdatedAt = s.now().UTC()
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.kv.Set(ctx, key, string(payload), s.ttl); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

// Delete discards the session's cart.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	key, err := s.key(sessionID)
	if err != nil {
		return err
	}
	return s.kv.Del(ctx, key)
}

// Transfer moves an open cart to a new session id, used when a terminal
// rotates its access token.
func (s *Store) Transfer(ctx context.Context, fromSession, toSession string) error {
	c, err := s.Load(ctx, fromSession)
	if err != nil {
		return err
	}
	if c.IsEmpty() && c.DiscountPercentage.IsZero() {
		return s.Delete(ctx, fromSession)
	}
	if err := s.Save(ctx, toSession, c); err != nil {
		return err
	}
	return s.Delete(ctx, fromSession)
}

func (s *Store) key(sessionID string) (string, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("session id is required")
	}
	return s.keyer.CartKey(sessionID), nil
}
