// Package session keeps per-browser session bags in Redis. A bag is a hash
// under session:<id> whose TTL slides forward on every request.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gamehub/shop/services/shop/internal/domain"
)

const keyPrefix = "session:"

// Keys of the session bag.
const (
	KeyCartIdentifier = "cart_identifier"
	KeyDraftOrder     = "draft_order"
	KeyItemCount      = "item_count"
)

// Store creates and expires session bags.
type Store struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewStore creates a Redis-backed session store.
func NewStore(client redis.Cmdable, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// TTL returns the idle lifetime of a session.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Session returns a handle on the bag for id. Nothing is written until a
// value is set.
func (s *Store) Session(id string) *Session {
	return &Session{id: id, key: keyPrefix + id, store: s}
}

// Touch extends the lifetime of an existing bag. Missing bags are ignored.
func (s *Store) Touch(ctx context.Context, id string) error {
	if err := s.client.Expire(ctx, keyPrefix+id, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis expire session: %w", err)
	}
	return nil
}

// Session is one browser session's bag. It is created per request by the
// middleware and passed explicitly to the services that need it.
type Session struct {
	id    string
	key   string
	store *Store
}

func (s *Session) ID() string {
	return s.id
}

// CurrentCustomerID returns the anonymous cart identifier of this session,
// minting one on first use. HSETNX makes concurrent first requests agree on
// a single identifier.
func (s *Session) CurrentCustomerID(ctx context.Context) (string, error) {
	id, ok, err := s.GetString(ctx, KeyCartIdentifier)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}

	c := s.store.client
	if _, err := c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSetNX(ctx, s.key, KeyCartIdentifier, uuid.NewString())
		p.Expire(ctx, s.key, s.store.ttl)
		return nil
	}); err != nil {
		return "", fmt.Errorf("redis mint customer id: %w", err)
	}

	// Read back whichever value won.
	id, err = c.HGet(ctx, s.key, KeyCartIdentifier).Result()
	if err != nil {
		return "", fmt.Errorf("redis get customer id: %w", err)
	}
	return id, nil
}

// GetString returns the value stored under field.
func (s *Session) GetString(ctx context.Context, field string) (string, bool, error) {
	v, err := s.store.client.HGet(ctx, s.key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis hget %s: %w", field, err)
	}
	return v, true, nil
}

// GetInt returns the integer stored under field, 0 when absent.
func (s *Session) GetInt(ctx context.Context, field string) (int, error) {
	v, ok, err := s.GetString(ctx, field)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("session field %s is not an integer: %w", field, err)
	}
	return n, nil
}

// GetJSON decodes the object stored under field into dst. It reports false
// when the field is absent.
func (s *Session) GetJSON(ctx context.Context, field string, dst any) (bool, error) {
	v, ok, err := s.GetString(ctx, field)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(v), dst); err != nil {
		return false, fmt.Errorf("decode session field %s: %w", field, err)
	}
	return true, nil
}

// Set stores a string, integer or JSON-encodable object under field.
func (s *Session) Set(ctx context.Context, field string, value any) error {
	var encoded any
	switch v := value.(type) {
	case string:
		encoded = v
	case int, int64:
		encoded = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode session field %s: %w", field, err)
		}
		encoded = b
	}

	if _, err := s.store.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.key, field, encoded)
		p.Expire(ctx, s.key, s.store.ttl)
		return nil
	}); err != nil {
		return fmt.Errorf("redis hset %s: %w", field, err)
	}
	return nil
}

// Delete removes fields from the bag.
func (s *Session) Delete(ctx context.Context, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	if err := s.store.client.HDel(ctx, s.key, fields...).Err(); err != nil {
		return fmt.Errorf("redis hdel: %w", err)
	}
	return nil
}

// Draft returns the staged draft order, or nil when none is staged.
func (s *Session) Draft(ctx context.Context) (*domain.DraftOrder, error) {
	var d domain.DraftOrder
	ok, err := s.GetJSON(ctx, KeyDraftOrder, &d)
	if err != nil || !ok {
		return nil, err
	}
	return &d, nil
}

// SaveDraft stores d, replacing any previous draft.
func (s *Session) SaveDraft(ctx context.Context, d *domain.DraftOrder) error {
	return s.Set(ctx, KeyDraftOrder, d)
}

// SetItemCount stores the cart badge count.
func (s *Session) SetItemCount(ctx context.Context, n int) error {
	return s.Set(ctx, KeyItemCount, n)
}

// ClearCheckout drops the draft and the cart badge after an order is placed.
func (s *Session) ClearCheckout(ctx context.Context) error {
	return s.Delete(ctx, KeyDraftOrder, KeyItemCount)
}
