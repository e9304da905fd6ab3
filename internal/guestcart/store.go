// Package guestcart keeps the carts of shoppers without an account in Redis.
package guestcart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 7 * 24 * time.Hour

type Store struct {
	client  *redis.Client
	baseTTL time.Duration
}

func New(client *redis.Client, baseTTL time.Duration) *Store {
	if baseTTL <= 0 {
		baseTTL = DefaultTTL
	}

	return &Store{
		client:  client,
		baseTTL: baseTTL,
	}
}

var _ port.GuestCartStore = (*Store)(nil)

// Get returns no lines, and no error, for an unknown or expired guest session.
func (s *Store) Get(ctx context.Context, guestSessionID string) ([]domain.CartLine, error) {
	if guestSessionID == "" {
		return nil, fmt.Errorf("guestSessionID is empty")
	}

	data, err := s.client.Get(ctx, key(guestSessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("client.Get: %w", err)
	}

	var lines []domain.CartLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	return lines, nil
}

// Set replaces the guest cart and extends its lifetime.
func (s *Store) Set(ctx context.Context, guestSessionID string, lines []domain.CartLine) error {
	if guestSessionID == "" {
		return fmt.Errorf("guestSessionID is empty")
	}

	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	// up to an hour of jitter on top of the base TTL
	jitter := time.Duration(rand.Int64N(int64(time.Hour)))
	if err := s.client.Set(ctx, key(guestSessionID), data, s.baseTTL+jitter).Err(); err != nil {
		return fmt.Errorf("client.Set: %w", err)
	}

	return nil
}

func (s *Store) Clear(ctx context.Context, guestSessionID string) error {
	if guestSessionID == "" {
		return fmt.Errorf("guestSessionID is empty")
	}

	if err := s.client.Del(ctx, key(guestSessionID)).Err(); err != nil {
		return fmt.Errorf("client.Del: %w", err)
	}

	return nil
}

func key(guestSessionID string) string {
	return fmt.Sprintf("guest_cart:%s", guestSessionID)
}
