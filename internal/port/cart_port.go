package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
)

type CartRepository interface {
	GetCart(ctx context.Context, ownerID string) (domain.Cart, error)
	AddItem(ctx context.Context, ownerID string, line domain.CartLine) (uuid.UUID, error)
	DeleteItem(ctx context.Context, ownerID string, lineID uuid.UUID) (bool, error)
	ClearCart(ctx context.Context, ownerID string) (int64, error)
}

// GuestCartStore keeps carts of shoppers without an account.
type GuestCartStore interface {
	Get(ctx context.Context, guestSessionID string) ([]domain.CartLine, error)
	Set(ctx context.Context, guestSessionID string, lines []domain.CartLine) error
	Clear(ctx context.Context, guestSessionID string) error
}

// CatalogReader looks up current catalog rows by id, one `in(list)` read per table.
type CatalogReader interface {
	GetItems(ctx context.Context, keys []domain.ProductKey) (map[domain.ProductKey]domain.ProductRef, error)
}
