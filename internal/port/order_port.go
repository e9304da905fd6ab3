package port

import (
	"context"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
)

type OrderCreator interface {
	CreateOrder(ctx context.Context, draft domain.OrderDraft) (string, error)
}

type DiscountRepository interface {
	GetByCode(ctx context.Context, code string) (domain.DiscountCode, error)
	RecordUsage(ctx context.Context, usage domain.DiscountUsage) error
}

type AddressRepository interface {
	ListAddresses(ctx context.Context, userID string) ([]domain.ShippingAddress, error)
}
