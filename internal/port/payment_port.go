package port

import (
	"context"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
)

type PaymentIntents interface {
	CreatePaymentIntent(ctx context.Context, req domain.PaymentIntentRequest) (string, error)
}

type OrderNotifier interface {
	SendOrderConfirmation(ctx context.Context, confirmation domain.OrderConfirmation) error
}
