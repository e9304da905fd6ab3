package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
)

// Register wires the checkout task kinds to their collaborators.
func Register(p *Poller, discounts port.DiscountRepository, notifier port.OrderNotifier, carts port.CartRepository) {
	p.Handle(domain.TaskDiscountUsage, DiscountUsageHandler(discounts))
	p.Handle(domain.TaskOrderConfirmation, OrderConfirmationHandler(notifier))
	p.Handle(domain.TaskClearCart, ClearCartHandler(carts))
}

func DiscountUsageHandler(discounts port.DiscountRepository) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var usage domain.DiscountUsage
		if err := decode(payload, &usage); err != nil {
			return err
		}

		if err := discounts.RecordUsage(ctx, usage); err != nil {
			return fmt.Errorf("discounts.RecordUsage: %w", err)
		}
		return nil
	}
}

func OrderConfirmationHandler(notifier port.OrderNotifier) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p domain.OrderConfirmationPayload
		if err := decode(payload, &p); err != nil {
			return err
		}

		err := notifier.SendOrderConfirmation(ctx, domain.OrderConfirmation{
			OrderID:     p.OrderID,
			Email:       p.Email,
			BearerToken: p.BearerToken,
		})
		if err != nil {
			return fmt.Errorf("notifier.SendOrderConfirmation: %w", err)
		}
		return nil
	}
}

func ClearCartHandler(carts port.CartRepository) Handler {
	return func(ctx context.Context, payload json.RawMessage) error {
		var p domain.ClearCartPayload
		if err := decode(payload, &p); err != nil {
			return err
		}
		if p.UserID == "" {
			return backoff.Permanent(fmt.Errorf("userId is empty"))
		}

		if _, err := carts.ClearCart(ctx, p.UserID); err != nil {
			return fmt.Errorf("carts.ClearCart: %w", err)
		}
		return nil
	}
}

// decode fails permanently: a payload that does not parse never will.
func decode(payload json.RawMessage, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return backoff.Permanent(fmt.Errorf("json.Unmarshal: %w", err))
	}
	return nil
}
