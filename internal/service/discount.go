package service

import (
	"fmt"
	"time"

	"github.com/nikolayk812/restaurant-checkout/internal/checkout"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiscountAmount is what code takes off an order with the given subtotal at time now.
// The amount is rounded to cents and never exceeds the subtotal.
func DiscountAmount(code domain.DiscountCode, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !code.Active {
		return decimal.Zero, &checkout.ValidationError{Message: "This discount code is no longer active."}
	}
	if code.ExpiresAt != nil && !now.Before(*code.ExpiresAt) {
		return decimal.Zero, &checkout.ValidationError{Message: "This discount code has expired."}
	}
	if subtotal.LessThan(code.MinOrderAmount) {
		return decimal.Zero, &checkout.ValidationError{
			Message: fmt.Sprintf("A minimum order of %s is required for this code.", code.MinOrderAmount.StringFixed(2)),
		}
	}

	var amount decimal.Decimal
	switch code.Kind {
	case domain.DiscountKindPercentage:
		amount = subtotal.Mul(code.Value).Div(hundred).Round(2)
	case domain.DiscountKindFixed:
		amount = code.Value
	default:
		return decimal.Zero, fmt.Errorf("unknown discount kind %q", code.Kind)
	}

	if amount.IsNegative() {
		return decimal.Zero, nil
	}
	return decimal.Min(amount, subtotal), nil
}
