package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountKind string

const (
	DiscountKindPercentage DiscountKind = "percentage"
	DiscountKindFixed      DiscountKind = "fixed"
)

type DiscountCode struct {
	ID             string
	Code           string
	Kind           DiscountKind
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	Active         bool
	ExpiresAt      *time.Time
}

// AppliedDiscount is a discount code bound to the current checkout with its computed amount.
type AppliedDiscount struct {
	CodeID string          `json:"codeId"`
	Code   string          `json:"code"`
	Amount decimal.Decimal `json:"amount"`
}

type DiscountUsage struct {
	DiscountCodeID string          `json:"discountCodeId"`
	UserID         string          `json:"userId"`
	OrderID        string          `json:"orderId"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	OrderSubtotal  decimal.Decimal `json:"orderSubtotal"`
}
