package domain

import "github.com/shopspring/decimal"

// PricingSnapshot is derived from the cart lines and the discount amount; it has no identity.
type PricingSnapshot struct {
	TotalItemsCount int             `json:"totalItemsCount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Shipping        decimal.Decimal `json:"shipping"`
	Tax             decimal.Decimal `json:"tax"`
	TaxRatePercent  decimal.Decimal `json:"taxRatePercent"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	GrandTotal      decimal.Decimal `json:"grandTotal"`
}
