// Package pricing computes checkout totals from a cart snapshot and a discount amount.
// All functions are pure and never fail: unusable prices count as zero.
package pricing

import (
	"strings"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/shopspring/decimal"
)

type Config struct {
	FreeShippingThreshold decimal.Decimal
	ShippingFee           decimal.Decimal
	TaxRate               decimal.Decimal
}

func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: decimal.NewFromInt(50),
		ShippingFee:           decimal.NewFromInt(5),
		TaxRate:               decimal.RequireFromString("0.088"),
	}
}

type Calculator struct {
	cfg Config
}

func New(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

func (c *Calculator) Config() Config {
	return c.cfg
}

func (c *Calculator) TotalItemsCount(lines []domain.CartLine) int {
	var count int
	for _, line := range lines {
		count += line.Quantity
	}
	return count
}

func (c *Calculator) Subtotal(lines []domain.CartLine) decimal.Decimal {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(UnitPrice(line).Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return subtotal
}

// Shipping is free once the subtotal reaches the threshold.
func (c *Calculator) Shipping(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(c.cfg.FreeShippingThreshold) {
		return decimal.Zero
	}
	return c.cfg.ShippingFee
}

// TaxableBase is subtotal plus shipping; shipping alone is never taxed.
func (c *Calculator) TaxableBase(subtotal, shipping decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() {
		return decimal.Zero
	}
	return subtotal.Add(shipping)
}

func (c *Calculator) Tax(base decimal.Decimal) decimal.Decimal {
	return base.Mul(c.cfg.TaxRate)
}

func (c *Calculator) TaxRatePercent() decimal.Decimal {
	return c.cfg.TaxRate.Mul(decimal.NewFromInt(100))
}

// GrandTotal is never negative.
func GrandTotal(subtotal, shipping, tax, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(shipping).Add(tax).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func (c *Calculator) Snapshot(lines []domain.CartLine, discount decimal.Decimal) domain.PricingSnapshot {
	subtotal := c.Subtotal(lines)
	shipping := c.Shipping(subtotal)
	tax := c.Tax(c.TaxableBase(subtotal, shipping))

	return domain.PricingSnapshot{
		TotalItemsCount: c.TotalItemsCount(lines),
		Subtotal:        subtotal,
		Shipping:        shipping,
		Tax:             tax,
		TaxRatePercent:  c.TaxRatePercent(),
		DiscountAmount:  discount,
		GrandTotal:      GrandTotal(subtotal, shipping, tax, discount),
	}
}

// UnitPrice resolves a line's price: resolved product, embedded product,
// the line's recorded price, then price at purchase. The first non-zero wins.
func UnitPrice(line domain.CartLine) decimal.Decimal {
	candidates := make([]domain.RawPrice, 0, 4)
	if line.Resolved != nil {
		candidates = append(candidates, line.Resolved.Price)
	}
	if line.Embedded != nil {
		candidates = append(candidates, line.Embedded.Price)
	}
	candidates = append(candidates, line.Price, line.PriceAtPurchase)

	for _, raw := range candidates {
		if price := ParseLenient(raw); !price.IsZero() {
			return price
		}
	}
	return decimal.Zero
}

// ParseLenient keeps digits, the decimal point and the minus sign, then parses.
// Anything that still does not parse is zero.
func ParseLenient(raw domain.RawPrice) decimal.Decimal {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, string(raw))

	if cleaned == "" {
		return decimal.Zero
	}

	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return price
}
