package domain

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type Money struct {
	Amount   decimal.Decimal
	Currency currency.Unit
}

// MinorUnits is the amount rounded half-up to the currency's minor unit precision.
func (m Money) MinorUnits() decimal.Decimal {
	scale, _ := currency.Standard.Rounding(m.Currency)
	return m.Amount.Round(int32(scale))
}

// StringFixed renders the amount with two decimals, the format payment collaborators expect.
func (m Money) StringFixed() string {
	return m.Amount.StringFixed(2)
}
