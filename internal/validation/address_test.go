package validation_test

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/validation"
	"github.com/stretchr/testify/assert"
)

func TestValidateShippingAddress(t *testing.T) {
	tests := []struct {
		name         string
		modify       func(a *domain.ShippingAddress)
		requirePhone bool
		wantValid    bool
		wantMissing  []string
	}{
		{
			name:      "complete address: ok",
			modify:    func(*domain.ShippingAddress) {},
			wantValid: true,
		},
		{
			name:      "full name of two characters: ok",
			modify:    func(a *domain.ShippingAddress) { a.FullName = "Al" },
			wantValid: true,
		},
		{
			name:      "full name of one character: error",
			modify:    func(a *domain.ShippingAddress) { a.FullName = "A" },
			wantValid: false,
		},
		{
			name:        "missing postal code: error",
			modify:      func(a *domain.ShippingAddress) { a.PostalCode = "" },
			wantValid:   false,
			wantMissing: []string{validation.LabelPostalCode},
		},
		{
			name:      "short street address: error",
			modify:    func(a *domain.ShippingAddress) { a.StreetAddress = "Elm" },
			wantValid: false,
		},
		{
			name:        "blank country: error",
			modify:      func(a *domain.ShippingAddress) { a.Country = "   " },
			wantValid:   false,
			wantMissing: []string{validation.LabelCountry},
		},
		{
			name:      "optional phone absent: ok",
			modify:    func(a *domain.ShippingAddress) { a.PhoneNumber = "" },
			wantValid: true,
		},
		{
			name:         "required phone absent: error",
			modify:       func(a *domain.ShippingAddress) { a.PhoneNumber = "" },
			requirePhone: true,
			wantValid:    false,
			wantMissing:  []string{validation.LabelPhoneNumber},
		},
		{
			name:      "optional phone present but malformed: error",
			modify:    func(a *domain.ShippingAddress) { a.PhoneNumber = "call me" },
			wantValid: false,
		},
		{
			name:      "phone too short: error",
			modify:    func(a *domain.ShippingAddress) { a.PhoneNumber = "1234567" },
			wantValid: false,
		},
		{
			name:         "formatted phone: ok",
			modify:       func(a *domain.ShippingAddress) { a.PhoneNumber = "+1 (555) 010-2030" },
			requirePhone: true,
			wantValid:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := validAddress()
			tt.modify(&addr)

			got := validation.ValidateShippingAddress(addr, tt.requirePhone)

			assert.Equal(t, tt.wantValid, got.Valid)
			assert.Equal(t, tt.wantMissing, got.Missing)
			assert.Equal(t, got.Valid, validation.IsAddressValid(addr, tt.requirePhone))
			if !got.Valid {
				assert.NotEmpty(t, got.Errors)
			}
		})
	}
}

func TestValidateShippingAddress_EmptyNeverPanics(t *testing.T) {
	got := validation.ValidateShippingAddress(domain.ShippingAddress{}, true)

	assert.False(t, got.Valid)
	assert.Len(t, got.Missing, 7)
	assert.Equal(t, "Full Name is required", got.FirstError())
}

func TestResult_FirstErrorFallback(t *testing.T) {
	assert.Equal(t, "Please complete your shipping address.", validation.Result{}.FirstError())
}

func TestValidateEmail(t *testing.T) {
	tests := map[string]bool{
		"guest@example.com":      true,
		" guest@example.com ":    true,
		"first.last@sub.host.io": true,
		"":                       false,
		"guest":                  false,
		"guest@host":             false,
		"gu est@example.com":     false,
		"@example.com":           false,
	}

	for email, want := range tests {
		t.Run(email, func(t *testing.T) {
			assert.Equal(t, want, validation.ValidateEmail(email))
		})
	}

	assert.True(t, validation.ValidateEmail(gofakeit.Email()))
}

func validAddress() domain.ShippingAddress {
	return domain.ShippingAddress{
		FullName:      gofakeit.Name(),
		StreetAddress: "742 Evergreen Terrace",
		City:          "Springfield",
		StateProvince: "IL",
		PostalCode:    "62704",
		Country:       "US",
		PhoneNumber:   "555-010-2030",
	}
}
