package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
)

const (
	LabelFullName      = "Full Name"
	LabelStreetAddress = "Street Address"
	LabelCity          = "City"
	LabelStateProvince = "State/Province"
	LabelPostalCode    = "Postal Code"
	LabelCountry       = "Country"
	LabelPhoneNumber   = "Phone Number"
)

var (
	phonePattern = regexp.MustCompile(`^[0-9 +()-]{8,20}$`)
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

type Result struct {
	Valid   bool     `json:"valid"`
	Missing []string `json:"missing"`
	Errors  []string `json:"errors"`
}

// FirstError is the message shown to the shopper when the address is rejected.
func (r Result) FirstError() string {
	if len(r.Errors) > 0 {
		return r.Errors[0]
	}
	return "Please complete your shipping address."
}

type fieldRule struct {
	label  string
	value  func(domain.ShippingAddress) string
	minLen int
}

var addressRules = []fieldRule{
	{LabelFullName, func(a domain.ShippingAddress) string { return a.FullName }, 2},
	{LabelStreetAddress, func(a domain.ShippingAddress) string { return a.StreetAddress }, 5},
	{LabelCity, func(a domain.ShippingAddress) string { return a.City }, 2},
	{LabelStateProvince, func(a domain.ShippingAddress) string { return a.StateProvince }, 2},
	{LabelPostalCode, func(a domain.ShippingAddress) string { return a.PostalCode }, 3},
	{LabelCountry, func(a domain.ShippingAddress) string { return a.Country }, 1},
}

func ValidateShippingAddress(addr domain.ShippingAddress, requirePhone bool) Result {
	var res Result

	for _, rule := range addressRules {
		value := strings.TrimSpace(rule.value(addr))
		switch {
		case value == "":
			res.Missing = append(res.Missing, rule.label)
			res.Errors = append(res.Errors, fmt.Sprintf("%s is required", rule.label))
		case utf8.RuneCountInString(value) < rule.minLen:
			res.Errors = append(res.Errors, fmt.Sprintf("%s must be at least %d characters", rule.label, rule.minLen))
		}
	}

	phone := strings.TrimSpace(addr.PhoneNumber)
	switch {
	case phone == "" && requirePhone:
		res.Missing = append(res.Missing, LabelPhoneNumber)
		res.Errors = append(res.Errors, fmt.Sprintf("%s is required", LabelPhoneNumber))
	case phone != "" && !phonePattern.MatchString(phone):
		res.Errors = append(res.Errors, fmt.Sprintf("%s must be 8-20 digits, spaces, dashes, plus sign or parentheses", LabelPhoneNumber))
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func IsAddressValid(addr domain.ShippingAddress, requirePhone bool) bool {
	return ValidateShippingAddress(addr, requirePhone).Valid
}

// ValidateEmail checks the local@domain.tld shape only.
func ValidateEmail(email string) bool {
	return emailPattern.MatchString(strings.TrimSpace(email))
}
