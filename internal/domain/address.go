package domain

type ShippingAddress struct {
	ID            string `json:"id,omitempty"`
	FullName      string `json:"fullName"`
	StreetAddress string `json:"streetAddress"`
	City          string `json:"city"`
	StateProvince string `json:"stateProvince"`
	PostalCode    string `json:"postalCode"`
	Country       string `json:"country"`
	PhoneNumber   string `json:"phoneNumber,omitempty"`
}
