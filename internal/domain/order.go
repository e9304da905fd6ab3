package domain

import "github.com/shopspring/decimal"

type OrderItem struct {
	MenuItemID string          `json:"menuItemId,omitempty"`
	ProductID  string          `json:"productId,omitempty"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

// FulfillmentAddress is the shipping address as stored on an order.
type FulfillmentAddress struct {
	ShippingAddress
	FulfillmentType string `json:"fulfillmentType"`
}

// OrderDraft is everything the order-creation collaborator needs to persist an order.
type OrderDraft struct {
	UserID          string
	CustomerEmail   string
	CustomerName    string
	ShippingAddress FulfillmentAddress
	Items           []OrderItem
	DiscountCodeID  string
	DiscountAmount  decimal.Decimal
	Subtotal        decimal.Decimal
	GrandTotal      decimal.Decimal
	Currency        string
	GuestSessionID  string
	IsGuest         bool
}

// OrderIntent is the result of a successful submission; ClientSecret is consumed once by the payment step.
type OrderIntent struct {
	OrderID      string `json:"orderId"`
	ClientSecret string `json:"clientSecret"`
}

type PaymentIntentRequest struct {
	Amount        Money
	OrderID       string
	CustomerEmail string
	BearerToken   string
}

type OrderConfirmation struct {
	OrderID     string `json:"orderId"`
	Email       string `json:"email"`
	BearerToken string `json:"-"`
}
