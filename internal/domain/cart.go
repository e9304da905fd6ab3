package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

type LineKind string

const (
	LineKindUnknown  LineKind = ""
	LineKindMenuItem LineKind = "menu_item"
	LineKindProduct  LineKind = "product"
)

// RawPrice is a price exactly as an upstream source delivered it.
// It may be a number, a decorated string like "$12.50" or garbage.
type RawPrice string

func (p *RawPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*p = RawPrice(s)
		return nil
	}

	*p = RawPrice(data)
	return nil
}

// ProductRef is catalog data attached to a cart line, either joined from the
// catalog tables (resolved) or carried inside the line itself (embedded).
type ProductRef struct {
	MenuItemID string   `json:"menuItemId,omitempty"`
	ProductID  string   `json:"productId,omitempty"`
	Kind       LineKind `json:"kind,omitempty"`
	Name       string   `json:"name,omitempty"`
	Category   string   `json:"category,omitempty"`
	Price      RawPrice `json:"price,omitempty"`
	Available  *bool    `json:"available,omitempty"`
}

// Variant is the shopper's variant choice in any of the shapes it has been stored in.
type Variant struct {
	Structured map[string]any `json:"structured,omitempty"`
	Serialized string         `json:"serialized,omitempty"`
	Display    string         `json:"display,omitempty"`
}

type CartLine struct {
	ID              string      `json:"id"`
	Quantity        int         `json:"quantity"`
	Price           RawPrice    `json:"price,omitempty"`
	PriceAtPurchase RawPrice    `json:"priceAtPurchase,omitempty"`
	Resolved        *ProductRef `json:"resolved,omitempty"`
	Embedded        *ProductRef `json:"product,omitempty"`
	Variant         Variant     `json:"variant"`

	CreatedAt time.Time `json:"createdAt"`
}

type Cart struct {
	OwnerID string
	Lines   []CartLine
}

// ProductKey identifies a catalog row a cart line points to.
type ProductKey struct {
	Kind LineKind
	ID   string
}

// Ref returns the first catalog reference available on the line, resolved data first.
func (l CartLine) Ref() ProductRef {
	if l.Resolved != nil {
		return *l.Resolved
	}
	if l.Embedded != nil {
		return *l.Embedded
	}
	return ProductRef{}
}
