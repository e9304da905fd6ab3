package checkout

import (
	"encoding/json"
	"strings"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/pricing"
)

// BuildOrderItems turns cart lines into order lines.
// A single non-positive price fails the whole batch.
func BuildOrderItems(lines []domain.CartLine) ([]domain.OrderItem, error) {
	items := make([]domain.OrderItem, 0, len(lines))

	for _, line := range lines {
		name := DisplayName(line)

		price := pricing.UnitPrice(line)
		if !price.IsPositive() {
			return nil, &DataIntegrityError{Product: name, Price: price}
		}

		item := domain.OrderItem{
			Name:      name,
			Quantity:  line.Quantity,
			UnitPrice: price,
			Metadata:  NormalizeVariant(line.Variant),
		}

		switch kind, id := ProductLinkage(line); kind {
		case domain.LineKindMenuItem:
			item.MenuItemID = id
		case domain.LineKindProduct:
			item.ProductID = id
		}

		items = append(items, item)
	}

	return items, nil
}

func DisplayName(line domain.CartLine) string {
	for _, ref := range refs(line) {
		if name := strings.TrimSpace(ref.Name); name != "" {
			return name
		}
	}
	return "Item " + line.ID
}

// ProductLinkage tells whether the line points at a menu item or a legacy product.
// An explicit kind tag beats inference from whichever id is set.
func ProductLinkage(line domain.CartLine) (domain.LineKind, string) {
	var kind domain.LineKind
	var menuItemID, productID string

	for _, ref := range refs(line) {
		if kind == domain.LineKindUnknown {
			kind = ref.Kind
		}
		if menuItemID == "" {
			menuItemID = ref.MenuItemID
		}
		if productID == "" {
			productID = ref.ProductID
		}
	}

	switch {
	case kind == domain.LineKindMenuItem && menuItemID != "":
		return domain.LineKindMenuItem, menuItemID
	case kind == domain.LineKindProduct && productID != "":
		return domain.LineKindProduct, productID
	case menuItemID != "":
		return domain.LineKindMenuItem, menuItemID
	case productID != "":
		return domain.LineKindProduct, productID
	default:
		return domain.LineKindUnknown, ""
	}
}

// NormalizeVariant coalesces the stored variant shapes into one metadata map.
func NormalizeVariant(v domain.Variant) map[string]any {
	if v.Structured != nil {
		return v.Structured
	}

	if serialized := strings.TrimSpace(v.Serialized); serialized != "" {
		var parsed map[string]any
		if err := json.Unmarshal([]byte(serialized), &parsed); err == nil && parsed != nil {
			return parsed
		}
		return map[string]any{"display": serialized}
	}

	if display := strings.TrimSpace(v.Display); display != "" {
		return map[string]any{"display": display}
	}

	return nil
}

func refs(line domain.CartLine) []domain.ProductRef {
	out := make([]domain.ProductRef, 0, 2)
	if line.Resolved != nil {
		out = append(out, *line.Resolved)
	}
	if line.Embedded != nil {
		out = append(out, *line.Embedded)
	}
	return out
}
