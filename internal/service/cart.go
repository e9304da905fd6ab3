package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/nikolayk812/restaurant-checkout/internal/checkout"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	msgQuantity    = "Quantity must be at least 1."
	msgItemMissing = "Please choose a menu item or product."
	msgUnavailable = "This item is no longer available."
	msgLineID      = "Cart item id is not valid."
)

// AddItem puts a catalog row into the shopper's cart at its current price.
func (s *Service) AddItem(ctx context.Context, identity domain.Session, in ItemInput) (string, error) {
	sess, err := s.session(identity)
	if err != nil {
		return "", err
	}
	if err := s.ensureNotInFlight(sess); err != nil {
		return "", err
	}

	if in.Quantity < 1 {
		return "", &checkout.ValidationError{Message: msgQuantity}
	}

	var key domain.ProductKey
	switch {
	case in.MenuItemID != "":
		key = domain.ProductKey{Kind: domain.LineKindMenuItem, ID: in.MenuItemID}
	case in.ProductID != "":
		key = domain.ProductKey{Kind: domain.LineKindProduct, ID: in.ProductID}
	default:
		return "", &checkout.ValidationError{Message: msgItemMissing}
	}

	refs, err := s.deps.Catalog.GetItems(ctx, []domain.ProductKey{key})
	if err != nil {
		return "", fmt.Errorf("catalog.GetItems: %w", err)
	}
	ref, ok := refs[key]
	if !ok || (ref.Available != nil && !*ref.Available) {
		return "", &checkout.ValidationError{Message: msgUnavailable}
	}

	line := domain.CartLine{
		Quantity:        in.Quantity,
		Price:           ref.Price,
		PriceAtPurchase: ref.Price,
		Embedded:        &ref,
		Variant:         in.Variant,
		CreatedAt:       s.cfg.Now().UTC(),
	}

	var lineID string
	if identity.IsGuest() {
		line.ID = uuid.NewString()

		lines, err := s.deps.GuestCarts.Get(ctx, identity.GuestSessionID)
		if err != nil {
			return "", fmt.Errorf("guestCarts.Get: %w", err)
		}
		if err := s.deps.GuestCarts.Set(ctx, identity.GuestSessionID, append(lines, line)); err != nil {
			return "", fmt.Errorf("guestCarts.Set: %w", err)
		}
		lineID = line.ID
	} else {
		id, err := s.deps.Carts.AddItem(ctx, identity.UserID, line)
		if err != nil {
			return "", fmt.Errorf("carts.AddItem: %w", err)
		}
		lineID = id.String()
	}

	if err := s.refreshLines(ctx, sess); err != nil {
		return "", err
	}
	s.syncWatcher(ctx, sess)

	return lineID, nil
}

// RemoveItem deletes one line of the shopper's cart; an unknown line is domain.ErrNotFound.
func (s *Service) RemoveItem(ctx context.Context, identity domain.Session, lineID string) error {
	sess, err := s.session(identity)
	if err != nil {
		return err
	}
	if err := s.ensureNotInFlight(sess); err != nil {
		return err
	}

	if identity.IsGuest() {
		lines, err := s.deps.GuestCarts.Get(ctx, identity.GuestSessionID)
		if err != nil {
			return fmt.Errorf("guestCarts.Get: %w", err)
		}

		kept := slices.DeleteFunc(slices.Clone(lines), func(l domain.CartLine) bool { return l.ID == lineID })
		if len(kept) == len(lines) {
			return fmt.Errorf("line[%s]: %w", lineID, domain.ErrNotFound)
		}
		if err := s.deps.GuestCarts.Set(ctx, identity.GuestSessionID, kept); err != nil {
			return fmt.Errorf("guestCarts.Set: %w", err)
		}
	} else {
		id, err := uuid.Parse(lineID)
		if err != nil {
			return &checkout.ValidationError{Message: msgLineID}
		}

		deleted, err := s.deps.Carts.DeleteItem(ctx, identity.UserID, id)
		if err != nil {
			return fmt.Errorf("carts.DeleteItem: %w", err)
		}
		if !deleted {
			return fmt.Errorf("line[%s]: %w", lineID, domain.ErrNotFound)
		}
	}

	if err := s.refreshLines(ctx, sess); err != nil {
		return err
	}
	s.syncWatcher(ctx, sess)

	return nil
}

// refreshLines reloads the session's cart from its store.
func (s *Service) refreshLines(ctx context.Context, sess *session) error {
	sess.mu.Lock()
	identity := sess.identity
	sess.mu.Unlock()

	lines, err := s.loadLines(ctx, identity)
	if err != nil {
		return &checkout.CollaboratorError{Op: "load cart", Message: msgCartLoad, Err: err}
	}

	sess.mu.Lock()
	sess.lines = lines
	sess.mu.Unlock()

	return nil
}

func (s *Service) loadLines(ctx context.Context, identity domain.Session) ([]domain.CartLine, error) {
	if !identity.IsGuest() {
		cart, err := s.deps.Carts.GetCart(ctx, identity.UserID)
		if err != nil {
			return nil, fmt.Errorf("carts.GetCart: %w", err)
		}
		return cart.Lines, nil
	}

	lines, err := s.deps.GuestCarts.Get(ctx, identity.GuestSessionID)
	if err != nil {
		return nil, fmt.Errorf("guestCarts.Get: %w", err)
	}

	return s.resolveGuestLines(ctx, lines), nil
}

// resolveGuestLines attaches current catalog rows to guest lines, which only carry
// the product data they were added with. Without the catalog the stored data is used.
func (s *Service) resolveGuestLines(ctx context.Context, lines []domain.CartLine) []domain.CartLine {
	keys := productKeys(lines)
	if len(keys) == 0 {
		return lines
	}

	refs, err := s.deps.Catalog.GetItems(ctx, keys)
	if err != nil {
		s.logger.Warn("guest cart prices not refreshed", zap.Error(err))
		return lines
	}

	out := slices.Clone(lines)
	for i, line := range out {
		kind, id := checkout.ProductLinkage(line)
		if ref, ok := refs[domain.ProductKey{Kind: kind, ID: id}]; ok {
			out[i].Resolved = &ref
		}
	}
	return out
}

// ensureAddresses loads the address book of a signed-in user once per session.
func (s *Service) ensureAddresses(ctx context.Context, sess *session) error {
	sess.mu.Lock()
	skip := sess.identity.IsGuest() || sess.addressesLoaded
	sess.mu.Unlock()

	if skip {
		return nil
	}
	return s.loadAddresses(ctx, sess)
}

// loadAddresses reads the address book and keeps the selection if the address still exists.
func (s *Service) loadAddresses(ctx context.Context, sess *session) error {
	sess.mu.Lock()
	identity := sess.identity
	sess.mu.Unlock()

	if identity.IsGuest() {
		return nil
	}

	addresses, err := s.deps.Addresses.ListAddresses(ctx, identity.UserID)
	if err != nil {
		return fmt.Errorf("addresses.ListAddresses: %w", err)
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.addresses = addresses
	sess.addressesLoaded = true
	if !slices.ContainsFunc(addresses, func(a domain.ShippingAddress) bool { return a.ID == sess.selected }) {
		sess.selected = ""
		if len(addresses) > 0 {
			sess.selected = addresses[0].ID
		}
	}

	return nil
}

// productKeys lists the distinct catalog rows the lines point at, in a stable order.
func productKeys(lines []domain.CartLine) []domain.ProductKey {
	keys := make([]domain.ProductKey, 0, len(lines))
	for _, line := range lines {
		kind, id := checkout.ProductLinkage(line)
		if kind == domain.LineKindUnknown {
			continue
		}
		keys = append(keys, domain.ProductKey{Kind: kind, ID: id})
	}

	slices.SortFunc(keys, func(a, b domain.ProductKey) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.ID, b.ID))
	})
	return slices.Compact(keys)
}

func zeroOr(discount *domain.AppliedDiscount) decimal.Decimal {
	if discount == nil {
		return decimal.Zero
	}
	return discount.Amount
}
