package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/restaurant-checkout/internal/db"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
)

type cartRepository struct {
	q    *db.Queries
	pool *pgxpool.Pool
}

func NewCart(pool *pgxpool.Pool) (port.CartRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	return &cartRepository{
		q:    db.New(pool),
		pool: pool,
	}, nil
}

func NewCartWithTx(tx pgx.Tx) port.CartRepository {
	return &cartRepository{
		q:    db.New(tx),
		pool: nil, // use provided transaction instead
	}
}

func (r *cartRepository) GetCart(ctx context.Context, ownerID string) (domain.Cart, error) {
	if ownerID == "" {
		return domain.Cart{}, fmt.Errorf("ownerID is empty")
	}

	dbCartItems, err := r.q.GetCart(ctx, ownerID)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("q.GetCart: %w", err)
	}

	lines, err := mapGetCartRowsToDomain(dbCartItems)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("mapGetCartRowsToDomain: %w", err)
	}

	return domain.Cart{
		OwnerID: ownerID,
		Lines:   lines,
	}, nil
}

func (r *cartRepository) AddItem(ctx context.Context, ownerID string, line domain.CartLine) (uuid.UUID, error) {
	if ownerID == "" {
		return uuid.Nil, fmt.Errorf("ownerID is empty")
	}
	if line.Quantity < 1 {
		return uuid.Nil, fmt.Errorf("quantity must be positive")
	}

	params, err := mapCartLineToAddItemParams(ownerID, line)
	if err != nil {
		return uuid.Nil, fmt.Errorf("mapCartLineToAddItemParams: %w", err)
	}

	id, err := r.q.AddItem(ctx, params)
	if err != nil {
		return uuid.Nil, fmt.Errorf("q.AddItem: %w", err)
	}

	return id, nil
}

func (r *cartRepository) DeleteItem(ctx context.Context, ownerID string, lineID uuid.UUID) (bool, error) {
	if ownerID == "" {
		return false, fmt.Errorf("ownerID is empty")
	}

	rowsAffected, err := r.q.DeleteItem(ctx, db.DeleteItemParams{
		OwnerID: ownerID,
		ID:      lineID,
	})
	if err != nil {
		return false, fmt.Errorf("q.DeleteItem: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *cartRepository) ClearCart(ctx context.Context, ownerID string) (int64, error) {
	if ownerID == "" {
		return 0, fmt.Errorf("ownerID is empty")
	}

	rowsAffected, err := r.q.ClearCart(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("q.ClearCart: %w", err)
	}

	return rowsAffected, nil
}

func mapCartLineToAddItemParams(ownerID string, line domain.CartLine) (db.AddItemParams, error) {
	ref := line.Ref()

	menuItemID, err := parseOptionalUUID("menuItemID", ref.MenuItemID)
	if err != nil {
		return db.AddItemParams{}, err
	}

	productID, err := parseOptionalUUID("productID", ref.ProductID)
	if err != nil {
		return db.AddItemParams{}, err
	}

	var snapshot []byte
	if line.Embedded != nil {
		if snapshot, err = json.Marshal(line.Embedded); err != nil {
			return db.AddItemParams{}, fmt.Errorf("json.Marshal: %w", err)
		}
	}

	var variant []byte
	if line.Variant.Structured != nil {
		if variant, err = json.Marshal(line.Variant.Structured); err != nil {
			return db.AddItemParams{}, fmt.Errorf("json.Marshal: %w", err)
		}
	}

	return db.AddItemParams{
		OwnerID:           ownerID,
		MenuItemID:        menuItemID,
		ProductID:         productID,
		ItemKind:          string(ref.Kind),
		Quantity:          int32(line.Quantity),
		Price:             rawPriceToNull(line.Price),
		PriceAtPurchase:   rawPriceToNull(line.PriceAtPurchase),
		ProductSnapshot:   snapshot,
		Variant:           variant,
		VariantSerialized: optionalText(line.Variant.Serialized),
		VariantDisplay:    optionalText(line.Variant.Display),
	}, nil
}

func mapGetCartRowToDomain(row db.GetCartRow) (domain.CartLine, error) {
	line := domain.CartLine{
		ID:              row.ID.String(),
		Quantity:        int(row.Quantity),
		Price:           nullToRawPrice(row.Price),
		PriceAtPurchase: nullToRawPrice(row.PriceAtPurchase),
		Variant: domain.Variant{
			Serialized: row.VariantSerialized.String,
			Display:    row.VariantDisplay.String,
		},
		CreatedAt: row.CreatedAt,
	}

	kind := domain.LineKind(row.ItemKind)

	switch {
	case row.MenuItemID.Valid && row.MenuItemName.Valid:
		line.Resolved = &domain.ProductRef{
			MenuItemID: row.MenuItemID.UUID.String(),
			Kind:       domain.LineKindMenuItem,
			Name:       row.MenuItemName.String,
			Category:   row.MenuItemCategory.String,
			Price:      nullToRawPrice(row.MenuItemPrice),
			Available:  nullBool(row.MenuItemAvailable),
		}
	case row.ProductID.Valid && row.ProductName.Valid:
		line.Resolved = &domain.ProductRef{
			ProductID: row.ProductID.UUID.String(),
			Kind:      domain.LineKindProduct,
			Name:      row.ProductName.String,
			Category:  row.ProductCategory.String,
			Price:     nullToRawPrice(row.ProductPrice),
			Available: nullBool(row.ProductAvailable),
		}
	}

	if len(row.ProductSnapshot) > 0 {
		var embedded domain.ProductRef
		if err := json.Unmarshal(row.ProductSnapshot, &embedded); err != nil {
			return domain.CartLine{}, fmt.Errorf("product snapshot of line[%s] is not valid: %w", line.ID, err)
		}
		if embedded.Kind == domain.LineKindUnknown {
			embedded.Kind = kind
		}
		line.Embedded = &embedded
	} else if line.Resolved == nil && (row.MenuItemID.Valid || row.ProductID.Valid) {
		line.Embedded = &domain.ProductRef{
			MenuItemID: nullUUIDString(row.MenuItemID),
			ProductID:  nullUUIDString(row.ProductID),
			Kind:       kind,
		}
	}

	if len(row.Variant) > 0 {
		if err := json.Unmarshal(row.Variant, &line.Variant.Structured); err != nil {
			return domain.CartLine{}, fmt.Errorf("variant of line[%s] is not valid: %w", line.ID, err)
		}
	}

	return line, nil
}

func mapGetCartRowsToDomain(rows []db.GetCartRow) ([]domain.CartLine, error) {
	var lines []domain.CartLine

	for _, row := range rows {
		line, err := mapGetCartRowToDomain(row)
		if err != nil {
			return nil, fmt.Errorf("mapGetCartRowToDomain: %w", err)
		}

		lines = append(lines, line)
	}

	return lines, nil
}
