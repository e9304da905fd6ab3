package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const addItem = `-- name: AddItem :one
INSERT INTO cart_items (owner_id, menu_item_id, product_id, item_kind, quantity, price, price_at_purchase,
                        product_snapshot, variant, variant_serialized, variant_display)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id
`

type AddItemParams struct {
	OwnerID           string
	MenuItemID        uuid.NullUUID
	ProductID         uuid.NullUUID
	ItemKind          string
	Quantity          int32
	Price             decimal.NullDecimal
	PriceAtPurchase   decimal.NullDecimal
	ProductSnapshot   []byte
	Variant           []byte
	VariantSerialized pgtype.Text
	VariantDisplay    pgtype.Text
}

func (q *Queries) AddItem(ctx context.Context, arg AddItemParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, addItem,
		arg.OwnerID,
		arg.MenuItemID,
		arg.ProductID,
		arg.ItemKind,
		arg.Quantity,
		arg.Price,
		arg.PriceAtPurchase,
		arg.ProductSnapshot,
		arg.Variant,
		arg.VariantSerialized,
		arg.VariantDisplay,
	)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}

const clearCart = `-- name: ClearCart :execrows
DELETE
FROM cart_items
WHERE owner_id = $1
`

func (q *Queries) ClearCart(ctx context.Context, ownerID string) (int64, error) {
	result, err := q.db.Exec(ctx, clearCart, ownerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const deleteItem = `-- name: DeleteItem :execrows
DELETE
FROM cart_items
WHERE owner_id = $1
  AND id = $2
`

type DeleteItemParams struct {
	OwnerID string
	ID      uuid.UUID
}

func (q *Queries) DeleteItem(ctx context.Context, arg DeleteItemParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteItem, arg.OwnerID, arg.ID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getCart = `-- name: GetCart :many
SELECT ci.id,
       ci.owner_id,
       ci.menu_item_id,
       ci.product_id,
       ci.item_kind,
       ci.quantity,
       ci.price,
       ci.price_at_purchase,
       ci.product_snapshot,
       ci.variant,
       ci.variant_serialized,
       ci.variant_display,
       ci.created_at,
       mi.name         AS menu_item_name,
       mi.category     AS menu_item_category,
       mi.price        AS menu_item_price,
       mi.is_available AS menu_item_available,
       p.name          AS product_name,
       p.category      AS product_category,
       p.price         AS product_price,
       p.is_available  AS product_available
FROM cart_items ci
         LEFT JOIN menu_items mi ON mi.id = ci.menu_item_id
         LEFT JOIN products p ON p.id = ci.product_id
WHERE ci.owner_id = $1
ORDER BY ci.created_at, ci.id
`

type GetCartRow struct {
	ID                uuid.UUID
	OwnerID           string
	MenuItemID        uuid.NullUUID
	ProductID         uuid.NullUUID
	ItemKind          string
	Quantity          int32
	Price             decimal.NullDecimal
	PriceAtPurchase   decimal.NullDecimal
	ProductSnapshot   []byte
	Variant           []byte
	VariantSerialized pgtype.Text
	VariantDisplay    pgtype.Text
	CreatedAt         time.Time
	MenuItemName      pgtype.Text
	MenuItemCategory  pgtype.Text
	MenuItemPrice     decimal.NullDecimal
	MenuItemAvailable pgtype.Bool
	ProductName       pgtype.Text
	ProductCategory   pgtype.Text
	ProductPrice      decimal.NullDecimal
	ProductAvailable  pgtype.Bool
}

func (q *Queries) GetCart(ctx context.Context, ownerID string) ([]GetCartRow, error) {
	rows, err := q.db.Query(ctx, getCart, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetCartRow
	for rows.Next() {
		var i GetCartRow
		if err := rows.Scan(
			&i.ID,
			&i.OwnerID,
			&i.MenuItemID,
			&i.ProductID,
			&i.ItemKind,
			&i.Quantity,
			&i.Price,
			&i.PriceAtPurchase,
			&i.ProductSnapshot,
			&i.Variant,
			&i.VariantSerialized,
			&i.VariantDisplay,
			&i.CreatedAt,
			&i.MenuItemName,
			&i.MenuItemCategory,
			&i.MenuItemPrice,
			&i.MenuItemAvailable,
			&i.ProductName,
			&i.ProductCategory,
			&i.ProductPrice,
			&i.ProductAvailable,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
