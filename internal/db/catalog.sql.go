package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const getMenuItemsByIDs = `-- name: GetMenuItemsByIDs :many
SELECT id, name, category, price, is_available
FROM menu_items
WHERE id = ANY ($1::uuid[])
`

type GetMenuItemsByIDsRow struct {
	ID          uuid.UUID
	Name        string
	Category    string
	Price       decimal.Decimal
	IsAvailable bool
}

func (q *Queries) GetMenuItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]GetMenuItemsByIDsRow, error) {
	rows, err := q.db.Query(ctx, getMenuItemsByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetMenuItemsByIDsRow
	for rows.Next() {
		var i GetMenuItemsByIDsRow
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Category,
			&i.Price,
			&i.IsAvailable,
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

const getProductsByIDs = `-- name: GetProductsByIDs :many
SELECT id, name, category, price, is_available
FROM products
WHERE id = ANY ($1::uuid[])
`

type GetProductsByIDsRow struct {
	ID          uuid.UUID
	Name        string
	Category    string
	Price       decimal.Decimal
	IsAvailable bool
}

func (q *Queries) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]GetProductsByIDsRow, error) {
	rows, err := q.db.Query(ctx, getProductsByIDs, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetProductsByIDsRow
	for rows.Next() {
		var i GetProductsByIDsRow
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Category,
			&i.Price,
			&i.IsAvailable,
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
