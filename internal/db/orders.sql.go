package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (user_id, guest_session_id, is_guest, customer_email, customer_name, shipping_address,
                    fulfillment_type, discount_code_id, discount_amount, subtotal, grand_total, currency)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING id
`

type CreateOrderParams struct {
	UserID          pgtype.Text
	GuestSessionID  pgtype.Text
	IsGuest         bool
	CustomerEmail   string
	CustomerName    string
	ShippingAddress []byte
	FulfillmentType string
	DiscountCodeID  uuid.NullUUID
	DiscountAmount  decimal.Decimal
	Subtotal        decimal.Decimal
	GrandTotal      decimal.Decimal
	Currency        string
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.UserID,
		arg.GuestSessionID,
		arg.IsGuest,
		arg.CustomerEmail,
		arg.CustomerName,
		arg.ShippingAddress,
		arg.FulfillmentType,
		arg.DiscountCodeID,
		arg.DiscountAmount,
		arg.Subtotal,
		arg.GrandTotal,
		arg.Currency,
	)
	var id uuid.UUID
	err := row.Scan(&id)
	return id, err
}

const createOrderItem = `-- name: CreateOrderItem :exec
INSERT INTO order_items (order_id, position, menu_item_id, product_id, name, quantity, unit_price, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	Position   int32
	MenuItemID uuid.NullUUID
	ProductID  uuid.NullUUID
	Name       string
	Quantity   int32
	UnitPrice  decimal.Decimal
	Metadata   []byte
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) error {
	_, err := q.db.Exec(ctx, createOrderItem,
		arg.OrderID,
		arg.Position,
		arg.MenuItemID,
		arg.ProductID,
		arg.Name,
		arg.Quantity,
		arg.UnitPrice,
		arg.Metadata,
	)
	return err
}
