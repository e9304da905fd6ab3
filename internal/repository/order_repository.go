package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/restaurant-checkout/internal/db"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
)

type orderRepository struct {
	q    *db.Queries
	pool *pgxpool.Pool
}

func NewOrder(pool *pgxpool.Pool) (port.OrderCreator, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	return &orderRepository{
		q:    db.New(pool),
		pool: pool,
	}, nil
}

// CreateOrder stores the order and its lines atomically and returns the order id.
func (r *orderRepository) CreateOrder(ctx context.Context, draft domain.OrderDraft) (string, error) {
	if draft.CustomerEmail == "" {
		return "", fmt.Errorf("customerEmail is empty")
	}
	if len(draft.Items) == 0 {
		return "", fmt.Errorf("items are empty")
	}
	if draft.IsGuest && draft.GuestSessionID == "" {
		return "", fmt.Errorf("guestSessionID is empty")
	}
	if !draft.IsGuest && draft.UserID == "" {
		return "", fmt.Errorf("userID is empty")
	}

	params, err := mapDraftToCreateOrderParams(draft)
	if err != nil {
		return "", fmt.Errorf("mapDraftToCreateOrderParams: %w", err)
	}

	itemParams, err := mapOrderItemsToParams(draft.Items)
	if err != nil {
		return "", fmt.Errorf("mapOrderItemsToParams: %w", err)
	}

	return withTx(ctx, r.pool, r.q, func(q *db.Queries) (string, error) {
		orderID, err := q.CreateOrder(ctx, params)
		if err != nil {
			return "", fmt.Errorf("q.CreateOrder: %w", err)
		}

		for _, item := range itemParams {
			item.OrderID = orderID
			if err := q.CreateOrderItem(ctx, item); err != nil {
				return "", fmt.Errorf("q.CreateOrderItem: %w", err)
			}
		}

		return orderID.String(), nil
	})
}

func mapDraftToCreateOrderParams(draft domain.OrderDraft) (db.CreateOrderParams, error) {
	address, err := json.Marshal(draft.ShippingAddress)
	if err != nil {
		return db.CreateOrderParams{}, fmt.Errorf("json.Marshal: %w", err)
	}

	discountCodeID, err := parseOptionalUUID("discountCodeID", draft.DiscountCodeID)
	if err != nil {
		return db.CreateOrderParams{}, err
	}

	return db.CreateOrderParams{
		UserID:          optionalText(draft.UserID),
		GuestSessionID:  optionalText(draft.GuestSessionID),
		IsGuest:         draft.IsGuest,
		CustomerEmail:   draft.CustomerEmail,
		CustomerName:    draft.CustomerName,
		ShippingAddress: address,
		FulfillmentType: draft.ShippingAddress.FulfillmentType,
		DiscountCodeID:  discountCodeID,
		DiscountAmount:  draft.DiscountAmount,
		Subtotal:        draft.Subtotal,
		GrandTotal:      draft.GrandTotal,
		Currency:        draft.Currency,
	}, nil
}

func mapOrderItemsToParams(items []domain.OrderItem) ([]db.CreateOrderItemParams, error) {
	params := make([]db.CreateOrderItemParams, 0, len(items))

	for i, item := range items {
		menuItemID, err := parseOptionalUUID("menuItemID", item.MenuItemID)
		if err != nil {
			return nil, err
		}

		productID, err := parseOptionalUUID("productID", item.ProductID)
		if err != nil {
			return nil, err
		}

		var metadata []byte
		if item.Metadata != nil {
			if metadata, err = json.Marshal(item.Metadata); err != nil {
				return nil, fmt.Errorf("json.Marshal: %w", err)
			}
		}

		params = append(params, db.CreateOrderItemParams{
			Position:   int32(i),
			MenuItemID: menuItemID,
			ProductID:  productID,
			Name:       item.Name,
			Quantity:   int32(item.Quantity),
			UnitPrice:  item.UnitPrice,
			Metadata:   metadata,
		})
	}

	return params, nil
}
