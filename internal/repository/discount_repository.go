package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/restaurant-checkout/internal/db"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
)

type discountRepository struct {
	q    *db.Queries
	pool *pgxpool.Pool
}

func NewDiscount(pool *pgxpool.Pool) (port.DiscountRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	return &discountRepository{
		q:    db.New(pool),
		pool: pool,
	}, nil
}

// GetByCode matches codes case-insensitively; an unknown code is domain.ErrNotFound.
func (r *discountRepository) GetByCode(ctx context.Context, code string) (domain.DiscountCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return domain.DiscountCode{}, fmt.Errorf("code is empty")
	}

	row, err := r.q.GetDiscountCode(ctx, code)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DiscountCode{}, fmt.Errorf("code[%s]: %w", code, domain.ErrNotFound)
	}
	if err != nil {
		return domain.DiscountCode{}, fmt.Errorf("q.GetDiscountCode: %w", err)
	}

	return domain.DiscountCode{
		ID:             row.ID.String(),
		Code:           row.Code,
		Kind:           domain.DiscountKind(row.Kind),
		Value:          row.Value,
		MinOrderAmount: row.MinOrderAmount,
		Active:         row.Active,
		ExpiresAt:      row.ExpiresAt,
	}, nil
}

// RecordUsage is idempotent per (code, order): a replayed usage changes nothing.
func (r *discountRepository) RecordUsage(ctx context.Context, usage domain.DiscountUsage) error {
	if usage.UserID == "" {
		return fmt.Errorf("userID is empty")
	}

	codeID, err := uuid.Parse(usage.DiscountCodeID)
	if err != nil {
		return fmt.Errorf("discountCodeID[%s] is not valid: %w", usage.DiscountCodeID, err)
	}

	orderID, err := uuid.Parse(usage.OrderID)
	if err != nil {
		return fmt.Errorf("orderID[%s] is not valid: %w", usage.OrderID, err)
	}

	_, err = withTx(ctx, r.pool, r.q, func(q *db.Queries) (struct{}, error) {
		inserted, err := q.InsertDiscountUsage(ctx, db.InsertDiscountUsageParams{
			DiscountCodeID: codeID,
			UserID:         usage.UserID,
			OrderID:        orderID,
			DiscountAmount: usage.DiscountAmount,
			OrderSubtotal:  usage.OrderSubtotal,
		})
		if err != nil {
			return struct{}{}, fmt.Errorf("q.InsertDiscountUsage: %w", err)
		}

		if inserted == 0 {
			return struct{}{}, nil
		}

		if err := q.IncrementDiscountUsageCount(ctx, codeID); err != nil {
			return struct{}{}, fmt.Errorf("q.IncrementDiscountUsageCount: %w", err)
		}

		return struct{}{}, nil
	})

	return err
}
