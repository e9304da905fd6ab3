package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const getDiscountCode = `-- name: GetDiscountCode :one
SELECT id, code, kind, value, min_order_amount, active, expires_at
FROM discount_codes
WHERE upper(code) = upper($1::text)
`

type GetDiscountCodeRow struct {
	ID             uuid.UUID
	Code           string
	Kind           string
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	Active         bool
	ExpiresAt      *time.Time
}

func (q *Queries) GetDiscountCode(ctx context.Context, code string) (GetDiscountCodeRow, error) {
	row := q.db.QueryRow(ctx, getDiscountCode, code)
	var i GetDiscountCodeRow
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.Kind,
		&i.Value,
		&i.MinOrderAmount,
		&i.Active,
		&i.ExpiresAt,
	)
	return i, err
}

const incrementDiscountUsageCount = `-- name: IncrementDiscountUsageCount :exec
UPDATE discount_codes
SET usage_count = usage_count + 1
WHERE id = $1
`

func (q *Queries) IncrementDiscountUsageCount(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, incrementDiscountUsageCount, id)
	return err
}

const insertDiscountUsage = `-- name: InsertDiscountUsage :execrows
INSERT INTO discount_usages (discount_code_id, user_id, order_id, discount_amount, order_subtotal)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (discount_code_id, order_id) DO NOTHING
`

type InsertDiscountUsageParams struct {
	DiscountCodeID uuid.UUID
	UserID         string
	OrderID        uuid.UUID
	DiscountAmount decimal.Decimal
	OrderSubtotal  decimal.Decimal
}

func (q *Queries) InsertDiscountUsage(ctx context.Context, arg InsertDiscountUsageParams) (int64, error) {
	result, err := q.db.Exec(ctx, insertDiscountUsage,
		arg.DiscountCodeID,
		arg.UserID,
		arg.OrderID,
		arg.DiscountAmount,
		arg.OrderSubtotal,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
