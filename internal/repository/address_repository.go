package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/restaurant-checkout/internal/db"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
)

type addressRepository struct {
	q *db.Queries
}

func NewAddress(pool *pgxpool.Pool) (port.AddressRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	return &addressRepository{q: db.New(pool)}, nil
}

// ListAddresses returns the default address first.
func (r *addressRepository) ListAddresses(ctx context.Context, userID string) ([]domain.ShippingAddress, error) {
	if userID == "" {
		return nil, fmt.Errorf("userID is empty")
	}

	rows, err := r.q.ListAddresses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("q.ListAddresses: %w", err)
	}

	addresses := make([]domain.ShippingAddress, 0, len(rows))
	for _, row := range rows {
		addresses = append(addresses, domain.ShippingAddress{
			ID:            row.ID.String(),
			FullName:      row.FullName,
			StreetAddress: row.StreetAddress,
			City:          row.City,
			StateProvince: row.StateProvince,
			PostalCode:    row.PostalCode,
			Country:       row.Country,
			PhoneNumber:   row.PhoneNumber,
		})
	}

	return addresses, nil
}
