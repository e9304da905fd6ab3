package db

import (
	"context"

	"github.com/google/uuid"
)

const listAddresses = `-- name: ListAddresses :many
SELECT id, user_id, full_name, street_address, city, state_province, postal_code, country, phone_number, is_default
FROM user_addresses
WHERE user_id = $1
ORDER BY is_default DESC, created_at, id
`

type ListAddressesRow struct {
	ID            uuid.UUID
	UserID        string
	FullName      string
	StreetAddress string
	City          string
	StateProvince string
	PostalCode    string
	Country       string
	PhoneNumber   string
	IsDefault     bool
}

func (q *Queries) ListAddresses(ctx context.Context, userID string) ([]ListAddressesRow, error) {
	rows, err := q.db.Query(ctx, listAddresses, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ListAddressesRow
	for rows.Next() {
		var i ListAddressesRow
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.FullName,
			&i.StreetAddress,
			&i.City,
			&i.StateProvince,
			&i.PostalCode,
			&i.Country,
			&i.PhoneNumber,
			&i.IsDefault,
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
