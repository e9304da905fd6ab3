package repository

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/pricing"
	"github.com/shopspring/decimal"
)

func parseOptionalUUID(field, value string) (uuid.NullUUID, error) {
	if value == "" {
		return uuid.NullUUID{}, nil
	}

	parsed, err := uuid.Parse(value)
	if err != nil {
		return uuid.NullUUID{}, fmt.Errorf("%s[%s] is not valid: %w", field, value, err)
	}

	return uuid.NullUUID{UUID: parsed, Valid: true}, nil
}

func nullUUIDString(id uuid.NullUUID) string {
	if !id.Valid {
		return ""
	}
	return id.UUID.String()
}

func optionalText(value string) pgtype.Text {
	return pgtype.Text{String: value, Valid: value != ""}
}

func rawPriceToNull(raw domain.RawPrice) decimal.NullDecimal {
	if raw == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: pricing.ParseLenient(raw), Valid: true}
}

func nullToRawPrice(price decimal.NullDecimal) domain.RawPrice {
	if !price.Valid {
		return ""
	}
	return domain.RawPrice(price.Decimal.String())
}

func nullBool(b pgtype.Bool) *bool {
	if !b.Valid {
		return nil
	}
	return &b.Bool
}
