package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/restaurant-checkout/internal/db"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
	"golang.org/x/sync/errgroup"
)

type catalogRepository struct {
	q *db.Queries
}

func NewCatalog(pool *pgxpool.Pool) (port.CatalogReader, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}

	return &catalogRepository{q: db.New(pool)}, nil
}

// GetItems reads menu items and legacy products in parallel, one query per table.
// Keys with ids that are not UUIDs cannot exist in the catalog and are skipped.
func (r *catalogRepository) GetItems(ctx context.Context, keys []domain.ProductKey) (map[domain.ProductKey]domain.ProductRef, error) {
	var menuItemIDs, productIDs []uuid.UUID

	for _, key := range keys {
		id, err := uuid.Parse(key.ID)
		if err != nil {
			continue
		}

		switch key.Kind {
		case domain.LineKindMenuItem:
			menuItemIDs = append(menuItemIDs, id)
		case domain.LineKindProduct:
			productIDs = append(productIDs, id)
		}
	}

	var (
		menuItems []db.GetMenuItemsByIDsRow
		products  []db.GetProductsByIDsRow
	)

	g, gctx := errgroup.WithContext(ctx)

	if len(menuItemIDs) > 0 {
		g.Go(func() (err error) {
			if menuItems, err = r.q.GetMenuItemsByIDs(gctx, menuItemIDs); err != nil {
				return fmt.Errorf("q.GetMenuItemsByIDs: %w", err)
			}
			return nil
		})
	}

	if len(productIDs) > 0 {
		g.Go(func() (err error) {
			if products, err = r.q.GetProductsByIDs(gctx, productIDs); err != nil {
				return fmt.Errorf("q.GetProductsByIDs: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := make(map[domain.ProductKey]domain.ProductRef, len(menuItems)+len(products))

	for _, row := range menuItems {
		available := row.IsAvailable
		key := domain.ProductKey{Kind: domain.LineKindMenuItem, ID: row.ID.String()}
		result[key] = domain.ProductRef{
			MenuItemID: key.ID,
			Kind:       domain.LineKindMenuItem,
			Name:       row.Name,
			Category:   row.Category,
			Price:      domain.RawPrice(row.Price.String()),
			Available:  &available,
		}
	}

	for _, row := range products {
		available := row.IsAvailable
		key := domain.ProductKey{Kind: domain.LineKindProduct, ID: row.ID.String()}
		result[key] = domain.ProductRef{
			ProductID: key.ID,
			Kind:      domain.LineKindProduct,
			Name:      row.Name,
			Category:  row.Category,
			Price:     domain.RawPrice(row.Price.String()),
			Available: &available,
		}
	}

	return result, nil
}
