package repository_test

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/restaurant-checkout/internal/migrations"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

func startPostgres(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	postgresContainer, err := postgres.Run(ctx, "postgres:17.6-alpine3.22",
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, "", fmt.Errorf("postgres.Run: %w", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("pc.ConnectionString: %w", err)
	}

	if err := migrations.Up(connStr); err != nil {
		return nil, "", fmt.Errorf("migrations.Up: %w", err)
	}

	return postgresContainer, connStr, nil
}

func insertMenuItem(ctx context.Context, pool *pgxpool.Pool, name, price string) (string, error) {
	var id string
	err := pool.QueryRow(ctx,
		"INSERT INTO menu_items (name, category, price) VALUES ($1, 'mains', $2::numeric) RETURNING id::text",
		name, price).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert menu item: %w", err)
	}
	return id, nil
}

func insertProduct(ctx context.Context, pool *pgxpool.Pool, name, price string, available bool) (string, error) {
	var id string
	err := pool.QueryRow(ctx,
		"INSERT INTO products (name, category, price, is_available) VALUES ($1, 'desserts', $2::numeric, $3) RETURNING id::text",
		name, price, available).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert product: %w", err)
	}
	return id, nil
}
