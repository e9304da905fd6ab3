// Package migrations holds the database schema and applies it with golang-migrate.
package migrations

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed sql/*.sql
var files embed.FS

// Up applies all pending migrations to the database at connStr.
func Up(connStr string) error {
	m, err := newMigrate(connStr)
	if err != nil {
		return err
	}
	defer closeMigrate(m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("m.Up: %w", err)
	}

	return nil
}

// Down reverts every migration.
func Down(connStr string) error {
	m, err := newMigrate(connStr)
	if err != nil {
		return err
	}
	defer closeMigrate(m)

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("m.Down: %w", err)
	}

	return nil
}

func newMigrate(connStr string) (*migrate.Migrate, error) {
	if connStr == "" {
		return nil, fmt.Errorf("connStr is empty")
	}

	src, err := iofs.New(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("iofs.New: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, driverURL(connStr))
	if err != nil {
		return nil, fmt.Errorf("migrate.NewWithSourceInstance: %w", err)
	}

	return m, nil
}

// driverURL points a postgres URL at the pgx/v5 migrate driver.
func driverURL(connStr string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(connStr, scheme) {
			return "pgx5://" + strings.TrimPrefix(connStr, scheme)
		}
	}
	return connStr
}

func closeMigrate(m *migrate.Migrate) {
	_, _ = m.Close()
}
