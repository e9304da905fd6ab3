package repository_test

import (
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
	"github.com/nikolayk812/restaurant-checkout/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type cartRepositorySuite struct {
	suite.Suite

	repo port.CartRepository
	pool *pgxpool.Pool

	menuItemID string
	productID  string
}

// entry point to run the tests in the suite
func TestCartRepositorySuite(t *testing.T) {
	suite.Run(t, new(cartRepositorySuite))
}

// before all tests in the suite
func (suite *cartRepositorySuite) SetupSuite() {
	ctx := suite.T().Context()

	_, connStr, err := startPostgres(ctx)
	suite.Require().NoError(err)

	suite.pool, err = pgxpool.New(ctx, connStr)
	suite.Require().NoError(err)

	suite.repo, err = repository.NewCart(suite.pool)
	suite.Require().NoError(err)

	suite.menuItemID, err = insertMenuItem(ctx, suite.pool, "Margherita", "12.50")
	suite.Require().NoError(err)

	suite.productID, err = insertProduct(ctx, suite.pool, "Tiramisu", "7.00", false)
	suite.Require().NoError(err)
}

// after all tests in the suite
func (suite *cartRepositorySuite) TearDownSuite() {
	if suite.pool != nil {
		suite.pool.Close()
	}
}

func (suite *cartRepositorySuite) TestAddItem() {
	defer suite.deleteAll()

	tests := []struct {
		name      string
		ownerID   string
		line      domain.CartLine
		want      domain.CartLine
		wantError string
	}{
		{
			name:    "add menu item resolved from catalog: ok",
			ownerID: gofakeit.UUID(),
			line: domain.CartLine{
				Quantity: 2,
				Price:    "12.50",
				Embedded: &domain.ProductRef{MenuItemID: suite.menuItemID, Kind: domain.LineKindMenuItem, Name: "Margherita", Price: "$12.50"},
				Variant:  domain.Variant{Structured: map[string]any{"size": "large"}, Display: "Large"},
			},
			want: domain.CartLine{
				Quantity: 2,
				Price:    "12.5",
				Resolved: &domain.ProductRef{MenuItemID: suite.menuItemID, Kind: domain.LineKindMenuItem, Name: "Margherita", Category: "mains", Price: "12.5", Available: ptr(true)},
				Embedded: &domain.ProductRef{MenuItemID: suite.menuItemID, Kind: domain.LineKindMenuItem, Name: "Margherita", Price: "$12.50"},
				Variant:  domain.Variant{Structured: map[string]any{"size": "large"}, Display: "Large"},
			},
		},
		{
			name:    "add legacy product without snapshot: ok",
			ownerID: gofakeit.UUID(),
			line: domain.CartLine{
				Quantity:        1,
				PriceAtPurchase: "7",
				Resolved:        &domain.ProductRef{ProductID: suite.productID},
				Variant:         domain.Variant{Serialized: `{"topping":"cocoa"}`},
			},
			want: domain.CartLine{
				Quantity:        1,
				PriceAtPurchase: "7",
				Resolved:        &domain.ProductRef{ProductID: suite.productID, Kind: domain.LineKindProduct, Name: "Tiramisu", Category: "desserts", Price: "7", Available: ptr(false)},
				Variant:         domain.Variant{Serialized: `{"topping":"cocoa"}`},
			},
		},
		{
			name:    "add line whose catalog row is gone: ok",
			ownerID: gofakeit.UUID(),
			line: domain.CartLine{
				Quantity: 3,
				Price:    "4",
			},
			want: domain.CartLine{
				Quantity: 3,
				Price:    "4",
			},
		},
		{
			name:      "add item with empty owner ID: error",
			ownerID:   "",
			line:      domain.CartLine{Quantity: 1},
			wantError: "ownerID is empty",
		},
		{
			name:      "add item with zero quantity: error",
			ownerID:   gofakeit.UUID(),
			line:      domain.CartLine{Quantity: 0},
			wantError: "quantity must be positive",
		},
		{
			name:    "add item with malformed menu item id: error",
			ownerID: gofakeit.UUID(),
			line: domain.CartLine{
				Quantity: 1,
				Embedded: &domain.ProductRef{MenuItemID: "not-a-uuid"},
			},
			wantError: `mapCartLineToAddItemParams: menuItemID[not-a-uuid] is not valid: invalid UUID length: 10`,
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			id, err := suite.repo.AddItem(ctx, tt.ownerID, tt.line)
			if tt.wantError != "" {
				require.EqualError(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, id)

			cart, err := suite.repo.GetCart(ctx, tt.ownerID)
			require.NoError(t, err)

			require.Len(t, cart.Lines, 1)
			tt.want.ID = id.String()
			assertCartLine(t, tt.want, cart.Lines[0])
		})
	}
}

func (suite *cartRepositorySuite) TestDeleteItem() {
	defer suite.deleteAll()

	tests := []struct {
		name        string
		ownerID     string
		setupLines  int
		deleteOwn   bool
		wantDeleted bool
		wantError   string
	}{
		{
			name:        "delete existing item: ok",
			ownerID:     gofakeit.UUID(),
			setupLines:  2,
			deleteOwn:   true,
			wantDeleted: true,
		},
		{
			name:        "delete non-existing item: not found",
			ownerID:     gofakeit.UUID(),
			setupLines:  1,
			wantDeleted: false,
		},
		{
			name:        "delete from empty cart: not found",
			ownerID:     gofakeit.UUID(),
			wantDeleted: false,
		},
		{
			name:      "delete with empty owner ID: error",
			ownerID:   "",
			wantError: "ownerID is empty",
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			var ids []uuid.UUID
			for range tt.setupLines {
				id, err := suite.repo.AddItem(ctx, tt.ownerID, randomCartLine())
				require.NoError(t, err)
				ids = append(ids, id)
			}

			lineID := uuid.MustParse(gofakeit.UUID())
			if tt.deleteOwn {
				lineID = ids[0]
			}

			deleted, err := suite.repo.DeleteItem(ctx, tt.ownerID, lineID)
			if tt.wantError != "" {
				require.EqualError(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantDeleted, deleted)

			cart, err := suite.repo.GetCart(ctx, tt.ownerID)
			require.NoError(t, err)
			if tt.wantDeleted {
				assert.Len(t, cart.Lines, tt.setupLines-1)
			} else {
				assert.Len(t, cart.Lines, tt.setupLines)
			}
		})
	}
}

func (suite *cartRepositorySuite) TestGetCart() {
	defer suite.deleteAll()

	tests := []struct {
		name       string
		ownerID    string
		setupLines []domain.CartLine
		wantError  string
	}{
		{
			name:       "get cart with items: ok",
			ownerID:    gofakeit.UUID(),
			setupLines: []domain.CartLine{randomCartLine(), randomCartLine()},
		},
		{
			name:    "get empty cart: ok",
			ownerID: gofakeit.UUID(),
		},
		{
			name:      "get cart with empty owner ID: error",
			ownerID:   "",
			wantError: "ownerID is empty",
		},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			t := suite.T()
			ctx := t.Context()

			var ids []string
			for _, line := range tt.setupLines {
				id, err := suite.repo.AddItem(ctx, tt.ownerID, line)
				require.NoError(t, err)
				ids = append(ids, id.String())
			}

			cart, err := suite.repo.GetCart(ctx, tt.ownerID)
			if tt.wantError != "" {
				require.EqualError(t, err, tt.wantError)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.ownerID, cart.OwnerID)
			require.Len(t, cart.Lines, len(tt.setupLines))

			// lines come back in insertion order
			for i, line := range cart.Lines {
				assert.Equal(t, ids[i], line.ID)
				assert.Equal(t, tt.setupLines[i].Quantity, line.Quantity)
			}
		})
	}
}

func (suite *cartRepositorySuite) TestClearCart() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()

	ownerID := gofakeit.UUID()
	otherOwnerID := gofakeit.UUID()

	for range 3 {
		_, err := suite.repo.AddItem(ctx, ownerID, randomCartLine())
		require.NoError(t, err)
	}
	_, err := suite.repo.AddItem(ctx, otherOwnerID, randomCartLine())
	require.NoError(t, err)

	cleared, err := suite.repo.ClearCart(ctx, ownerID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cleared)

	cleared, err = suite.repo.ClearCart(ctx, ownerID)
	require.NoError(t, err)
	assert.Zero(t, cleared)

	other, err := suite.repo.GetCart(ctx, otherOwnerID)
	require.NoError(t, err)
	assert.Len(t, other.Lines, 1)

	_, err = suite.repo.ClearCart(ctx, "")
	assert.EqualError(t, err, "ownerID is empty")
}

func (suite *cartRepositorySuite) TestWithTxRollback() {
	defer suite.deleteAll()

	t := suite.T()
	ctx := t.Context()
	ownerID := gofakeit.UUID()

	tx, err := suite.pool.Begin(ctx)
	require.NoError(t, err)

	txRepo := repository.NewCartWithTx(tx)
	_, err = txRepo.AddItem(ctx, ownerID, randomCartLine())
	require.NoError(t, err)

	inTx, err := txRepo.GetCart(ctx, ownerID)
	require.NoError(t, err)
	assert.Len(t, inTx.Lines, 1)

	require.NoError(t, tx.Rollback(ctx))

	cart, err := suite.repo.GetCart(ctx, ownerID)
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)
}

func (suite *cartRepositorySuite) deleteAll() {
	_, err := suite.pool.Exec(suite.T().Context(), "TRUNCATE TABLE cart_items CASCADE")
	suite.NoError(err)
}

func randomCartLine() domain.CartLine {
	return domain.CartLine{
		Quantity: gofakeit.IntRange(1, 5),
		Price:    domain.RawPrice(gofakeit.Numerify("#.##")),
		Embedded: &domain.ProductRef{Name: gofakeit.Dessert()},
	}
}

func ptr[T any](v T) *T {
	return &v
}

func assertCartLine(t *testing.T, expected, actual domain.CartLine) {
	t.Helper()

	opts := cmp.Options{
		cmpopts.IgnoreFields(domain.CartLine{}, "CreatedAt"),
	}

	diff := cmp.Diff(expected, actual, opts)
	assert.Empty(t, diff)

	assert.False(t, actual.CreatedAt.IsZero())
}
