//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgContainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	repositoryErrors "github.com/nastyazhadan/perp-trader/shared/errors/repository"
	"github.com/nastyazhadan/perp-trader/shared/infra/db"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/migrations"
)

const (
	dbUser     = "test_user"
	dbPassword = "test_password"
	dbName     = "trader_test_db"

	longTimeout    = 2 * time.Minute
	startupTimeout = 30 * time.Second
)

func newStore(t *testing.T) (context.Context, *OrderStore) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), longTimeout)
	t.Cleanup(cancel)

	container, err := pgContainer.Run(ctx,
		"postgres:17.0-alpine3.20",
		pgContainer.WithDatabase(dbName),
		pgContainer.WithUsername(dbUser),
		pgContainer.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(startupTimeout),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	connection, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := db.SetupDB(ctx, connection, migrations.Migrations)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	applied, err := db.Migrate(ctx, pool, migrations.Migrations)
	require.NoError(t, err)
	assert.Zero(t, applied)

	return ctx, NewOrderStore(pool)
}

func TestOrderStore(t *testing.T) {
	ctx, store := newStore(t)

	order := models.NewOrder(models.OrderParams{
		Symbol:   "BTC-PERP",
		Side:     models.SideBuy,
		Type:     models.OrderTypeLimit,
		Quantity: decimal.RequireFromString("0.125"),
		Price:    decimal.RequireFromString("64000.5"),
		Leverage: 5,
	})
	require.NoError(t, order.MarkCreated("0xabc", time.Now().UTC().Truncate(time.Microsecond)))

	require.NoError(t, store.UpsertOrder(ctx, order))

	stored, err := store.GetOrder(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, models.StateCreated, stored.State())
	assert.True(t, order.Quantity.Equal(stored.Quantity))
	assert.True(t, order.Price.Equal(stored.Price))
	assert.True(t, order.CreatedAt.Equal(stored.CreatedAt))

	require.NoError(t, order.ApplySettlement(decimal.RequireFromString("64001"), decimal.RequireFromString("0.1"), true))
	require.NoError(t, store.UpsertOrder(ctx, order))

	stored, err = store.GetOrder(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, models.StateSettled, stored.State())
	assert.True(t, decimal.RequireFromString("0.1").Equal(stored.Settlement.MatchedQuantity))
	assert.True(t, stored.Settlement.IsMaker)

	_, err = store.GetOrder(ctx, "0xmissing")
	assert.ErrorIs(t, err, repositoryErrors.ErrOrderNotFound)

	assert.NoError(t, store.Ping(ctx))
}
