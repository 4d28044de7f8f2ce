package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	fakeValue "github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nastyazhadan/perp-trader/shared/errors/storage"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

func newOrder(hash string, createdAt time.Time) models.Order {
	order := models.NewOrder(models.OrderParams{
		Symbol:   "SUI-PERP",
		Side:     models.SideBuy,
		Type:     models.OrderTypeLimit,
		Quantity: decimal.NewFromInt(int64(fakeValue.IntRange(1, 100))),
		Price:    decimal.NewFromInt(100),
		Leverage: 5,
	})
	order.Hash = hash
	order.Status = models.OrderStatusCreated
	order.CreatedAt = createdAt
	return order
}

func TestOrderStore(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore()
	now := time.Now()

	require.NoError(t, store.SaveOrder(ctx, newOrder("0x2", now.Add(time.Second))))
	require.NoError(t, store.SaveOrder(ctx, newOrder("0x1", now)))

	err := store.SaveOrder(ctx, newOrder("0x1", now))
	assert.ErrorIs(t, err, storage.ErrOrderAlreadyExists)

	err = store.SaveOrder(ctx, models.Order{})
	assert.ErrorIs(t, err, storage.ErrOrderHashMissing)

	_, err = store.GetOrder(ctx, "0x3")
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)

	orders, err := store.ListOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "0x1", orders[0].Hash)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = store.GetOrder(cancelled, "0x1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUpdateOrder(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore()
	require.NoError(t, store.SaveOrder(ctx, newOrder("0x1", time.Now())))

	failure := errors.New("rejected")
	_, err := store.UpdateOrder(ctx, "0x1", func(order *models.Order) error {
		order.Price = decimal.Zero
		return failure
	})
	assert.ErrorIs(t, err, failure)

	stored, err := store.GetOrder(ctx, "0x1")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(stored.Price))

	_, err = store.UpdateOrder(ctx, "0x9", func(*models.Order) error { return nil })
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
}

func TestUpdateOrderIsAtomicPerKey(t *testing.T) {
	ctx := context.Background()
	store := NewOrderStore()
	require.NoError(t, store.SaveOrder(ctx, newOrder("0x1", time.Now())))

	const writers = 50
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			_, err := store.UpdateOrder(ctx, "0x1", func(order *models.Order) error {
				order.Settlement.RequeueCount++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := store.GetOrder(ctx, "0x1")
	require.NoError(t, err)
	assert.Equal(t, writers, stored.Settlement.RequeueCount)
}
