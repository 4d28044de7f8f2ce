package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	repositoryErrors "github.com/nastyazhadan/perp-trader/shared/errors/repository"
	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/mocks"
	"github.com/nastyazhadan/perp-trader/traderService/internal/storage/memory"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func createdOrder(t *testing.T, hash string, side models.Side, price string) models.Order {
	t.Helper()

	order := models.NewOrder(models.OrderParams{
		Symbol:   "SUI-PERP",
		Side:     side,
		Type:     models.OrderTypeLimit,
		Quantity: dec("10"),
		Price:    dec(price),
		Leverage: 5,
	})
	require.NoError(t, order.MarkCreated(hash, time.Now()))
	return order
}

type eventCounter struct {
	outcomes map[string]int
	adjusted int
}

func (c *eventCounter) SettlementEvent(kind, outcome string) {
	if c.outcomes == nil {
		c.outcomes = make(map[string]int)
	}
	c.outcomes[outcome]++
}

func (c *eventCounter) PriceAdjusted() {
	c.adjusted++
}

func TestServiceWriteThrough(t *testing.T) {
	ctx := context.Background()
	mirror := new(mocks.MockOrderMirror)
	publisher := new(mocks.MockOrderPublisher)
	service := NewService(memory.NewOrderStore(), mirror, publisher)

	order := createdOrder(t, "0x1", models.SideBuy, "100")

	mirror.On("UpsertOrder", mock.Anything, order).Return(errors.New("db down")).Once()
	publisher.On("PublishOrder", mock.Anything, TransitionCreated, order).Return(nil).Once()
	require.NoError(t, service.Register(ctx, order))

	mirror.On("UpsertOrder", mock.Anything, mock.AnythingOfType("models.Order")).Return(nil).Once()
	publisher.On("PublishOrder", mock.Anything, string(models.EventOrderCancelledReversion), mock.MatchedBy(func(o models.Order) bool {
		return o.Settlement.Cancelled
	})).Return(nil).Once()

	updated, err := service.Update(ctx, "0x1", string(models.EventOrderCancelledReversion), func(o *models.Order) error {
		return o.ApplyCancel()
	})
	require.NoError(t, err)
	assert.Equal(t, models.StateCancelled, updated.State())

	_, err = service.Update(ctx, "0x1", string(models.EventOrderSettlement), func(o *models.Order) error {
		return o.ApplySettlement(dec("100"), dec("1"), false)
	})
	assert.ErrorIs(t, err, serviceErrors.ErrIllegalTransition)

	mirror.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestServiceGet(t *testing.T) {
	ctx := context.Background()
	mirror := new(mocks.MockOrderMirror)
	service := NewService(memory.NewOrderStore(), mirror, nil)

	archived := createdOrder(t, "0xold", models.SideSell, "2")
	mirror.On("GetOrder", mock.Anything, "0xold").Return(archived, nil).Once()
	mirror.On("GetOrder", mock.Anything, "0xnone").Return(models.Order{}, repositoryErrors.ErrOrderNotFound).Once()

	found, err := service.Get(ctx, "0xold")
	require.NoError(t, err)
	assert.Equal(t, "0xold", found.Hash)

	_, err = service.Get(ctx, "0xnone")
	assert.ErrorIs(t, err, serviceErrors.ErrOrderNotFound)

	_, err = NewService(memory.NewOrderStore(), nil, nil).Get(ctx, "0xnone")
	assert.ErrorIs(t, err, serviceErrors.ErrOrderNotFound)

	mirror.AssertExpectations(t)
}

func TestServiceCancel(t *testing.T) {
	ctx := context.Background()
	publisher := new(mocks.MockOrderPublisher)
	service := NewService(memory.NewOrderStore(), nil, publisher)

	publisher.On("PublishOrder", mock.Anything, TransitionCreated, mock.Anything).Return(nil)
	publisher.On("PublishOrder", mock.Anything, TransitionCancelled, mock.Anything).Return(nil).Twice()

	require.NoError(t, service.Register(ctx, createdOrder(t, "0xopen", models.SideBuy, "100")))

	cancelled, err := service.Cancel(ctx, "0xopen")
	require.NoError(t, err)
	assert.Equal(t, models.StateCancelled, cancelled.State())

	_, err = service.Cancel(ctx, "0xopen")
	assert.NoError(t, err)

	filled := createdOrder(t, "0xfilled", models.SideBuy, "100")
	require.NoError(t, filled.ApplySettlement(dec("100"), dec("10"), false))
	require.NoError(t, service.Register(ctx, filled))

	_, err = service.Cancel(ctx, "0xfilled")
	assert.ErrorIs(t, err, serviceErrors.ErrIllegalTransition)

	_, err = service.Cancel(ctx, "0xnone")
	assert.ErrorIs(t, err, serviceErrors.ErrOrderNotFound)

	publisher.AssertExpectations(t)
}

func TestSettlementHandler(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, orders ...models.Order) (*Service, *SettlementHandler, *eventCounter) {
		service := NewService(memory.NewOrderStore(), nil, nil)
		for _, order := range orders {
			require.NoError(t, service.Register(ctx, order))
		}
		counter := &eventCounter{}
		return service, NewSettlementHandler(service, counter), counter
	}

	t.Run("частичные исполнения перезаписывают данные", func(t *testing.T) {
		service, handler, _ := setup(t, createdOrder(t, "0x1", models.SideBuy, "100"))

		handler.Handle(ctx, models.OrderEvent{Kind: models.EventOrderSettlement, OrderHash: "0x1",
			Quantity: dec("4"), AvgFillPrice: dec("99.5"), IsMaker: true})
		handler.Handle(ctx, models.OrderEvent{Kind: models.EventOrderSettlement, OrderHash: "0x1",
			Quantity: dec("6"), AvgFillPrice: dec("100.5")})

		order, err := service.Get(ctx, "0x1")
		require.NoError(t, err)
		assert.Equal(t, models.StateSettled, order.State())
		assert.True(t, dec("6").Equal(order.Settlement.MatchedQuantity))
		assert.True(t, dec("100.5").Equal(order.Settlement.FillPrice))
		assert.False(t, order.Settlement.IsMaker)
	})

	t.Run("количество из matchedOrders", func(t *testing.T) {
		service, handler, _ := setup(t, createdOrder(t, "0x1", models.SideBuy, "100"))

		handler.Handle(ctx, models.OrderEvent{Kind: models.EventOrderSettlement, OrderHash: "0x1",
			AvgFillPrice: dec("100"),
			MatchedOrders: []models.MatchedOrder{
				{FillPrice: dec("100"), Quantity: dec("2")},
				{FillPrice: dec("100"), Quantity: dec("3")},
			}})

		order, err := service.Get(ctx, "0x1")
		require.NoError(t, err)
		assert.True(t, dec("5").Equal(order.Settlement.MatchedQuantity))
	})

	t.Run("три перестановки сдвигают цену", func(t *testing.T) {
		service, handler, counter := setup(t, createdOrder(t, "0x1", models.SideBuy, "100"))

		for i := 0; i < 3; i++ {
			handler.Handle(ctx, models.OrderEvent{Kind: models.EventOrderRequeue, OrderHash: "0x1"})
		}

		order, err := service.Get(ctx, "0x1")
		require.NoError(t, err)
		assert.Equal(t, 3, order.Settlement.RequeueCount)
		assert.True(t, dec("101").Equal(order.Price), "got %s", order.Price)
		assert.Equal(t, 1, counter.adjusted)
	})

	t.Run("отмена меняет только флаг", func(t *testing.T) {
		original := createdOrder(t, "0x1", models.SideSell, "2.5")
		service, handler, _ := setup(t, original)

		handler.Handle(ctx, models.OrderEvent{Kind: models.EventOrderCancelledReversion, OrderHash: "0x1"})

		order, err := service.Get(ctx, "0x1")
		require.NoError(t, err)
		expected := original
		expected.Settlement.Cancelled = true
		assert.Equal(t, expected, order)
	})

	t.Run("неизвестный хеш не создаёт запись", func(t *testing.T) {
		service, handler, counter := setup(t)

		assert.NotPanics(t, func() {
			handler.Handle(ctx, models.OrderEvent{Kind: models.EventOrderSettlement, OrderHash: "0xghost",
				Quantity: dec("1"), AvgFillPrice: dec("1")})
		})

		_, err := service.Get(ctx, "0xghost")
		assert.ErrorIs(t, err, serviceErrors.ErrOrderNotFound)
		orders, err := service.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, orders)
		assert.Equal(t, 1, counter.outcomes[outcomeUnknown])
	})

	t.Run("недопустимый переход отклоняется", func(t *testing.T) {
		service, handler, counter := setup(t, createdOrder(t, "0x1", models.SideBuy, "100"))

		handler.Handle(ctx, models.OrderEvent{Kind: models.EventOrderSettlement, OrderHash: "0x1",
			Quantity: dec("1"), AvgFillPrice: dec("100")})
		handler.Handle(ctx, models.OrderEvent{Kind: models.EventOrderCancelledReversion, OrderHash: "0x1"})

		order, err := service.Get(ctx, "0x1")
		require.NoError(t, err)
		assert.False(t, order.Settlement.Cancelled)
		assert.Equal(t, 1, counter.outcomes[outcomeIllegal])
	})
}

func TestSettlementHandlerReplaysEarlyEvents(t *testing.T) {
	ctx := context.Background()
	service := NewService(memory.NewOrderStore(), nil, nil)
	handler := NewSettlementHandler(service, nil)

	handler.Handle(ctx, models.OrderEvent{Kind: models.EventOrderSettlement, OrderHash: "0x1",
		Quantity: dec("10"), AvgFillPrice: dec("99")})

	require.NoError(t, service.Register(ctx, createdOrder(t, "0x1", models.SideBuy, "100")))

	handler.Handle(ctx, models.OrderEvent{Kind: models.EventOrderCancelledReversion, OrderHash: "0x1"})

	order, err := service.Get(ctx, "0x1")
	require.NoError(t, err)
	assert.Equal(t, models.StateSettled, order.State())
	assert.False(t, order.Settlement.Cancelled)
	assert.Empty(t, handler.orphans)
}

func TestSettlementHandlerRun(t *testing.T) {
	service := NewService(memory.NewOrderStore(), nil, nil)
	handler := NewSettlementHandler(service, nil)

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan models.OrderEvent, 4)
	done := make(chan error, 1)
	go func() {
		done <- handler.Run(ctx, events)
	}()

	require.Eventually(t, handler.Ready, time.Second, 5*time.Millisecond)

	events <- models.OrderEvent{Kind: models.EventOrderSettlement, OrderHash: "0x1", Quantity: dec("10"), AvgFillPrice: dec("1.5")}
	require.NoError(t, service.Register(context.Background(), createdOrder(t, "0x1", models.SideBuy, "1.5")))

	require.Eventually(t, func() bool {
		order, err := service.Get(context.Background(), "0x1")
		return err == nil && order.State() == models.StateSettled
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, handler.Ready())
}
