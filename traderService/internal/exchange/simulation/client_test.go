package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange"
)

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func market(symbol string, side models.Side, quantity string) models.OrderParams {
	return models.OrderParams{
		Symbol:   symbol,
		Side:     side,
		Type:     models.OrderTypeMarket,
		Quantity: dec(quantity),
		Leverage: 5,
	}
}

func TestCapabilities(t *testing.T) {
	capabilities := exchange.Resolve(New(dec("10000")))

	assert.Equal(t, exchange.FlowDirect, capabilities.Flow)
	assert.NotNil(t, capabilities.Closer)
	assert.NotNil(t, capabilities.Canceller)
	assert.NotNil(t, capabilities.History)
	assert.NotNil(t, capabilities.Events)
}

func TestPricesAndLeverage(t *testing.T) {
	ctx := context.Background()
	client := New(dec("10000"))

	price, err := client.GetMarketPrice(ctx, "BTC-PERP")
	require.NoError(t, err)
	assert.True(t, dec("50000").Equal(price))

	price, err = client.GetMarketPrice(ctx, "DOGE-PERP")
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(price))

	book, err := client.GetOrderbook(ctx, "ETH-PERP")
	require.NoError(t, err)
	mid, ok := book.Mid()
	require.True(t, ok)
	assert.True(t, dec("3000").Equal(mid))

	leverage, err := client.GetUserLeverage(ctx, "ETH-PERP")
	require.NoError(t, err)
	assert.Equal(t, 1, leverage)

	result, err := client.SetLeverage(ctx, "ETH-PERP", 7)
	require.NoError(t, err)
	assert.True(t, result.Success)

	leverage, err = client.GetUserLeverage(ctx, "ETH-PERP")
	require.NoError(t, err)
	assert.Equal(t, 7, leverage)
}

func TestPositionBook(t *testing.T) {
	ctx := context.Background()

	t.Run("усреднение входа на той же стороне", func(t *testing.T) {
		client := New(dec("10000"))
		client.SetPrice("SOL-PERP", dec("100"))
		_, err := client.PlaceOrder(ctx, market("SOL-PERP", models.SideBuy, "1"))
		require.NoError(t, err)

		client.SetPrice("SOL-PERP", dec("110"))
		_, err = client.PlaceOrder(ctx, market("SOL-PERP", models.SideBuy, "1"))
		require.NoError(t, err)

		positions, err := client.GetPositions(ctx)
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.Equal(t, models.PositionLong, positions[0].Side)
		assert.True(t, dec("2").Equal(positions[0].Quantity))
		assert.True(t, dec("105").Equal(positions[0].EntryPrice))
	})

	t.Run("разворот крупным встречным ордером", func(t *testing.T) {
		client := New(dec("10000"))
		client.SetPrice("SOL-PERP", dec("100"))
		_, err := client.PlaceOrder(ctx, market("SOL-PERP", models.SideBuy, "1"))
		require.NoError(t, err)

		client.SetPrice("SOL-PERP", dec("120"))
		_, err = client.PlaceOrder(ctx, market("SOL-PERP", models.SideSell, "2"))
		require.NoError(t, err)

		positions, err := client.GetPositions(ctx)
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.Equal(t, models.PositionShort, positions[0].Side)
		assert.True(t, dec("1").Equal(positions[0].Quantity))
		assert.True(t, dec("120").Equal(positions[0].EntryPrice))

		balance, err := client.GetMarginBankBalance(ctx)
		require.NoError(t, err)
		assert.True(t, dec("10020").Equal(balance))
	})

	t.Run("reduce-only не открывает и не разворачивает", func(t *testing.T) {
		client := New(dec("10000"))
		params := market("SOL-PERP", models.SideSell, "1")
		params.ReduceOnly = true

		_, err := client.PlaceOrder(ctx, params)
		assert.ErrorIs(t, err, exchangeErrors.ErrRejected)

		_, err = client.PlaceOrder(ctx, market("SOL-PERP", models.SideBuy, "1"))
		require.NoError(t, err)

		params.Quantity = dec("3")
		ack, err := client.PlaceOrder(ctx, params)
		require.NoError(t, err)
		assert.True(t, dec("1").Equal(ack.Quantity))

		positions, err := client.GetPositions(ctx)
		require.NoError(t, err)
		assert.Empty(t, positions)
	})

	t.Run("закрытие позиции", func(t *testing.T) {
		client := New(dec("10000"))
		_, err := client.PlaceOrder(ctx, market("ETH-PERP", models.SideSell, "2"))
		require.NoError(t, err)

		half := dec("1")
		ack, err := client.ClosePosition(ctx, "ETH-PERP", &half)
		require.NoError(t, err)
		assert.Equal(t, models.SideBuy, ack.Side)

		positions, err := client.GetPositions(ctx)
		require.NoError(t, err)
		require.Len(t, positions, 1)
		assert.True(t, dec("1").Equal(positions[0].Quantity))

		_, err = client.ClosePosition(ctx, "BTC-PERP", nil)
		assert.ErrorIs(t, err, exchangeErrors.ErrRejected)
	})
}

func TestEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := New(dec("10000"))

	events, err := client.Subscribe(ctx)
	require.NoError(t, err)

	ack, err := client.PlaceOrder(ctx, market("BTC-PERP", models.SideBuy, "0.01"))
	require.NoError(t, err)

	event := <-events
	assert.Equal(t, models.EventOrderSettlement, event.Kind)
	assert.Equal(t, ack.Hash, event.OrderHash)
	assert.True(t, dec("50000").Equal(event.AvgFillPrice))

	limit := market("BTC-PERP", models.SideBuy, "0.01")
	limit.Type = models.OrderTypeLimit
	limit.Price = dec("49000")
	resting, err := client.PlaceOrder(ctx, limit)
	require.NoError(t, err)

	require.NoError(t, client.Requeue(ctx, resting.Hash))
	assert.Equal(t, models.EventOrderRequeue, (<-events).Kind)

	require.NoError(t, client.CancelOrder(ctx, "BTC-PERP", resting.Hash))
	assert.Equal(t, models.EventOrderCancelledReversion, (<-events).Kind)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-events:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestTradeHistory(t *testing.T) {
	ctx := context.Background()
	client := New(dec("10000"))

	for i := 0; i < 60; i++ {
		side := models.SideBuy
		if i%2 == 1 {
			side = models.SideSell
		}
		_, err := client.PlaceOrder(ctx, market("SUI-PERP", side, "1"))
		require.NoError(t, err)
	}
	_, err := client.PlaceOrder(ctx, market("ETH-PERP", models.SideBuy, "1"))
	require.NoError(t, err)

	page, err := client.GetUserTradesHistory(ctx, models.TradeFilter{Symbol: "SUI-PERP", PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, page, 50)

	page, err = client.GetUserTradesHistory(ctx, models.TradeFilter{Symbol: "SUI-PERP", Page: 2})
	require.NoError(t, err)
	assert.Len(t, page, 10)

	page, err = client.GetUserTradesHistory(ctx, models.TradeFilter{Side: models.SideSell, PageSize: 50})
	require.NoError(t, err)
	assert.Len(t, page, 30)

	page, err = client.GetUserTradesHistory(ctx, models.TradeFilter{Page: 10})
	require.NoError(t, err)
	assert.Empty(t, page)

	latest, err := client.GetUserTradesHistory(ctx, models.TradeFilter{PageSize: 1})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "ETH-PERP", latest[0].Symbol)
}
