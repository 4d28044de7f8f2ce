package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
)

func createdOrder(t *testing.T, side Side, price string) Order {
	t.Helper()

	order := NewOrder(OrderParams{
		Symbol:   "BTC-PERP",
		Side:     side,
		Type:     OrderTypeLimit,
		Quantity: decimal.RequireFromString("0.5"),
		Price:    decimal.RequireFromString(price),
		Leverage: 5,
	})
	require.NoError(t, order.MarkCreated("0xabc", time.Unix(1700000000, 0)))

	return order
}

func TestOrderState(t *testing.T) {
	order := NewOrder(OrderParams{Symbol: "ETH-PERP", Side: SideBuy})
	assert.Equal(t, StatePendingSubmit, order.State())

	require.NoError(t, order.MarkCreated("0x1", time.Now()))
	assert.Equal(t, StateCreated, order.State())
	assert.Equal(t, OrderStatusCreated, order.Status)

	_, err := order.ApplyRequeue(2, decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	assert.Equal(t, StateRequeued, order.State())

	require.NoError(t, order.ApplySettlement(decimal.NewFromInt(10), decimal.NewFromInt(1), true))
	assert.Equal(t, StateSettled, order.State())
}

func TestMarkCreated(t *testing.T) {
	order := NewOrder(OrderParams{Symbol: "ETH-PERP", Side: SideBuy})

	err := order.MarkCreated("", time.Now())
	assert.ErrorIs(t, err, serviceErrors.ErrIllegalTransition)

	require.NoError(t, order.MarkCreated("0x1", time.Now()))
	err = order.MarkCreated("0x2", time.Now())
	assert.ErrorIs(t, err, serviceErrors.ErrIllegalTransition)
	assert.Equal(t, "0x1", order.Hash)
}

func TestApplyRequeue(t *testing.T) {
	adjustment := decimal.RequireFromString("0.01")

	tests := []struct {
		name          string
		side          Side
		events        int
		expectedPrice string
		lastAdjusted  bool
	}{
		{name: "до порога цена не меняется", side: SideBuy, events: 2, expectedPrice: "100", lastAdjusted: false},
		{name: "покупка дорожает после третьей перестановки", side: SideBuy, events: 3, expectedPrice: "101", lastAdjusted: true},
		{name: "продажа дешевеет после третьей перестановки", side: SideSell, events: 3, expectedPrice: "99", lastAdjusted: true},
		{name: "сдвиги накапливаются", side: SideBuy, events: 4, expectedPrice: "102.01", lastAdjusted: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			order := createdOrder(t, test.side, "100")

			var adjusted bool
			for i := 0; i < test.events; i++ {
				var err error
				adjusted, err = order.ApplyRequeue(2, adjustment)
				require.NoError(t, err)
			}

			assert.Equal(t, test.events, order.Settlement.RequeueCount)
			assert.True(t, decimal.RequireFromString(test.expectedPrice).Equal(order.Price),
				"price %s", order.Price)
			assert.Equal(t, test.lastAdjusted, adjusted)
		})
	}
}

func TestApplySettlementOverwrites(t *testing.T) {
	order := createdOrder(t, SideBuy, "100")

	require.NoError(t, order.ApplySettlement(decimal.NewFromInt(99), decimal.RequireFromString("0.2"), false))
	require.NoError(t, order.ApplySettlement(decimal.NewFromInt(98), decimal.RequireFromString("0.3"), true))

	assert.Equal(t, SettlementSent, order.Settlement.Status)
	assert.True(t, decimal.NewFromInt(98).Equal(order.Settlement.FillPrice))
	assert.True(t, decimal.RequireFromString("0.3").Equal(order.Settlement.MatchedQuantity))
	assert.True(t, order.Settlement.IsMaker)
}

func TestApplyCancel(t *testing.T) {
	t.Run("меняется только флаг отмены", func(t *testing.T) {
		order := createdOrder(t, SideSell, "100")
		before := order

		require.NoError(t, order.ApplyCancel())

		assert.True(t, order.Settlement.Cancelled)
		order.Settlement.Cancelled = false
		assert.Equal(t, before, order)
	})

	t.Run("отмена после исполнения отклоняется", func(t *testing.T) {
		order := createdOrder(t, SideSell, "100")
		require.NoError(t, order.ApplySettlement(decimal.NewFromInt(100), decimal.NewFromInt(1), false))

		assert.ErrorIs(t, order.ApplyCancel(), serviceErrors.ErrIllegalTransition)
		assert.False(t, order.Settlement.Cancelled)
	})

	t.Run("исполнение после отмены отклоняется", func(t *testing.T) {
		order := createdOrder(t, SideSell, "100")
		require.NoError(t, order.ApplyCancel())

		err := order.ApplySettlement(decimal.NewFromInt(100), decimal.NewFromInt(1), false)
		assert.ErrorIs(t, err, serviceErrors.ErrIllegalTransition)
		assert.Equal(t, StateCancelled, order.State())
	})
}

func TestParse(t *testing.T) {
	side, err := ParseSide(" buy ")
	require.NoError(t, err)
	assert.Equal(t, SideBuy, side)
	assert.Equal(t, SideSell, side.Opposite())

	_, err = ParseSide("hold")
	assert.Error(t, err)

	orderType, err := ParseOrderType("")
	require.NoError(t, err)
	assert.Equal(t, OrderTypeMarket, orderType)

	_, err = ParseOrderType("ICEBERG")
	assert.Error(t, err)
}

func TestHelpers(t *testing.T) {
	assert.InDelta(t, 0.8, NormalizeConfidence(8), 1e-9)
	assert.InDelta(t, 0.75, NormalizeConfidence(0.75), 1e-9)
	assert.InDelta(t, 0, NormalizeConfidence(-1), 1e-9)

	distance := DistancePercentage(decimal.NewFromInt(100), decimal.NewFromInt(95))
	assert.True(t, decimal.RequireFromString("0.05").Equal(distance))
	assert.True(t, DistancePercentage(decimal.Zero, decimal.NewFromInt(1)).IsZero())

	mid, ok := Orderbook{
		Bids: []OrderbookLevel{{Price: decimal.NewFromInt(99)}},
		Asks: []OrderbookLevel{{Price: decimal.NewFromInt(101)}},
	}.Mid()
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(100).Equal(mid))

	_, ok = Orderbook{}.Mid()
	assert.False(t, ok)

	result := TradeResult{
		StopLoss:   LegResult{Kind: LegStopLoss, Requested: true, Order: &Order{}},
		TakeProfit: LegResult{Kind: LegTakeProfit, Requested: false},
	}
	assert.True(t, result.Protected())
	result.TakeProfit = LegResult{Kind: LegTakeProfit, Requested: true, Err: assert.AnError}
	assert.False(t, result.Protected())
}
