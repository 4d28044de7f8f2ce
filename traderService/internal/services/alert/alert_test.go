package alert

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/mocks"
)

var testDefaults = Defaults{
	PositionSize: decimal.RequireFromString("0.05"),
	Leverage:     5,
	StopLoss:     decimal.RequireFromString("0.15"),
	TakeProfit:   decimal.RequireFromString("0.3"),
}

func TestParse(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		expectedFormat string
		expectedErr    error
		check          func(t *testing.T, alert models.Alert)
	}{
		{
			name:           "индикатор с USD-парой",
			body:           `{"indicator":"vmanchu_cipher_b","symbol":"SUI/USD","action":"BUY","signal_type":"GREEN_CIRCLE"}`,
			expectedFormat: FormatIndicator,
			check: func(t *testing.T, alert models.Alert) {
				assert.Equal(t, "SUI-PERP", alert.Symbol)
				assert.Equal(t, models.SideBuy, alert.Side)
				assert.Equal(t, models.SignalGreenCircle, alert.SignalType)
				assert.Equal(t, "5m", alert.Timeframe)
				assert.Nil(t, alert.PositionSize)
			},
		},
		{
			name:           "индикатор без символа",
			body:           `{"indicator":"vmanchu_cipher_b","action":"SELL","signal_type":"RED_CIRCLE","timeframe":"15m"}`,
			expectedFormat: FormatIndicator,
			check: func(t *testing.T, alert models.Alert) {
				assert.Equal(t, "SUI-PERP", alert.Symbol)
				assert.Equal(t, models.SideSell, alert.Side)
				assert.Equal(t, "15m", alert.Timeframe)
			},
		},
		{
			name:           "неизвестный сигнал",
			body:           `{"indicator":"vmanchu_cipher_b","symbol":"SUI/USD","action":"BUY","signal_type":"BULL_FLAG"}`,
			expectedFormat: FormatIndicator,
			expectedErr:    serviceErrors.ErrInvalidAlert,
		},
		{
			name:           "неизвестное действие",
			body:           `{"indicator":"vmanchu_cipher_b","action":"HOLD","signal_type":"GOLD_CIRCLE"}`,
			expectedFormat: FormatIndicator,
			expectedErr:    serviceErrors.ErrInvalidAlert,
		},
		{
			name:           "прямой формат",
			body:           `{"symbol":"ETH","type":"sell","position_size":0.02,"leverage":3,"stop_loss":"0.1"}`,
			expectedFormat: FormatDirect,
			check: func(t *testing.T, alert models.Alert) {
				assert.Equal(t, "ETH-PERP", alert.Symbol)
				assert.Equal(t, models.SideSell, alert.Side)
				require.NotNil(t, alert.PositionSize)
				assert.True(t, decimal.RequireFromString("0.02").Equal(*alert.PositionSize))
				require.NotNil(t, alert.Leverage)
				assert.Equal(t, 3, *alert.Leverage)
				assert.Nil(t, alert.TakeProfit)
			},
		},
		{
			name:           "прямой формат с неверной стороной",
			body:           `{"symbol":"ETH-PERP","type":"hold"}`,
			expectedFormat: FormatDirect,
			expectedErr:    serviceErrors.ErrInvalidAlert,
		},
		{
			name:           "отрицательное плечо",
			body:           `{"symbol":"ETH-PERP","type":"buy","leverage":-1}`,
			expectedFormat: FormatDirect,
			expectedErr:    serviceErrors.ErrInvalidAlert,
		},
		{
			name:           "неизвестный формат",
			body:           `{"indicator":"rsi","action":"BUY"}`,
			expectedFormat: FormatUnknown,
			expectedErr:    serviceErrors.ErrInvalidAlert,
		},
		{
			name:           "не JSON",
			body:           `buy sui`,
			expectedFormat: FormatUnknown,
			expectedErr:    serviceErrors.ErrInvalidAlert,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert, format, err := Parse([]byte(tt.body))
			assert.Equal(t, tt.expectedFormat, format)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, alert)
		})
	}
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "SUI-PERP", NormalizeSymbol("SUI/USD"))
	assert.Equal(t, "BTC-PERP", NormalizeSymbol("btc/usdt"))
	assert.Equal(t, "ETH-PERP", NormalizeSymbol("ETH"))
	assert.Equal(t, "ETH-PERP", NormalizeSymbol("ETH-PERP"))
}

func TestRequest(t *testing.T) {
	queue := NewQueue(nil, testDefaults, 1, 0, nil)

	request := queue.Request(models.Alert{Symbol: "SUI-PERP", Side: models.SideBuy})
	require.NotNil(t, request.RiskPercentage)
	assert.True(t, testDefaults.PositionSize.Equal(*request.RiskPercentage))
	assert.True(t, testDefaults.StopLoss.Equal(*request.StopLossPercentage))
	assert.True(t, testDefaults.TakeProfit.Equal(*request.TakeProfitPercentage))
	require.NotNil(t, request.Leverage)
	assert.Equal(t, 5, *request.Leverage)
	assert.Nil(t, request.PositionSize)

	leverage := 2
	size := decimal.RequireFromString("0.01")
	request = queue.Request(models.Alert{Symbol: "SUI-PERP", Side: models.SideSell, Leverage: &leverage, PositionSize: &size})
	assert.Equal(t, 2, *request.Leverage)
	assert.True(t, size.Equal(*request.RiskPercentage))
}

func TestQueueFull(t *testing.T) {
	queue := NewQueue(nil, testDefaults, 1, 0, nil)
	ctx := context.Background()
	body := []byte(`{"symbol":"SUI","type":"buy"}`)

	_, err := queue.Submit(ctx, body)
	require.NoError(t, err)

	_, err = queue.Submit(ctx, body)
	assert.ErrorIs(t, err, serviceErrors.ErrAlertQueueFull)
}

func TestQueueRun(t *testing.T) {
	trader := new(mocks.MockTrader)
	var executed atomic.Int32

	trader.On("ExecuteTrade", mock.Anything, mock.MatchedBy(func(request models.TradeRequest) bool {
		return request.Symbol == "SUI-PERP" && request.Side == models.SideBuy
	})).Return(models.TradeResult{}, serviceErrors.ErrLeverageNotEnsured).Once().
		Run(func(mock.Arguments) { executed.Add(1) })
	trader.On("ExecuteTrade", mock.Anything, mock.MatchedBy(func(request models.TradeRequest) bool {
		return request.Symbol == "ETH-PERP"
	})).Return(models.TradeResult{Order: models.Order{Hash: "0x1"}}, nil).Once().
		Run(func(mock.Arguments) { executed.Add(1) })

	queue := NewQueue(trader, testDefaults, 4, time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- queue.Run(ctx) }()

	_, err := queue.Submit(ctx, []byte(`{"indicator":"vmanchu_cipher_b","symbol":"SUI/USD","action":"BUY","signal_type":"GREEN_CIRCLE"}`))
	require.NoError(t, err)
	_, err = queue.Submit(ctx, []byte(`{"symbol":"ETH/USD","type":"buy"}`))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return executed.Load() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	trader.AssertExpectations(t)
}
