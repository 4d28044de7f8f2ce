package leverage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/retry"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/mocks"
)

var fastRetry = retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, MaxElapsed: time.Second}

func TestEnsureLeverage(t *testing.T) {
	transient := fmt.Errorf("read: %w", exchangeErrors.ErrTransient)

	tests := []struct {
		name       string
		target     int
		setupMocks func(client *mocks.MockExchangeClient)
		expected   bool
	}{
		{
			name:   "плечо уже установлено",
			target: 5,
			setupMocks: func(client *mocks.MockExchangeClient) {
				client.On("GetUserLeverage", mock.Anything, "SUI-PERP").Return(5, nil).Once()
			},
			expected: true,
		},
		{
			name:   "плечо изменено",
			target: 5,
			setupMocks: func(client *mocks.MockExchangeClient) {
				client.On("GetUserLeverage", mock.Anything, "SUI-PERP").Return(1, nil).Once()
				client.On("SetLeverage", mock.Anything, "SUI-PERP", 5).
					Return(exchange.LeverageResult{Success: true, Leverage: 5}, nil).Once()
			},
			expected: true,
		},
		{
			name:   "нет флага успеха",
			target: 5,
			setupMocks: func(client *mocks.MockExchangeClient) {
				client.On("GetUserLeverage", mock.Anything, "SUI-PERP").Return(1, nil).Once()
				client.On("SetLeverage", mock.Anything, "SUI-PERP", 5).
					Return(exchange.LeverageResult{Leverage: 5}, nil).Once()
			},
			expected: false,
		},
		{
			name:   "временная ошибка чтения повторяется",
			target: 3,
			setupMocks: func(client *mocks.MockExchangeClient) {
				client.On("GetUserLeverage", mock.Anything, "SUI-PERP").Return(0, transient).Once()
				client.On("GetUserLeverage", mock.Anything, "SUI-PERP").Return(3, nil).Once()
			},
			expected: true,
		},
		{
			name:   "отказ биржи не повторяется",
			target: 3,
			setupMocks: func(client *mocks.MockExchangeClient) {
				client.On("GetUserLeverage", mock.Anything, "SUI-PERP").Return(1, nil).Once()
				client.On("SetLeverage", mock.Anything, "SUI-PERP", 3).
					Return(exchange.LeverageResult{}, exchangeErrors.ErrRejected).Once()
			},
			expected: false,
		},
		{
			name:       "неположительное плечо",
			target:     0,
			setupMocks: func(client *mocks.MockExchangeClient) {},
			expected:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mocks.MockExchangeClient)
			tt.setupMocks(client)

			guard := NewGuard(client, fastRetry, nil)
			assert.Equal(t, tt.expected, guard.EnsureLeverage(context.Background(), "SUI-PERP", tt.target))

			client.AssertExpectations(t)
		})
	}
}

func TestEnsureLeverageIsIdempotent(t *testing.T) {
	client := new(mocks.MockExchangeClient)
	client.On("GetUserLeverage", mock.Anything, "BTC-PERP").Return(1, nil).Once()
	client.On("SetLeverage", mock.Anything, "BTC-PERP", 10).
		Return(exchange.LeverageResult{Success: true, Leverage: 10}, nil).Once()
	client.On("GetUserLeverage", mock.Anything, "BTC-PERP").Return(10, nil).Once()

	guard := NewGuard(client, fastRetry, nil)
	assert.True(t, guard.EnsureLeverage(context.Background(), "BTC-PERP", 10))
	assert.True(t, guard.EnsureLeverage(context.Background(), "BTC-PERP", 10))

	client.AssertNumberOfCalls(t, "SetLeverage", 1)
	client.AssertExpectations(t)
}
