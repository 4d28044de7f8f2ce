package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/retry"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/mocks"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/riskparams"
)

func TestCanOpenNewTrade(t *testing.T) {
	params := models.RiskParams{MaxOpenPositions: 2, MaxDailyLoss: decimal.RequireFromString("0.05")}
	open := []models.Position{
		{Symbol: "BTC-PERP", Side: models.PositionLong, Quantity: decimal.NewFromInt(1)},
		{Symbol: "ETH-PERP", Side: models.PositionShort, Quantity: decimal.NewFromInt(2)},
	}
	limitReached := models.Account{
		StartOfDayBalance: decimal.NewFromInt(1000),
		RealizedPnLToday:  decimal.NewFromInt(-60),
	}

	tests := []struct {
		name        string
		symbol      string
		side        models.Side
		setupMocks  func(client *mocks.MockExchangeClient)
		expectedErr error
	}{
		{
			name: "лимиты не достигнуты",
			setupMocks: func(client *mocks.MockExchangeClient) {
				client.On("GetPositions", mock.Anything).Return(open[:1], nil)
				client.On("GetAccountInfo", mock.Anything).Return(models.Account{
					StartOfDayBalance: decimal.NewFromInt(1000),
					RealizedPnLToday:  decimal.NewFromInt(-49),
				}, nil)
			},
		},
		{
			name: "слишком много позиций",
			setupMocks: func(client *mocks.MockExchangeClient) {
				client.On("GetPositions", mock.Anything).Return(open, nil)
			},
			expectedErr: serviceErrors.ErrRiskLimitExceeded,
		},
		{
			name: "дневной убыток достигнут",
			setupMocks: func(client *mocks.MockExchangeClient) {
				client.On("GetPositions", mock.Anything).Return(nil, nil)
				client.On("GetAccountInfo", mock.Anything).Return(models.Account{
					Balance:          decimal.NewFromInt(950),
					RealizedPnLToday: decimal.NewFromInt(-50),
				}, nil)
			},
			expectedErr: serviceErrors.ErrRiskLimitExceeded,
		},
		{
			name:   "закрывающая сделка проходит при достигнутых лимитах",
			symbol: "BTC-PERP",
			side:   models.SideSell,
			setupMocks: func(client *mocks.MockExchangeClient) {
				client.On("GetPositions", mock.Anything).Return(open, nil)
			},
		},
		{
			name:   "покупка против короткой позиции не считается новой",
			symbol: "ETH-PERP",
			side:   models.SideBuy,
			setupMocks: func(client *mocks.MockExchangeClient) {
				client.On("GetPositions", mock.Anything).Return(open, nil)
			},
		},
		{
			name:   "наращивание позиции не упирается в лимит количества",
			symbol: "BTC-PERP",
			side:   models.SideBuy,
			setupMocks: func(client *mocks.MockExchangeClient) {
				client.On("GetPositions", mock.Anything).Return(open, nil)
				client.On("GetAccountInfo", mock.Anything).Return(models.Account{
					StartOfDayBalance: decimal.NewFromInt(1000),
				}, nil)
			},
		},
		{
			name:   "наращивание позиции блокируется дневным убытком",
			symbol: "BTC-PERP",
			side:   models.SideBuy,
			setupMocks: func(client *mocks.MockExchangeClient) {
				client.On("GetPositions", mock.Anything).Return(open, nil)
				client.On("GetAccountInfo", mock.Anything).Return(limitReached, nil)
			},
			expectedErr: serviceErrors.ErrRiskLimitExceeded,
		},
		{
			name: "ошибка биржи",
			setupMocks: func(client *mocks.MockExchangeClient) {
				client.On("GetPositions", mock.Anything).Return(nil, errors.New("boom"))
			},
			expectedErr: errors.New("boom"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mocks.MockExchangeClient)
			tt.setupMocks(client)

			symbol, side := tt.symbol, tt.side
			if symbol == "" {
				symbol, side = "SOL-PERP", models.SideBuy
			}

			gate := NewGate(client, riskparams.NewStore(params), retry.Policy{Attempts: 1})
			err := gate.CanOpenNewTrade(context.Background(), symbol, side)
			if tt.expectedErr == nil {
				require.NoError(t, err)
			} else if errors.Is(tt.expectedErr, serviceErrors.ErrRiskLimitExceeded) {
				assert.ErrorIs(t, err, serviceErrors.ErrRiskLimitExceeded)
			} else {
				assert.ErrorContains(t, err, tt.expectedErr.Error())
			}

			client.AssertExpectations(t)
		})
	}
}
