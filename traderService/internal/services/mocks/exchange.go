package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange"
)

type MockExchangeClient struct {
	mock.Mock
}

func (m *MockExchangeClient) GetAccountInfo(ctx context.Context) (models.Account, error) {
	args := m.Called(ctx)
	return args.Get(0).(models.Account), args.Error(1)
}

func (m *MockExchangeClient) GetPositions(ctx context.Context) ([]models.Position, error) {
	args := m.Called(ctx)
	positions, _ := args.Get(0).([]models.Position)
	return positions, args.Error(1)
}

func (m *MockExchangeClient) GetMarginBankBalance(ctx context.Context) (decimal.Decimal, error) {
	args := m.Called(ctx)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockExchangeClient) GetOrderbook(ctx context.Context, symbol string) (models.Orderbook, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(models.Orderbook), args.Error(1)
}

func (m *MockExchangeClient) GetMarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockExchangeClient) GetUserLeverage(ctx context.Context, symbol string) (int, error) {
	args := m.Called(ctx, symbol)
	return args.Int(0), args.Error(1)
}

func (m *MockExchangeClient) SetLeverage(ctx context.Context, symbol string, leverage int) (exchange.LeverageResult, error) {
	args := m.Called(ctx, symbol, leverage)
	return args.Get(0).(exchange.LeverageResult), args.Error(1)
}

// MockDirectClient adds the single-call submission flow.
type MockDirectClient struct {
	MockExchangeClient
}

func (m *MockDirectClient) PlaceOrder(ctx context.Context, params models.OrderParams) (models.OrderAck, error) {
	args := m.Called(ctx, params)
	if fn, ok := args.Get(0).(func(context.Context, models.OrderParams) models.OrderAck); ok {
		return fn(ctx, params), args.Error(1)
	}
	return args.Get(0).(models.OrderAck), args.Error(1)
}

// MockSignatureClient adds the three-step signature flow.
type MockSignatureClient struct {
	MockExchangeClient
}

func (m *MockSignatureClient) CreateOrderSignatureRequest(ctx context.Context, params models.OrderParams) (exchange.SignatureRequest, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(exchange.SignatureRequest), args.Error(1)
}

func (m *MockSignatureClient) CreateSignedOrder(ctx context.Context, request exchange.SignatureRequest) (exchange.SignedOrder, error) {
	args := m.Called(ctx, request)
	return args.Get(0).(exchange.SignedOrder), args.Error(1)
}

func (m *MockSignatureClient) PostSignedOrder(ctx context.Context, signed exchange.SignedOrder) (models.OrderAck, error) {
	args := m.Called(ctx, signed)
	return args.Get(0).(models.OrderAck), args.Error(1)
}
