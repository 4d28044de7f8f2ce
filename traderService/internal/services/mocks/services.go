package mocks

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

type MockSizer struct {
	mock.Mock
}

func (m *MockSizer) Size(
	ctx context.Context,
	symbol string,
	side models.Side,
	riskPercentage decimal.Decimal,
	stopLossPercentage decimal.Decimal,
	price decimal.Decimal,
) (decimal.Decimal, error) {
	args := m.Called(ctx, symbol, side, riskPercentage, stopLossPercentage, price)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockLeverageGuard struct {
	mock.Mock
}

func (m *MockLeverageGuard) EnsureLeverage(ctx context.Context, symbol string, target int) bool {
	args := m.Called(ctx, symbol, target)
	return args.Bool(0)
}

type MockRiskGate struct {
	mock.Mock
}

func (m *MockRiskGate) CanOpenNewTrade(ctx context.Context, symbol string, side models.Side) error {
	args := m.Called(ctx, symbol, side)
	return args.Error(0)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Register(ctx context.Context, order models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockLedger) Get(ctx context.Context, hash string) (models.Order, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(models.Order), args.Error(1)
}

func (m *MockLedger) Cancel(ctx context.Context, hash string) (models.Order, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(models.Order), args.Error(1)
}

type MockOrderMirror struct {
	mock.Mock
}

func (m *MockOrderMirror) UpsertOrder(ctx context.Context, order models.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrderMirror) GetOrder(ctx context.Context, hash string) (models.Order, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(models.Order), args.Error(1)
}

type MockOrderPublisher struct {
	mock.Mock
}

func (m *MockOrderPublisher) PublishOrder(ctx context.Context, transition string, order models.Order) error {
	args := m.Called(ctx, transition, order)
	return args.Error(0)
}

type MockTrader struct {
	mock.Mock
}

func (m *MockTrader) ExecuteTrade(ctx context.Context, request models.TradeRequest) (models.TradeResult, error) {
	args := m.Called(ctx, request)
	return args.Get(0).(models.TradeResult), args.Error(1)
}

type MockRecommendationProvider struct {
	mock.Mock
}

func (m *MockRecommendationProvider) GetRecommendation(ctx context.Context, symbol, timeframe string) (models.Recommendation, error) {
	args := m.Called(ctx, symbol, timeframe)
	return args.Get(0).(models.Recommendation), args.Error(1)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockTrader) ClosePosition(ctx context.Context, symbol string, quantity *decimal.Decimal) (models.Order, error) {
	args := m.Called(ctx, symbol, quantity)
	return args.Get(0).(models.Order), args.Error(1)
}

func (m *MockTrader) CancelOrder(ctx context.Context, hash string) (models.Order, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(models.Order), args.Error(1)
}

type MockSettings struct {
	mock.Mock
}

func (m *MockSettings) RiskParams() models.RiskParams {
	args := m.Called()
	return args.Get(0).(models.RiskParams)
}

func (m *MockSettings) Update(ctx context.Context, update models.RiskParamsUpdate) (models.RiskParams, error) {
	args := m.Called(ctx, update)
	return args.Get(0).(models.RiskParams), args.Error(1)
}

type MockOrders struct {
	mock.Mock
}

func (m *MockOrders) Get(ctx context.Context, hash string) (models.Order, error) {
	args := m.Called(ctx, hash)
	return args.Get(0).(models.Order), args.Error(1)
}

func (m *MockOrders) List(ctx context.Context) ([]models.Order, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Order), args.Error(1)
}

type MockLoop struct {
	mock.Mock
}

func (m *MockLoop) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockLoop) Stop() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockLoop) Running() bool {
	args := m.Called()
	return args.Bool(0)
}

type MockAlerts struct {
	mock.Mock
}

func (m *MockAlerts) Submit(ctx context.Context, body []byte) (models.Alert, error) {
	args := m.Called(ctx, body)
	return args.Get(0).(models.Alert), args.Error(1)
}
