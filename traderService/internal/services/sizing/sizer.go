package sizing

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/retry"
)

const Precision = 3

// FallbackQuantity is returned when sizing inputs other than the balance
// cannot be used.
var FallbackQuantity = decimal.RequireFromString("0.001")

type BalanceReader interface {
	GetMarginBankBalance(ctx context.Context) (decimal.Decimal, error)
}

type FallbackRecorder interface {
	SizingFallback()
}

type ParamsSource interface {
	RiskParams() models.RiskParams
}

type Sizer struct {
	balances BalanceReader
	params   ParamsSource
	policy   retry.Policy
	recorder FallbackRecorder
}

func NewSizer(balances BalanceReader, params ParamsSource, policy retry.Policy, recorder FallbackRecorder) *Sizer {
	return &Sizer{
		balances: balances,
		params:   params,
		policy:   policy,
		recorder: recorder,
	}
}

// Size reads the margin balance and sizes the order from it. A balance
// that cannot be read yields FallbackQuantity.
func (s *Sizer) Size(
	ctx context.Context,
	symbol string,
	side models.Side,
	riskPercentage decimal.Decimal,
	stopLossPercentage decimal.Decimal,
	price decimal.Decimal,
) (decimal.Decimal, error) {
	balance, err := retry.Do(ctx, s.policy, "GetMarginBankBalance", s.balances.GetMarginBankBalance)
	if err != nil {
		return s.fallback(ctx, symbol, side, "balance unavailable", zap.Error(err)), nil
	}

	return s.CalculatePositionSize(ctx, symbol, side, balance, riskPercentage, stopLossPercentage, price)
}

// CalculatePositionSize risks riskPercentage of balance over a stop
// stopLossPercentage away from price. The result never exceeds
// MaxPositionSizeUSD/price and is zero when the stop carries no price risk.
// A balance that is not positive fails with ErrInsufficientBalance.
func (s *Sizer) CalculatePositionSize(
	ctx context.Context,
	symbol string,
	side models.Side,
	balance decimal.Decimal,
	riskPercentage decimal.Decimal,
	stopLossPercentage decimal.Decimal,
	price decimal.Decimal,
) (decimal.Decimal, error) {
	const op = "Sizer.CalculatePositionSize"

	if !balance.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s: %w: %s", op, serviceErrors.ErrInsufficientBalance, balance)
	}
	if !price.IsPositive() {
		return s.fallback(ctx, symbol, side, "non-positive price", zap.String("price", price.String())), nil
	}
	if !inUnitInterval(riskPercentage) {
		return s.fallback(ctx, symbol, side, "risk percentage out of range", zap.String("risk", riskPercentage.String())), nil
	}
	if stopLossPercentage.IsNegative() || stopLossPercentage.GreaterThan(decimal.NewFromInt(1)) {
		return s.fallback(ctx, symbol, side, "stop loss percentage out of range", zap.String("stop_loss", stopLossPercentage.String())), nil
	}

	priceRisk := price.Mul(stopLossPercentage)
	if priceRisk.IsZero() {
		return decimal.Zero, nil
	}

	quantity := balance.Mul(riskPercentage).Div(priceRisk)

	maxUSD := s.params.RiskParams().MaxPositionSizeUSD
	limit := maxUSD.Div(price)
	if maxUSD.IsPositive() && quantity.GreaterThan(limit) {
		quantity = limit
	}

	rounded := quantity.RoundBank(Precision)
	if maxUSD.IsPositive() && rounded.GreaterThan(limit) {
		rounded = limit.Truncate(Precision)
	}

	return rounded, nil
}

func (s *Sizer) fallback(ctx context.Context, symbol string, side models.Side, reason string, fields ...zap.Field) decimal.Decimal {
	if s.recorder != nil {
		s.recorder.SizingFallback()
	}

	zapLogger.Warn(ctx, "position sizing fell back to minimal quantity",
		append([]zap.Field{
			zap.String("symbol", symbol),
			zap.String("side", string(side)),
			zap.String("reason", reason),
			zap.String("quantity", FallbackQuantity.String()),
		}, fields...)...)

	return FallbackQuantity
}

func inUnitInterval(value decimal.Decimal) bool {
	return value.IsPositive() && value.LessThanOrEqual(decimal.NewFromInt(1))
}
