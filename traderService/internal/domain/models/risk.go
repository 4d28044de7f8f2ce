package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// RiskParams is process-wide and read-only during a trading cycle. It may
// be replaced between cycles.
type RiskParams struct {
	MaxRiskPerTrade      decimal.Decimal
	MaxPositionSizeUSD   decimal.Decimal
	DefaultLeverage      int
	StopLossPercentage   decimal.Decimal
	TakeProfitMultiplier decimal.Decimal
	MaxOpenPositions     int
	MaxDailyLoss         decimal.Decimal
}

// TakeProfitPercentage derives the default take-profit distance.
func (r RiskParams) TakeProfitPercentage() decimal.Decimal {
	return r.StopLossPercentage.Mul(r.TakeProfitMultiplier)
}

// Validate joins every violated bound into one error.
func (r RiskParams) Validate() error {
	one := decimal.NewFromInt(1)
	var problems []error

	if !r.MaxRiskPerTrade.IsPositive() || r.MaxRiskPerTrade.GreaterThan(one) {
		problems = append(problems, fmt.Errorf("max_risk_per_trade %s must be in (0, 1]", r.MaxRiskPerTrade))
	}
	if r.MaxPositionSizeUSD.IsNegative() {
		problems = append(problems, fmt.Errorf("max_position_size_usd %s must not be negative", r.MaxPositionSizeUSD))
	}
	if r.DefaultLeverage <= 0 {
		problems = append(problems, fmt.Errorf("default_leverage %d must be positive", r.DefaultLeverage))
	}
	if r.StopLossPercentage.IsNegative() || r.StopLossPercentage.GreaterThan(one) {
		problems = append(problems, fmt.Errorf("stop_loss_percentage %s must be in [0, 1]", r.StopLossPercentage))
	}
	if r.TakeProfitMultiplier.IsNegative() {
		problems = append(problems, fmt.Errorf("take_profit_multiplier %s must not be negative", r.TakeProfitMultiplier))
	}
	if r.MaxOpenPositions < 0 {
		problems = append(problems, fmt.Errorf("max_open_positions %d must not be negative", r.MaxOpenPositions))
	}
	if r.MaxDailyLoss.IsNegative() || r.MaxDailyLoss.GreaterThan(one) {
		problems = append(problems, fmt.Errorf("max_daily_loss %s must be in [0, 1]", r.MaxDailyLoss))
	}

	return errors.Join(problems...)
}

// RiskParamsUpdate changes the non-nil fields only.
type RiskParamsUpdate struct {
	MaxRiskPerTrade      *decimal.Decimal
	MaxPositionSizeUSD   *decimal.Decimal
	DefaultLeverage      *int
	StopLossPercentage   *decimal.Decimal
	TakeProfitMultiplier *decimal.Decimal
	MaxOpenPositions     *int
	MaxDailyLoss         *decimal.Decimal
}

func (u RiskParamsUpdate) Empty() bool {
	return u == RiskParamsUpdate{}
}

func (u RiskParamsUpdate) Apply(params RiskParams) RiskParams {
	if u.MaxRiskPerTrade != nil {
		params.MaxRiskPerTrade = *u.MaxRiskPerTrade
	}
	if u.MaxPositionSizeUSD != nil {
		params.MaxPositionSizeUSD = *u.MaxPositionSizeUSD
	}
	if u.DefaultLeverage != nil {
		params.DefaultLeverage = *u.DefaultLeverage
	}
	if u.StopLossPercentage != nil {
		params.StopLossPercentage = *u.StopLossPercentage
	}
	if u.TakeProfitMultiplier != nil {
		params.TakeProfitMultiplier = *u.TakeProfitMultiplier
	}
	if u.MaxOpenPositions != nil {
		params.MaxOpenPositions = *u.MaxOpenPositions
	}
	if u.MaxDailyLoss != nil {
		params.MaxDailyLoss = *u.MaxDailyLoss
	}
	return params
}
