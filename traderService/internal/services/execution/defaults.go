package execution

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nastyazhadan/perp-trader/shared/config"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

// DefaultsFromConfig parses the environment overrides. Blank values stay nil.
func DefaultsFromConfig(cfg config.DefaultsConfig) (Defaults, error) {
	const op = "execution.DefaultsFromConfig"

	var (
		defaults Defaults
		err      error
	)

	if defaults.RiskPercentage, err = optionalDecimal(cfg.RiskPercentage); err != nil {
		return Defaults{}, fmt.Errorf("%s: risk percentage: %w", op, err)
	}
	if defaults.StopLossPercentage, err = optionalDecimal(cfg.StopLossPercentage); err != nil {
		return Defaults{}, fmt.Errorf("%s: stop loss percentage: %w", op, err)
	}
	if defaults.TakeProfitPercentage, err = optionalDecimal(cfg.TakeProfitPercentage); err != nil {
		return Defaults{}, fmt.Errorf("%s: take profit percentage: %w", op, err)
	}

	if raw := strings.TrimSpace(cfg.Leverage); raw != "" {
		leverage, err := strconv.Atoi(raw)
		if err != nil || leverage <= 0 {
			return Defaults{}, fmt.Errorf("%s: leverage %q must be a positive integer", op, raw)
		}
		defaults.Leverage = &leverage
	}

	return defaults, nil
}

func RiskParamsFromConfig(cfg config.RiskConfig) models.RiskParams {
	return models.RiskParams{
		MaxRiskPerTrade:      decimal.NewFromFloat(cfg.MaxRiskPerTrade),
		MaxPositionSizeUSD:   decimal.NewFromFloat(cfg.MaxPositionSizeUSD),
		DefaultLeverage:      cfg.DefaultLeverage,
		StopLossPercentage:   decimal.NewFromFloat(cfg.StopLossPercentage),
		TakeProfitMultiplier: decimal.NewFromFloat(cfg.TakeProfitMultiplier),
		MaxOpenPositions:     cfg.MaxOpenPositions,
		MaxDailyLoss:         decimal.NewFromFloat(cfg.MaxDailyLoss),
	}
}

func optionalDecimal(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	if value.IsNegative() {
		return nil, fmt.Errorf("%q is negative", raw)
	}
	return &value, nil
}
