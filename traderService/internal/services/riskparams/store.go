package riskparams

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

// Store holds the live risk parameters. Readers take a copy per trade, so
// an update applies from the next trade on.
type Store struct {
	mu     sync.RWMutex
	params models.RiskParams
}

func NewStore(params models.RiskParams) *Store {
	return &Store{params: params}
}

func (s *Store) RiskParams() models.RiskParams {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.params
}

// Update applies update atomically. An update that leaves the parameters
// out of bounds changes nothing.
func (s *Store) Update(ctx context.Context, update models.RiskParamsUpdate) (models.RiskParams, error) {
	const op = "riskparams.Store.Update"

	if update.Empty() {
		return models.RiskParams{}, fmt.Errorf("%s: %w: no parameters given", op, serviceErrors.ErrInvalidRiskParams)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := update.Apply(s.params)
	if err := next.Validate(); err != nil {
		return models.RiskParams{}, fmt.Errorf("%s: %w: %w", op, serviceErrors.ErrInvalidRiskParams, err)
	}

	s.params = next

	zapLogger.Info(ctx, "risk parameters updated",
		zap.String("max_risk_per_trade", next.MaxRiskPerTrade.String()),
		zap.String("max_position_size_usd", next.MaxPositionSizeUSD.String()),
		zap.Int("default_leverage", next.DefaultLeverage),
		zap.String("stop_loss_percentage", next.StopLossPercentage.String()),
		zap.String("take_profit_multiplier", next.TakeProfitMultiplier.String()),
		zap.Int("max_open_positions", next.MaxOpenPositions),
		zap.String("max_daily_loss", next.MaxDailyLoss.String()))

	return next, nil
}
