package risk

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/retry"
)

type AccountReader interface {
	GetAccountInfo(ctx context.Context) (models.Account, error)
	GetPositions(ctx context.Context) ([]models.Position, error)
}

type ParamsSource interface {
	RiskParams() models.RiskParams
}

type Gate struct {
	accounts AccountReader
	params   ParamsSource
	policy   retry.Policy
}

func NewGate(accounts AccountReader, params ParamsSource, policy retry.Policy) *Gate {
	return &Gate{
		accounts: accounts,
		params:   params,
		policy:   policy,
	}
}

// CanOpenNewTrade refuses new exposure once the open position count or the
// realized loss of the day reaches its limit. An order on the closing side
// of an open position in symbol is always allowed. An order adding to an
// open position is not counted as a new position.
func (g *Gate) CanOpenNewTrade(ctx context.Context, symbol string, side models.Side) error {
	const op = "Gate.CanOpenNewTrade"

	params := g.params.RiskParams()

	positions, err := retry.Do(ctx, g.policy, "GetPositions", g.accounts.GetPositions)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	open, found := openPosition(positions, symbol)
	if found && open.Side.ClosingSide() == side {
		return nil
	}

	if !found && params.MaxOpenPositions > 0 && len(positions) >= params.MaxOpenPositions {
		return fmt.Errorf("%s: %w: %d open positions", op, serviceErrors.ErrRiskLimitExceeded, len(positions))
	}

	if !params.MaxDailyLoss.IsPositive() {
		return nil
	}

	account, err := retry.Do(ctx, g.policy, "GetAccountInfo", g.accounts.GetAccountInfo)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if limit, loss := dailyLossLimit(account, params.MaxDailyLoss), account.RealizedPnLToday.Neg(); limit.IsPositive() && loss.GreaterThanOrEqual(limit) {
		return fmt.Errorf("%s: %w: daily loss %s reached limit %s", op, serviceErrors.ErrRiskLimitExceeded, loss, limit)
	}

	return nil
}

func openPosition(positions []models.Position, symbol string) (models.Position, bool) {
	for _, position := range positions {
		if position.Symbol == symbol && !position.Quantity.IsZero() {
			return position, true
		}
	}
	return models.Position{}, false
}

func dailyLossLimit(account models.Account, maxDailyLoss decimal.Decimal) decimal.Decimal {
	equity := account.StartOfDayBalance
	if !equity.IsPositive() {
		equity = account.Balance
	}
	return equity.Mul(maxDailyLoss)
}
