package leverage

import (
	"context"

	"go.uber.org/zap"

	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/retry"
)

type Client interface {
	GetUserLeverage(ctx context.Context, symbol string) (int, error)
	SetLeverage(ctx context.Context, symbol string, leverage int) (exchange.LeverageResult, error)
}

type FailureRecorder interface {
	LeverageFailed()
}

type Guard struct {
	client   Client
	policy   retry.Policy
	recorder FailureRecorder
}

func NewGuard(client Client, policy retry.Policy, recorder FailureRecorder) *Guard {
	return &Guard{
		client:   client,
		policy:   policy,
		recorder: recorder,
	}
}

// EnsureLeverage makes the account leverage for symbol equal target. It
// sets nothing when the leverage already matches, and only an explicit
// success flag from the exchange counts as success.
func (g *Guard) EnsureLeverage(ctx context.Context, symbol string, target int) bool {
	if target <= 0 {
		return g.fail(ctx, symbol, target, "non-positive target")
	}

	current, err := retry.Do(ctx, g.policy, "GetUserLeverage", func(ctx context.Context) (int, error) {
		return g.client.GetUserLeverage(ctx, symbol)
	})
	if err != nil {
		return g.fail(ctx, symbol, target, "read leverage", zap.Error(err))
	}
	if current == target {
		return true
	}

	result, err := retry.Do(ctx, g.policy, "SetLeverage", func(ctx context.Context) (exchange.LeverageResult, error) {
		return g.client.SetLeverage(ctx, symbol, target)
	})
	if err != nil {
		return g.fail(ctx, symbol, target, "set leverage", zap.Error(err))
	}
	if !result.Success {
		return g.fail(ctx, symbol, target, "exchange did not confirm", zap.Int("reported", result.Leverage))
	}

	zapLogger.Info(ctx, "leverage updated",
		zap.String("symbol", symbol),
		zap.Int("from", current),
		zap.Int("to", target))
	return true
}

func (g *Guard) fail(ctx context.Context, symbol string, target int, reason string, fields ...zap.Field) bool {
	if g.recorder != nil {
		g.recorder.LeverageFailed()
	}

	zapLogger.Warn(ctx, "leverage not ensured",
		append([]zap.Field{
			zap.String("symbol", symbol),
			zap.Int("target", target),
			zap.String("reason", reason),
		}, fields...)...)
	return false
}
