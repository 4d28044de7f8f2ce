//go:build wireinject

package gen

import (
	"context"

	"github.com/google/wire"

	"github.com/nastyazhadan/perp-trader/shared/config"
	"github.com/nastyazhadan/perp-trader/shared/infra/health"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange"
	httpTrader "github.com/nastyazhadan/perp-trader/traderService/internal/http/trader"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/alert"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/execution"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/ledger"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/riskparams"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/trading"
)

type Container struct {
	Client     exchange.Client
	Executor   *execution.Executor
	Ledger     *ledger.Service
	Params     *riskparams.Store
	Settlement *ledger.SettlementHandler
	Alerts     *alert.Queue
	Loop       *trading.Loop
	Health     *health.Server
	HTTP       *httpTrader.Server
}

func NewContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(
		provideExchangeClient,
		provideMetrics,
		provideDBPool,
		provideMirror,
		provideProducer,
		providePublisher,
		provideLedger,
		provideSettlementHandler,
		provideRiskParams,
		provideExecutor,
		provideAlertQueue,
		provideLoop,
		provideRedisClient,
		provideRateLimiters,
		provideHealth,
		provideHTTPServer,
		wire.Struct(new(Container), "*"),
	)
	return nil, nil, nil
}
