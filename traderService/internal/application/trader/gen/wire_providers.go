package gen

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/nastyazhadan/perp-trader/shared/config"
	"github.com/nastyazhadan/perp-trader/shared/infra/db"
	"github.com/nastyazhadan/perp-trader/shared/infra/health"
	redisClient "github.com/nastyazhadan/perp-trader/shared/infra/redis"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange/factory"
	httpTrader "github.com/nastyazhadan/perp-trader/traderService/internal/http/trader"
	"github.com/nastyazhadan/perp-trader/traderService/internal/infrastructure/kafka"
	"github.com/nastyazhadan/perp-trader/traderService/internal/infrastructure/postgres"
	repoRedis "github.com/nastyazhadan/perp-trader/traderService/internal/infrastructure/redis"
	"github.com/nastyazhadan/perp-trader/traderService/internal/metrics"
	"github.com/nastyazhadan/perp-trader/traderService/internal/retry"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/alert"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/execution"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/ledger"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/leverage"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/recommendation"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/risk"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/riskparams"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/sizing"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/trading"
	"github.com/nastyazhadan/perp-trader/traderService/internal/storage/memory"
	"github.com/nastyazhadan/perp-trader/traderService/migrations"
)

const checkTimeout = 2 * time.Second

type RateLimiters struct {
	Login   httpTrader.Limiter
	Webhook httpTrader.Limiter
}

func provideExchangeClient(ctx context.Context, cfg *config.Config) (exchange.Client, error) {
	return factory.New(ctx, cfg.Exchange, cfg.CircuitBreaker)
}

func provideMetrics() *metrics.Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.New(registry)
}

func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if !cfg.Postgres.Enabled() {
		return nil, func() {}, nil
	}

	pool, err := db.SetupDB(ctx, cfg.Postgres.DBURI, migrations.Migrations)
	if err != nil {
		return nil, nil, fmt.Errorf("db.SetupDB: %w", err)
	}

	return pool, pool.Close, nil
}

func provideMirror(pool *pgxpool.Pool) ledger.Mirror {
	if pool == nil {
		return nil
	}
	return postgres.NewOrderStore(pool)
}

func provideProducer(cfg *config.Config) (sarama.SyncProducer, func(), error) {
	if !cfg.Kafka.Enabled() {
		return nil, func() {}, nil
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka.NewProducer: %w", err)
	}

	return producer, func() {
		if err := producer.Close(); err != nil {
			zapLogger.Error(context.Background(), "failed to close kafka producer", zap.Error(err))
		}
	}, nil
}

func providePublisher(producer sarama.SyncProducer, cfg *config.Config) ledger.Publisher {
	if producer == nil {
		return nil
	}
	return kafka.NewPublisher(producer, cfg.Kafka.Topic)
}

func provideLedger(mirror ledger.Mirror, publisher ledger.Publisher) *ledger.Service {
	return ledger.NewService(memory.NewOrderStore(), mirror, publisher)
}

func provideSettlementHandler(service *ledger.Service, recorder *metrics.Metrics) *ledger.SettlementHandler {
	return ledger.NewSettlementHandler(service, recorder)
}

func provideRiskParams(cfg *config.Config) (*riskparams.Store, error) {
	params := execution.RiskParamsFromConfig(cfg.Risk)
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("risk config: %w", err)
	}

	return riskparams.NewStore(params), nil
}

func provideExecutor(
	client exchange.Client,
	service *ledger.Service,
	params *riskparams.Store,
	recorder *metrics.Metrics,
	cfg *config.Config,
) (*execution.Executor, error) {
	defaults, err := execution.DefaultsFromConfig(cfg.Defaults)
	if err != nil {
		return nil, err
	}

	policy := retry.DefaultPolicy()

	return execution.NewExecutor(execution.Dependencies{
		Client:   client,
		Sizer:    sizing.NewSizer(client, params, policy, recorder),
		Guard:    leverage.NewGuard(client, policy, recorder),
		Gate:     risk.NewGate(client, params, policy),
		Ledger:   service,
		Recorder: recorder,
	}, params, defaults, policy), nil
}

func provideAlertQueue(executor *execution.Executor, recorder *metrics.Metrics, cfg *config.Config) *alert.Queue {
	return alert.NewQueue(
		executor,
		alert.DefaultsFromConfig(cfg.Alert),
		cfg.Alert.QueueSize,
		cfg.App.TradeTimeout,
		recorder,
	)
}

func provideLoop(executor *execution.Executor, recorder *metrics.Metrics, cfg *config.Config) *trading.Loop {
	provider := recommendation.New(cfg.Loop.RecommendationURL, cfg.Exchange.RequestTimeout)
	return trading.NewLoop(provider, executor, trading.OptionsFromConfig(cfg.Loop, cfg.App.TradeTimeout), recorder)
}

func provideRedisClient(cfg *config.Config) (*redisClient.Client, func()) {
	if !cfg.Redis.Enabled() {
		return nil, func() {}
	}

	client := redisClient.NewClient(redisClient.NewPool(cfg.Redis), zapLogger.Logger(), cfg.Redis.ConnectionTimeout)
	return client, func() {
		if err := client.Close(); err != nil {
			zapLogger.Error(context.Background(), "failed to close redis pool", zap.Error(err))
		}
	}
}

func provideRateLimiters(client *redisClient.Client, cfg *config.Config) RateLimiters {
	if client == nil {
		return RateLimiters{}
	}

	return RateLimiters{
		Login:   repoRedis.NewRateLimiter(client, "login", cfg.RateLimiter.Login, cfg.RateLimiter.Window),
		Webhook: repoRedis.NewRateLimiter(client, "webhook", cfg.RateLimiter.Webhook, cfg.RateLimiter.Window),
	}
}

func provideHealth(
	client exchange.Client,
	executor *execution.Executor,
	handler *ledger.SettlementHandler,
	pool *pgxpool.Pool,
	redis *redisClient.Client,
) *health.Server {
	checks := map[string]health.Check{
		"exchange": func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			_, err := client.GetAccountInfo(ctx)
			return err
		},
	}

	if executor.Capabilities().Events != nil {
		checks["settlement"] = func(context.Context) error {
			if !handler.Ready() {
				return errors.New("settlement handler is not consuming events")
			}
			return nil
		}
	}
	if pool != nil {
		checks["postgres"] = func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			return pool.Ping(ctx)
		}
	}
	if redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			return redis.Ping(ctx)
		}
	}

	return health.NewServer(checks)
}

func provideHTTPServer(
	cfg *config.Config,
	client exchange.Client,
	executor *execution.Executor,
	service *ledger.Service,
	params *riskparams.Store,
	loop *trading.Loop,
	alerts *alert.Queue,
	limiters RateLimiters,
	healthServer *health.Server,
	recorder *metrics.Metrics,
) (*httpTrader.Server, error) {
	capabilities := executor.Capabilities()

	var history httpTrader.History
	if capabilities.History != nil {
		history = capabilities.History
	}

	return httpTrader.NewServer(httpTrader.Dependencies{
		Trader:         executor,
		Account:        client,
		History:        history,
		Orders:         service,
		Settings:       params,
		Loop:           loop,
		Alerts:         alerts,
		LoginLimiter:   limiters.Login,
		WebhookLimiter: limiters.Webhook,
		Readiness:      healthServer,
		Metrics:        recorder.Handler(),
	}, httpTrader.Options{
		Address:         cfg.App.HTTPAddress,
		Flow:            capabilities.Flow.String(),
		MockTrading:     cfg.Exchange.MockTrading,
		TradeTimeout:    cfg.App.TradeTimeout,
		ShutdownTimeout: cfg.App.ShutdownTimeout,
		Auth:            cfg.Auth,
	})
}
