package trader

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/nastyazhadan/perp-trader/shared/config"
	"github.com/nastyazhadan/perp-trader/shared/infra/tracing"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	wireGen "github.com/nastyazhadan/perp-trader/traderService/internal/application/trader/gen"
	grpcTrader "github.com/nastyazhadan/perp-trader/traderService/internal/grpc"
)

// Run starts the engine and blocks until ctx is cancelled or fx receives a
// shutdown signal.
func Run(ctx context.Context, cfg *config.Config) error {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return ctx
			},
			func() *config.Config {
				return cfg
			},
		),
		fx.Provide(
			provideContainer,
			provideListener,
			provideGRPCServer,
		),
		fx.Invoke(
			registerLogger,
			registerTracing,
			startWorkers,
		),
	)

	startCtx, cancel := context.WithTimeout(ctx, fx.DefaultTimeout)
	defer cancel()

	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("app.Start: %w", err)
	}

	select {
	case <-ctx.Done():
	case signal := <-app.Wait():
		zapLogger.Info(ctx, "shutdown signal received", zap.String("signal", signal.Signal.String()))
	}

	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), cfg.App.ShutdownTimeout)
	defer cancelStop()

	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("app.Stop: %w", err)
	}
	return nil
}

func registerLogger(lifeCycle fx.Lifecycle, cfg *config.Config) error {
	if err := zapLogger.Init(cfg.App.LogLevel, cfg.App.LogFormat == "json"); err != nil {
		return err
	}

	lifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			_ = zapLogger.Sync()

			return nil
		},
	})

	return nil
}

func registerTracing(ctx context.Context, lifeCycle fx.Lifecycle, cfg *config.Config) error {
	shutdown, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing.Setup: %w", err)
	}

	lifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return shutdown(ctx)
		},
	})

	return nil
}

func provideContainer(
	ctx context.Context,
	lifeCycle fx.Lifecycle,
	cfg *config.Config,
) (*wireGen.Container, error) {
	container, cleanup, err := wireGen.NewContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	lifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			cleanup()
			return nil
		},
	})

	return container, nil
}

func provideListener(
	lifeCycle fx.Lifecycle,
	cfg *config.Config,
) (net.Listener, error) {
	listener, err := net.Listen("tcp", cfg.App.GRPCAddress)
	if err != nil {
		return nil, fmt.Errorf("net.Listen: %w", err)
	}

	lifeCycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			errClose := listener.Close()
			if errClose != nil && !errors.Is(errClose, net.ErrClosed) {
				return errClose
			}

			return nil
		},
	})

	return listener, nil
}

func provideGRPCServer(container *wireGen.Container) (*grpc.Server, error) {
	return grpcTrader.NewServer(container.Health)
}

// startWorkers runs the servers, the settlement consumer, the alert consumer
// and optionally the trading loop in one errgroup. A failing worker shuts
// the application down.
func startWorkers(
	lifeCycle fx.Lifecycle,
	shutdowner fx.Shutdowner,
	container *wireGen.Container,
	server *grpc.Server,
	listener net.Listener,
	cfg *config.Config,
) {
	var (
		cancel context.CancelFunc
		done   = make(chan struct{})
	)

	lifeCycle.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.WithoutCancel(startCtx))
			group, groupCtx := errgroup.WithContext(ctx)

			group.Go(func() error {
				return container.HTTP.Run(groupCtx)
			})
			group.Go(func() error {
				return grpcTrader.Serve(groupCtx, server, listener)
			})
			group.Go(func() error {
				return container.Alerts.Run(groupCtx)
			})

			if events := container.Executor.Capabilities().Events; events != nil {
				stream, err := events.Subscribe(groupCtx)
				if err != nil {
					cancel()
					return fmt.Errorf("subscribe to order events: %w", err)
				}
				group.Go(func() error {
					return container.Settlement.Run(groupCtx, stream)
				})
			} else {
				zapLogger.Warn(startCtx, "exchange client has no event source, settlement events are not consumed")
			}

			if cfg.Loop.Enabled {
				if err := container.Loop.Start(groupCtx); err != nil {
					cancel()
					return fmt.Errorf("start trading loop: %w", err)
				}
			}

			go func() {
				defer close(done)
				if err := group.Wait(); err != nil {
					zapLogger.Error(ctx, "worker failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if container.Loop.Running() {
				_ = container.Loop.Stop()
			}
			cancel()

			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
