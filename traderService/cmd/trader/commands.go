package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nastyazhadan/perp-trader/shared/config"
	"github.com/nastyazhadan/perp-trader/shared/infra/closer"
	"github.com/nastyazhadan/perp-trader/shared/infra/db"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/traderService/internal/application/trader"
	wireGen "github.com/nastyazhadan/perp-trader/traderService/internal/application/trader/gen"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/services/alert"
	"github.com/nastyazhadan/perp-trader/traderService/migrations"
)

type rootOptions struct {
	configPath string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	options := &rootOptions{}

	root := &cobra.Command{
		Use:           "trader",
		Short:         "Perpetual futures execution engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(options.configPath)
			if err != nil {
				return err
			}
			options.cfg = cfg

			return zapLogger.Init(cfg.App.LogLevel, cfg.App.LogFormat == "json")
		},
	}
	root.PersistentFlags().StringVar(&options.configPath, "config", "", "config file; the environment is used when empty")

	root.AddCommand(
		newServeCommand(options),
		newOpenCommand(options),
		newCloseCommand(options),
		newMigrateCommand(options),
	)

	return root
}

func newServeCommand(options *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP control surface, the gRPC health server and the background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return trader.Run(ctx, options.cfg)
		},
	}
}

type openFlags struct {
	symbol     string
	side       string
	orderType  string
	size       string
	risk       string
	stopLoss   string
	takeProfit string
	price      string
	leverage   int
}

func newOpenCommand(options *rootOptions) *cobra.Command {
	flags := &openFlags{}

	command := &cobra.Command{
		Use:   "open",
		Short: "Execute one trade and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			request, err := flags.request(cmd)
			if err != nil {
				return err
			}

			return withContainer(cmd.Context(), options.cfg, func(ctx context.Context, container *wireGen.Container) error {
				result, err := container.Executor.ExecuteTrade(ctx, request)
				if err != nil {
					return err
				}

				return printJSON(map[string]any{
					"order_hash":   result.Order.Hash,
					"symbol":       result.Order.Symbol,
					"side":         result.Order.Side,
					"quantity":     result.Order.Quantity,
					"entry_price":  result.EntryPrice,
					"market_price": result.MarketPrice,
					"stop_loss":    result.StopLoss.Placed(),
					"take_profit":  result.TakeProfit.Placed(),
					"protected":    result.Protected(),
				})
			})
		},
	}

	command.Flags().StringVar(&flags.symbol, "symbol", "", "market symbol, e.g. BTC-PERP")
	command.Flags().StringVar(&flags.side, "side", "", "BUY or SELL")
	command.Flags().StringVar(&flags.orderType, "type", "MARKET", "MARKET, LIMIT, STOP_MARKET or TAKE_PROFIT")
	command.Flags().StringVar(&flags.size, "size", "", "explicit quantity; sized from risk when empty")
	command.Flags().StringVar(&flags.risk, "risk", "", "fraction of balance at risk")
	command.Flags().StringVar(&flags.stopLoss, "stop-loss", "", "stop-loss distance as a fraction of entry")
	command.Flags().StringVar(&flags.takeProfit, "take-profit", "", "take-profit distance as a fraction of entry")
	command.Flags().StringVar(&flags.price, "price", "", "limit price")
	command.Flags().IntVar(&flags.leverage, "leverage", 0, "target leverage; the default applies when 0")
	_ = command.MarkFlagRequired("symbol")
	_ = command.MarkFlagRequired("side")

	return command
}

func (f *openFlags) request(cmd *cobra.Command) (models.TradeRequest, error) {
	side, err := models.ParseSide(f.side)
	if err != nil {
		return models.TradeRequest{}, err
	}
	orderType, err := models.ParseOrderType(f.orderType)
	if err != nil {
		return models.TradeRequest{}, err
	}

	request := models.TradeRequest{
		Symbol:    alert.NormalizeSymbol(f.symbol),
		Side:      side,
		OrderType: orderType,
	}

	for _, field := range []struct {
		name   string
		raw    string
		target **decimal.Decimal
	}{
		{"size", f.size, &request.PositionSize},
		{"risk", f.risk, &request.RiskPercentage},
		{"stop-loss", f.stopLoss, &request.StopLossPercentage},
		{"take-profit", f.takeProfit, &request.TakeProfitPercentage},
		{"price", f.price, &request.Price},
	} {
		if field.raw == "" {
			continue
		}
		value, err := decimal.NewFromString(field.raw)
		if err != nil {
			return models.TradeRequest{}, fmt.Errorf("--%s: %w", field.name, err)
		}
		*field.target = &value
	}

	if cmd.Flags().Changed("leverage") {
		leverage := f.leverage
		request.Leverage = &leverage
	}

	return request, nil
}

func newCloseCommand(options *rootOptions) *cobra.Command {
	var (
		symbol   string
		quantity string
	)

	command := &cobra.Command{
		Use:   "close",
		Short: "Close an open position",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var amount *decimal.Decimal
			if quantity != "" {
				value, err := decimal.NewFromString(quantity)
				if err != nil {
					return fmt.Errorf("--quantity: %w", err)
				}
				amount = &value
			}

			return withContainer(cmd.Context(), options.cfg, func(ctx context.Context, container *wireGen.Container) error {
				order, err := container.Executor.ClosePosition(ctx, alert.NormalizeSymbol(symbol), amount)
				if err != nil {
					return err
				}

				return printJSON(map[string]any{
					"order_hash": order.Hash,
					"symbol":     order.Symbol,
					"side":       order.Side,
					"quantity":   order.Quantity,
					"state":      order.State(),
				})
			})
		},
	}

	command.Flags().StringVar(&symbol, "symbol", "", "market symbol")
	command.Flags().StringVar(&quantity, "quantity", "", "quantity to close; the whole position when empty")
	_ = command.MarkFlagRequired("symbol")

	return command
}

func newMigrateCommand(options *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending postgres migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !options.cfg.Postgres.Enabled() {
				return errors.New("TRADER_DB_URI is not set")
			}

			ctx := cmd.Context()
			pool, err := db.NewPgxPool(ctx, options.cfg.Postgres.DBURI)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := db.Migrate(ctx, pool, migrations.Migrations)
			if err != nil {
				return err
			}

			zapLogger.Info(ctx, "migrations applied", zap.Int("count", applied))
			return nil
		},
	}
}

// withContainer builds the dependency graph for a one-shot command and
// releases it afterwards.
func withContainer(
	parent context.Context,
	cfg *config.Config,
	fn func(ctx context.Context, container *wireGen.Container) error,
) (err error) {
	ctx, cancel := context.WithTimeout(parent, cfg.App.TradeTimeout)
	defer cancel()

	container, cleanup, err := wireGen.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}

	resources := closer.New(zapLogger.Logger())
	resources.AddNamed("container", func(context.Context) error {
		cleanup()
		return nil
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), cfg.App.ShutdownTimeout)
		defer cancel()
		err = errors.Join(err, resources.CloseAll(shutdownCtx))
	}()

	return fn(ctx, container)
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
