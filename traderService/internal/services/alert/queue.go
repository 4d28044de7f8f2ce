package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/nastyazhadan/perp-trader/shared/config"
	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

const (
	outcomeQueued  = "queued"
	outcomeInvalid = "invalid"
	outcomeDropped = "dropped"
)

type Trader interface {
	ExecuteTrade(ctx context.Context, request models.TradeRequest) (models.TradeResult, error)
}

type Recorder interface {
	AlertReceived(format, outcome string)
}

// Defaults fill the trade parameters an alert leaves out.
type Defaults struct {
	PositionSize decimal.Decimal
	Leverage     int
	StopLoss     decimal.Decimal
	TakeProfit   decimal.Decimal
}

func DefaultsFromConfig(cfg config.AlertConfig) Defaults {
	return Defaults{
		PositionSize: decimal.NewFromFloat(cfg.PositionSizePct),
		Leverage:     cfg.Leverage,
		StopLoss:     decimal.NewFromFloat(cfg.StopLossPct),
		TakeProfit:   decimal.NewFromFloat(cfg.TakeProfitPct),
	}
}

// Queue buffers validated alerts for a single consumer.
type Queue struct {
	alerts   chan models.Alert
	trader   Trader
	defaults Defaults
	timeout  time.Duration
	recorder Recorder
}

func NewQueue(trader Trader, defaults Defaults, size int, timeout time.Duration, recorder Recorder) *Queue {
	if size <= 0 {
		size = 1
	}

	return &Queue{
		alerts:   make(chan models.Alert, size),
		trader:   trader,
		defaults: defaults,
		timeout:  timeout,
		recorder: recorder,
	}
}

// Submit parses body and enqueues the alert without blocking.
func (q *Queue) Submit(ctx context.Context, body []byte) (models.Alert, error) {
	const op = "Queue.Submit"

	alert, format, err := Parse(body)
	if err != nil {
		q.record(format, outcomeInvalid)
		zapLogger.Warn(ctx, "alert discarded", zap.String("format", format), zap.Error(err))
		return models.Alert{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := q.Enqueue(alert); err != nil {
		q.record(format, outcomeDropped)
		zapLogger.Warn(zapLogger.ContextWithSymbol(ctx, alert.Symbol), "alert dropped", zap.Error(err))
		return models.Alert{}, fmt.Errorf("%s: %w", op, err)
	}

	q.record(format, outcomeQueued)
	zapLogger.Info(zapLogger.ContextWithSymbol(ctx, alert.Symbol), "alert queued",
		zap.String("side", string(alert.Side)),
		zap.String("source", alert.Source),
		zap.String("signal", string(alert.SignalType)))
	return alert, nil
}

func (q *Queue) Enqueue(alert models.Alert) error {
	select {
	case q.alerts <- alert:
		return nil
	default:
		return serviceErrors.ErrAlertQueueFull
	}
}

// Run executes queued alerts one at a time until ctx ends.
func (q *Queue) Run(ctx context.Context) error {
	zapLogger.Info(ctx, "alert consumer started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case alert := <-q.alerts:
			q.execute(ctx, alert)
		}
	}
}

func (q *Queue) execute(ctx context.Context, alert models.Alert) {
	ctx = zapLogger.ContextWithSymbol(ctx, alert.Symbol)

	defer func() {
		if r := recover(); r != nil {
			zapLogger.Error(ctx, "alert execution panicked", zap.Any("panic", r))
		}
	}()

	if q.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.timeout)
		defer cancel()
	}

	result, err := q.trader.ExecuteTrade(ctx, q.Request(alert))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			zapLogger.Error(ctx, "alert trade timed out", zap.Duration("timeout", q.timeout))
			return
		}
		zapLogger.Error(ctx, "alert trade failed", zap.Error(err))
		return
	}

	zapLogger.Info(ctx, "alert trade executed",
		zap.String("order_hash", result.Order.Hash),
		zap.Bool("protected", result.Protected()))
}

// Request maps an alert onto a trade. Alert position_size is the fraction
// of equity at risk.
func (q *Queue) Request(alert models.Alert) models.TradeRequest {
	request := models.TradeRequest{
		Symbol:               alert.Symbol,
		Side:                 alert.Side,
		RiskPercentage:       orDefault(alert.PositionSize, q.defaults.PositionSize),
		StopLossPercentage:   orDefault(alert.StopLoss, q.defaults.StopLoss),
		TakeProfitPercentage: orDefault(alert.TakeProfit, q.defaults.TakeProfit),
		OrderType:            models.OrderTypeMarket,
	}

	leverage := q.defaults.Leverage
	if alert.Leverage != nil {
		leverage = *alert.Leverage
	}
	if leverage > 0 {
		request.Leverage = &leverage
	}

	return request
}

func (q *Queue) record(format, outcome string) {
	if q.recorder != nil {
		q.recorder.AlertReceived(format, outcome)
	}
}

func orDefault(value *decimal.Decimal, fallback decimal.Decimal) *decimal.Decimal {
	if value != nil {
		return value
	}
	return &fallback
}
