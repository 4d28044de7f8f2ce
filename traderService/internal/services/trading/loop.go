package trading

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nastyazhadan/perp-trader/shared/config"
	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

const (
	outcomeTraded        = "traded"
	outcomeHold          = "hold"
	outcomeLowConfidence = "low_confidence"
	outcomeFailed        = "failed"
	outcomePanic         = "panic"
)

type Provider interface {
	GetRecommendation(ctx context.Context, symbol, timeframe string) (models.Recommendation, error)
}

type Trader interface {
	ExecuteTrade(ctx context.Context, request models.TradeRequest) (models.TradeResult, error)
}

type Recorder interface {
	LoopIteration(outcome string)
}

type Options struct {
	Symbols       []string
	Timeframe     string
	Interval      time.Duration
	ErrorCooldown time.Duration
	MinConfidence float64
	TradeTimeout  time.Duration
}

func OptionsFromConfig(cfg config.LoopConfig, tradeTimeout time.Duration) Options {
	return Options{
		Symbols:       cfg.Symbols,
		Timeframe:     cfg.Timeframe,
		Interval:      cfg.AnalysisInterval,
		ErrorCooldown: cfg.ErrorCooldown,
		MinConfidence: cfg.MinConfidence,
		TradeTimeout:  tradeTimeout,
	}
}

// Loop periodically asks the provider for a recommendation per symbol and
// executes the confident ones. It is started and stopped at runtime.
type Loop struct {
	provider Provider
	trader   Trader
	recorder Recorder
	options  Options

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewLoop(provider Provider, trader Trader, options Options, recorder Recorder) *Loop {
	return &Loop{
		provider: provider,
		trader:   trader,
		recorder: recorder,
		options:  options,
	}
}

// Start launches the loop. It keeps ctx values but not its cancellation;
// the loop runs until Stop.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return serviceErrors.ErrLoopAlreadyRunning
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.run(loopCtx, l.done)

	zapLogger.Info(ctx, "trading loop started",
		zap.Strings("symbols", l.options.Symbols),
		zap.Duration("interval", l.options.Interval))
	return nil
}

// Stop cancels the loop and waits for the current iteration to finish.
func (l *Loop) Stop() error {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return serviceErrors.ErrLoopNotRunning
	}

	cancel()
	<-done

	zapLogger.Info(context.Background(), "trading loop stopped")
	return nil
}

func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.cancel != nil
}

func (l *Loop) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		wait := l.options.Interval
		if err := l.iterate(ctx); err != nil {
			zapLogger.Error(ctx, "trading loop iteration failed",
				zap.Duration("cooldown", l.options.ErrorCooldown),
				zap.Error(err))
			wait = l.options.ErrorCooldown
		}
		timer.Reset(wait)
	}
}

func (l *Loop) iterate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l.record(outcomePanic)
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return l.RunOnce(ctx)
}

// RunOnce evaluates every symbol once. A failing symbol does not stop the
// others; their errors are joined.
func (l *Loop) RunOnce(ctx context.Context) error {
	var errs []error
	for _, symbol := range l.options.Symbols {
		if ctx.Err() != nil {
			break
		}
		if err := l.evaluate(ctx, symbol); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
		}
	}
	return errors.Join(errs...)
}

func (l *Loop) evaluate(ctx context.Context, symbol string) error {
	ctx = zapLogger.ContextWithSymbol(ctx, symbol)

	recommendation, err := l.provider.GetRecommendation(ctx, symbol, l.options.Timeframe)
	if err != nil {
		l.record(outcomeFailed)
		return err
	}

	request, ok := l.Request(symbol, recommendation)
	if !ok {
		return nil
	}

	if l.options.TradeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.options.TradeTimeout)
		defer cancel()
	}

	result, err := l.trader.ExecuteTrade(ctx, request)
	if err != nil {
		l.record(outcomeFailed)
		return err
	}

	l.record(outcomeTraded)
	zapLogger.Info(ctx, "recommendation executed",
		zap.String("order_hash", result.Order.Hash),
		zap.String("reason", recommendation.Reason))
	return nil
}

// Request turns a recommendation into a trade, or reports false when it
// should not be acted on.
func (l *Loop) Request(symbol string, recommendation models.Recommendation) (models.TradeRequest, bool) {
	side, ok := recommendation.Action.Side()
	if !ok {
		l.record(outcomeHold)
		return models.TradeRequest{}, false
	}

	confidence := models.NormalizeConfidence(recommendation.Confidence)
	if confidence < l.options.MinConfidence {
		l.record(outcomeLowConfidence)
		zapLogger.Info(zapLogger.ContextWithSymbol(context.Background(), symbol), "recommendation below confidence threshold",
			zap.String("action", string(recommendation.Action)),
			zap.Float64("confidence", confidence))
		return models.TradeRequest{}, false
	}

	request := models.TradeRequest{
		Symbol:    symbol,
		Side:      side,
		OrderType: models.OrderTypeMarket,
	}
	if distance := models.DistancePercentage(recommendation.EntryPrice, recommendation.StopLoss); distance.IsPositive() {
		request.StopLossPercentage = &distance
	}
	if distance := models.DistancePercentage(recommendation.EntryPrice, recommendation.TakeProfit); distance.IsPositive() {
		request.TakeProfitPercentage = &distance
	}

	return request, true
}

func (l *Loop) record(outcome string) {
	if l.recorder != nil {
		l.recorder.LoopIteration(outcome)
	}
}
