package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/retry"
)

const (
	rolePrimary = "primary"
	roleClose   = "close"
)

type Sizer interface {
	Size(
		ctx context.Context,
		symbol string,
		side models.Side,
		riskPercentage decimal.Decimal,
		stopLossPercentage decimal.Decimal,
		price decimal.Decimal,
	) (decimal.Decimal, error)
}

type LeverageGuard interface {
	EnsureLeverage(ctx context.Context, symbol string, target int) bool
}

type RiskGate interface {
	CanOpenNewTrade(ctx context.Context, symbol string, side models.Side) error
}

type Ledger interface {
	Register(ctx context.Context, order models.Order) error
	Get(ctx context.Context, hash string) (models.Order, error)
	Cancel(ctx context.Context, hash string) (models.Order, error)
}

// ParamsSource yields the current risk parameters. They are read once per
// trade, so updates apply from the next trade on.
type ParamsSource interface {
	RiskParams() models.RiskParams
}

type Recorder interface {
	OrderSubmitted(flow, orderType, role string, seconds float64)
	SubmitFailed(reason string)
	LegFailed(leg string)
}

// Defaults are the environment overrides sitting between explicit request
// values and RiskParams. Nil means not set.
type Defaults struct {
	RiskPercentage       *decimal.Decimal
	StopLossPercentage   *decimal.Decimal
	TakeProfitPercentage *decimal.Decimal
	Leverage             *int
}

type Dependencies struct {
	Client   exchange.Client
	Sizer    Sizer
	Guard    LeverageGuard
	Gate     RiskGate
	Ledger   Ledger
	Recorder Recorder
}

// Executor builds, submits and protects orders. The exchange capabilities
// are resolved once here.
type Executor struct {
	client       exchange.Client
	capabilities exchange.Capabilities
	sizer        Sizer
	guard        LeverageGuard
	gate         RiskGate
	ledger       Ledger
	recorder     Recorder
	tracer       trace.Tracer

	params   ParamsSource
	defaults Defaults
	policy   retry.Policy
	now      func() time.Time
}

func NewExecutor(deps Dependencies, params ParamsSource, defaults Defaults, policy retry.Policy) *Executor {
	capabilities := exchange.Resolve(deps.Client)

	zapLogger.Info(context.Background(), "exchange capabilities resolved",
		zap.String("flow", capabilities.Flow.String()),
		zap.Bool("closer", capabilities.Closer != nil),
		zap.Bool("canceller", capabilities.Canceller != nil),
		zap.Bool("events", capabilities.Events != nil))

	return &Executor{
		client:       deps.Client,
		capabilities: capabilities,
		sizer:        deps.Sizer,
		guard:        deps.Guard,
		gate:         deps.Gate,
		ledger:       deps.Ledger,
		recorder:     deps.Recorder,
		tracer:       otel.Tracer("perp-trader/execution"),
		params:       params,
		defaults:     defaults,
		policy:       policy,
		now:          time.Now,
	}
}

func (e *Executor) Capabilities() exchange.Capabilities {
	return e.capabilities
}

type resolved struct {
	risk       decimal.Decimal
	stopLoss   decimal.Decimal
	takeProfit decimal.Decimal
	leverage   int
	orderType  models.OrderType
}

// ExecuteTrade runs one trade: risk gate, price discovery, leverage guard,
// sizing, primary submission and the two protective legs. Leg failures are
// reported in the result and never fail the trade.
func (e *Executor) ExecuteTrade(ctx context.Context, request models.TradeRequest) (models.TradeResult, error) {
	const op = "Executor.ExecuteTrade"

	ctx = zapLogger.ContextWithSymbol(ctx, request.Symbol)
	ctx, span := e.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("symbol", request.Symbol),
		attribute.String("side", string(request.Side)),
	))
	defer span.End()

	result, err := e.executeTrade(ctx, request)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		zapLogger.Error(ctx, "trade failed", zap.String("side", string(request.Side)), zap.Error(err))
		return models.TradeResult{}, fmt.Errorf("%s: %w", op, err)
	}

	span.SetAttributes(
		attribute.String("order_hash", result.Order.Hash),
		attribute.Bool("protected", result.Protected()),
	)
	return result, nil
}

func (e *Executor) executeTrade(ctx context.Context, request models.TradeRequest) (models.TradeResult, error) {
	settings, err := e.resolve(request)
	if err != nil {
		e.failed("invalid_request")
		return models.TradeResult{}, err
	}

	if e.gate != nil {
		if err := e.gate.CanOpenNewTrade(ctx, request.Symbol, request.Side); err != nil {
			e.failed("risk_gate")
			return models.TradeResult{}, err
		}
	}

	marketPrice := e.MarketPrice(ctx, request.Symbol)

	price := decimal.Zero
	if request.Price != nil {
		price = *request.Price
	}
	if settings.orderType == models.OrderTypeLimit && !price.IsPositive() {
		price = marketPrice
		zapLogger.Info(ctx, "limit order without price, using market price",
			zap.String("price", price.String()))
	}

	if !e.guard.EnsureLeverage(ctx, request.Symbol, settings.leverage) {
		e.failed("leverage")
		return models.TradeResult{}, fmt.Errorf("%w: %s at %dx", serviceErrors.ErrLeverageNotEnsured, request.Symbol, settings.leverage)
	}

	quantity := decimal.Zero
	if request.PositionSize != nil {
		quantity = *request.PositionSize
	} else {
		sizingPrice := marketPrice
		if settings.orderType == models.OrderTypeLimit {
			sizingPrice = price
		}
		quantity, err = e.sizer.Size(ctx, request.Symbol, request.Side, settings.risk, settings.stopLoss, sizingPrice)
		if err != nil {
			e.failed("insufficient_balance")
			return models.TradeResult{}, err
		}
	}
	if !quantity.IsPositive() {
		e.failed("zero_quantity")
		return models.TradeResult{}, fmt.Errorf("%w: %s", serviceErrors.ErrZeroQuantity, quantity)
	}

	zapLogger.Info(ctx, "submitting order",
		zap.String("side", string(request.Side)),
		zap.String("type", string(settings.orderType)),
		zap.String("quantity", quantity.String()),
		zap.String("price", price.String()),
		zap.Int("leverage", settings.leverage),
		zap.String("flow", e.capabilities.Flow.String()))

	order, ack, err := e.submit(ctx, rolePrimary, models.OrderParams{
		ClientOrderID: uuid.NewString(),
		Symbol:        request.Symbol,
		Side:          request.Side,
		Type:          settings.orderType,
		Quantity:      quantity,
		Price:         price,
		Leverage:      settings.leverage,
	})
	if err != nil {
		e.failed("submission")
		return models.TradeResult{}, err
	}

	entry := ack.ExecutionPrice()
	if !entry.IsPositive() {
		entry = marketPrice
	}

	result := models.TradeResult{
		Order:       order,
		MarketPrice: marketPrice,
		EntryPrice:  entry,
	}
	result.StopLoss = e.placeLeg(ctx, models.LegStopLoss, order, entry, settings.stopLoss)
	result.TakeProfit = e.placeLeg(ctx, models.LegTakeProfit, order, entry, settings.takeProfit)

	if !result.Protected() {
		zapLogger.Warn(ctx, "trade placed without full protection",
			zap.String("order_hash", order.Hash),
			zap.Bool("stop_loss", result.StopLoss.Placed()),
			zap.Bool("take_profit", result.TakeProfit.Placed()))
	}

	return result, nil
}

// ClosePosition closes quantity of the open position in symbol, or all of
// it when quantity is nil.
func (e *Executor) ClosePosition(ctx context.Context, symbol string, quantity *decimal.Decimal) (models.Order, error) {
	const op = "Executor.ClosePosition"

	ctx = zapLogger.ContextWithSymbol(ctx, symbol)
	ctx, span := e.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("symbol", symbol)))
	defer span.End()

	if e.capabilities.Closer != nil {
		started := e.now()
		ack, err := e.capabilities.Closer.ClosePosition(ctx, symbol, quantity)
		if err != nil {
			span.RecordError(err)
			return models.Order{}, fmt.Errorf("%s: %w: %w", op, serviceErrors.ErrSubmissionFailed, err)
		}
		e.submitted(roleClose, models.OrderTypeMarket, started)

		order := models.NewOrder(models.OrderParams{
			Symbol:     symbol,
			Side:       ack.Side,
			Type:       models.OrderTypeMarket,
			Quantity:   ack.Quantity,
			Price:      ack.ExecutionPrice(),
			ReduceOnly: true,
		})
		if err := e.record(ctx, &order, ack); err != nil {
			return models.Order{}, fmt.Errorf("%s: %w", op, err)
		}
		return order, nil
	}

	positions, err := retry.Do(ctx, e.policy, "GetPositions", e.client.GetPositions)
	if err != nil {
		span.RecordError(err)
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	for _, position := range positions {
		if position.Symbol != symbol || position.Quantity.IsZero() {
			continue
		}

		size := position.Quantity
		if quantity != nil && quantity.IsPositive() && quantity.LessThan(size) {
			size = *quantity
		}

		order, _, err := e.submit(ctx, roleClose, models.OrderParams{
			ClientOrderID: uuid.NewString(),
			Symbol:        symbol,
			Side:          position.Side.ClosingSide(),
			Type:          models.OrderTypeMarket,
			Quantity:      size,
			Leverage:      max(position.Leverage, 1),
			ReduceOnly:    true,
		})
		if err != nil {
			span.RecordError(err)
			return models.Order{}, fmt.Errorf("%s: %w", op, err)
		}
		return order, nil
	}

	return models.Order{}, fmt.Errorf("%s: %s: %w", op, symbol, serviceErrors.ErrPositionNotFound)
}

// CancelOrder cancels a resting order on the exchange and flags it in the
// ledger. Orders with matched quantity cannot be cancelled.
func (e *Executor) CancelOrder(ctx context.Context, hash string) (models.Order, error) {
	const op = "Executor.CancelOrder"

	ctx = zapLogger.ContextWithOrderHash(ctx, hash)
	ctx, span := e.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("order_hash", hash)))
	defer span.End()

	if e.capabilities.Canceller == nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, exchangeErrors.ErrUnsupportedClient)
	}

	order, err := e.ledger.Get(ctx, hash)
	if err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	check := order
	if err := check.ApplyCancel(); err != nil {
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := e.capabilities.Canceller.CancelOrder(ctx, order.Symbol, hash); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		zapLogger.Error(ctx, "cancel rejected by exchange", zap.Error(err))
		return models.Order{}, fmt.Errorf("%s: %w: %w", op, serviceErrors.ErrCancelFailed, err)
	}

	cancelled, err := e.ledger.Cancel(ctx, hash)
	if err != nil {
		zapLogger.Error(ctx, "order cancelled on exchange but not in ledger", zap.Error(err))
		return models.Order{}, fmt.Errorf("%s: %w", op, err)
	}

	zapLogger.Info(ctx, "order cancelled", zap.String("symbol", order.Symbol))
	return cancelled, nil
}

// MarketPrice walks the price sources in order: exchange quote, order book
// mid, static table, constant fallback. It always returns a positive price.
func (e *Executor) MarketPrice(ctx context.Context, symbol string) decimal.Decimal {
	price, err := retry.Do(ctx, e.policy, "GetMarketPrice", func(ctx context.Context) (decimal.Decimal, error) {
		return e.client.GetMarketPrice(ctx, symbol)
	})
	if err == nil && price.IsPositive() {
		return price
	}
	zapLogger.Warn(ctx, "market price unavailable, trying order book", zap.Error(err))

	book, err := retry.Do(ctx, e.policy, "GetOrderbook", func(ctx context.Context) (models.Orderbook, error) {
		return e.client.GetOrderbook(ctx, symbol)
	})
	if err == nil {
		var mid decimal.Decimal
		if mid, err = exchange.MidPrice(book); err == nil && mid.IsPositive() {
			return mid
		}
	}
	zapLogger.Warn(ctx, "order book price unavailable, using static price", zap.Error(err))

	static, err := exchange.StaticPrice(symbol)
	if err == nil {
		return static
	}

	zapLogger.Warn(ctx, "no static price for symbol, using fallback",
		zap.String("price", exchange.FallbackPrice.String()),
		zap.Error(err))
	return exchange.FallbackPrice
}

func (e *Executor) resolve(request models.TradeRequest) (resolved, error) {
	if request.Symbol == "" {
		return resolved{}, fmt.Errorf("%w: empty symbol", serviceErrors.ErrInvalidTradeRequest)
	}
	if !request.Side.Valid() {
		return resolved{}, fmt.Errorf("%w: side %q", serviceErrors.ErrInvalidTradeRequest, request.Side)
	}
	if request.PositionSize != nil && !request.PositionSize.IsPositive() {
		return resolved{}, fmt.Errorf("%w: position size %s", serviceErrors.ErrInvalidTradeRequest, request.PositionSize)
	}

	orderType := request.OrderType
	if orderType == "" {
		orderType = models.OrderTypeMarket
	}
	if orderType != models.OrderTypeMarket && orderType != models.OrderTypeLimit {
		return resolved{}, fmt.Errorf("%w: primary order type %s", serviceErrors.ErrInvalidTradeRequest, orderType)
	}

	params := e.params.RiskParams()
	settings := resolved{
		risk:       pick(request.RiskPercentage, e.defaults.RiskPercentage, params.MaxRiskPerTrade),
		stopLoss:   pick(request.StopLossPercentage, e.defaults.StopLossPercentage, params.StopLossPercentage),
		takeProfit: pick(request.TakeProfitPercentage, e.defaults.TakeProfitPercentage, params.TakeProfitPercentage()),
		leverage:   pick(request.Leverage, e.defaults.Leverage, params.DefaultLeverage),
		orderType:  orderType,
	}
	if settings.leverage <= 0 {
		return resolved{}, fmt.Errorf("%w: leverage %d", serviceErrors.ErrInvalidTradeRequest, settings.leverage)
	}

	return settings, nil
}

// submit sends params through the resolved flow and registers the
// acknowledged order in the ledger.
func (e *Executor) submit(ctx context.Context, role string, params models.OrderParams) (models.Order, models.OrderAck, error) {
	started := e.now()

	ack, err := e.capabilities.Submit(ctx, params)
	if err != nil {
		return models.Order{}, models.OrderAck{}, fmt.Errorf("%w: %w", serviceErrors.ErrSubmissionFailed, err)
	}
	e.submitted(role, params.Type, started)

	order := models.NewOrder(params)
	if err := e.record(ctx, &order, ack); err != nil {
		return models.Order{}, ack, err
	}

	return order, ack, nil
}

func (e *Executor) record(ctx context.Context, order *models.Order, ack models.OrderAck) error {
	if err := order.MarkCreated(ack.Hash, e.now()); err != nil {
		return fmt.Errorf("%w: %w", serviceErrors.ErrSubmissionFailed, err)
	}

	if err := e.ledger.Register(ctx, *order); err != nil {
		zapLogger.Error(ctx, "order accepted by exchange but not registered",
			zap.String("order_hash", order.Hash),
			zap.Error(err))
	}

	zapLogger.Info(ctx, "order created",
		zap.String("order_hash", order.Hash),
		zap.String("side", string(order.Side)),
		zap.String("type", string(order.Type)),
		zap.String("quantity", order.Quantity.String()))
	return nil
}

// placeLeg submits one reduce-only protective order on the opposite side.
// A zero percentage means the leg is not requested.
func (e *Executor) placeLeg(
	ctx context.Context,
	kind models.LegKind,
	primary models.Order,
	entry decimal.Decimal,
	percentage decimal.Decimal,
) models.LegResult {
	leg := models.LegResult{Kind: kind, Requested: percentage.IsPositive()}
	if !leg.Requested {
		return leg
	}

	params := models.OrderParams{
		ClientOrderID: uuid.NewString(),
		Symbol:        primary.Symbol,
		Side:          primary.Side.Opposite(),
		Quantity:      primary.Quantity,
		Price:         LegPrice(kind, primary.Side, entry, percentage),
		Leverage:      primary.Leverage,
		ReduceOnly:    true,
	}
	switch kind {
	case models.LegStopLoss:
		params.Type = models.OrderTypeStopMarket
	case models.LegTakeProfit:
		params.Type = models.OrderTypeLimit
	}

	order, _, err := e.submit(ctx, string(kind), params)
	if err != nil {
		leg.Err = err
		if e.recorder != nil {
			e.recorder.LegFailed(string(kind))
		}
		zapLogger.Warn(ctx, "protective leg not placed",
			zap.String("leg", string(kind)),
			zap.String("price", params.Price.String()),
			zap.Error(err))
		return leg
	}

	leg.Order = &order
	return leg
}

// LegPrice is the trigger price of a protective leg for a primary order on
// side filled at entry.
func LegPrice(kind models.LegKind, side models.Side, entry, percentage decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)

	below := kind == models.LegStopLoss
	if side == models.SideSell {
		below = !below
	}
	if below {
		return entry.Mul(one.Sub(percentage))
	}
	return entry.Mul(one.Add(percentage))
}

func (e *Executor) submitted(role string, orderType models.OrderType, started time.Time) {
	if e.recorder != nil {
		e.recorder.OrderSubmitted(e.capabilities.Flow.String(), string(orderType), role, e.now().Sub(started).Seconds())
	}
}

func (e *Executor) failed(reason string) {
	if e.recorder != nil {
		e.recorder.SubmitFailed(reason)
	}
}

func pick[T any](explicit, fallback *T, base T) T {
	if explicit != nil {
		return *explicit
	}
	if fallback != nil {
		return *fallback
	}
	return base
}
