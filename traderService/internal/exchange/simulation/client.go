package simulation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange"
)

const (
	maxPageSize     = 50
	defaultLeverage = 1
	eventBuffer     = 256
)

// Client is an in-process exchange. Market orders fill immediately at the
// current price; other orders rest until cancelled.
type Client struct {
	mu sync.Mutex

	balance           decimal.Decimal
	startOfDayBalance decimal.Decimal
	prices            map[string]decimal.Decimal
	leverage          map[string]int
	positions         map[string]*models.Position
	openOrders        map[string]models.OrderAck
	trades            []models.Trade
	subscribers       []chan models.OrderEvent
	now               func() time.Time
}

func New(balance decimal.Decimal) *Client {
	return &Client{
		balance:           balance,
		startOfDayBalance: balance,
		prices:            make(map[string]decimal.Decimal),
		leverage:          make(map[string]int),
		positions:         make(map[string]*models.Position),
		openOrders:        make(map[string]models.OrderAck),
		now:               time.Now,
	}
}

// SetPrice overrides the simulated price of a symbol.
func (c *Client) SetPrice(symbol string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prices[symbol] = price
	if position, ok := c.positions[symbol]; ok {
		c.markPosition(position, price)
	}
}

func (c *Client) GetAccountInfo(ctx context.Context) (models.Account, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	used := decimal.Zero
	for _, position := range c.positions {
		notional := position.Quantity.Mul(position.EntryPrice)
		used = used.Add(notional.Div(decimal.NewFromInt(int64(max(position.Leverage, 1)))))
	}

	return models.Account{
		Address:           "simulation",
		Balance:           c.balance,
		FreeCollateral:    c.balance.Sub(used),
		RealizedPnLToday:  c.balance.Sub(c.startOfDayBalance),
		StartOfDayBalance: c.startOfDayBalance,
	}, nil
}

func (c *Client) GetPositions(ctx context.Context) ([]models.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	positions := make([]models.Position, 0, len(c.positions))
	for _, position := range c.positions {
		positions = append(positions, *position)
	}
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Symbol < positions[j].Symbol
	})

	return positions, nil
}

func (c *Client) GetMarginBankBalance(ctx context.Context) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.balance, nil
}

func (c *Client) GetMarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.priceLocked(symbol), nil
}

// GetOrderbook returns a one-level book 0.1% around the simulated price.
func (c *Client) GetOrderbook(ctx context.Context, symbol string) (models.Orderbook, error) {
	c.mu.Lock()
	price := c.priceLocked(symbol)
	c.mu.Unlock()

	spread := price.Mul(decimal.RequireFromString("0.001"))
	return models.Orderbook{
		Symbol: symbol,
		Bids:   []models.OrderbookLevel{{Price: price.Sub(spread), Quantity: decimal.NewFromInt(100)}},
		Asks:   []models.OrderbookLevel{{Price: price.Add(spread), Quantity: decimal.NewFromInt(100)}},
	}, nil
}

func (c *Client) GetUserLeverage(ctx context.Context, symbol string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if leverage, ok := c.leverage[symbol]; ok {
		return leverage, nil
	}
	return defaultLeverage, nil
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) (exchange.LeverageResult, error) {
	if leverage <= 0 {
		return exchange.LeverageResult{}, fmt.Errorf("leverage must be positive, got %d", leverage)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.leverage[symbol] = leverage
	return exchange.LeverageResult{Success: true, Leverage: leverage}, nil
}

func (c *Client) PlaceOrder(ctx context.Context, params models.OrderParams) (models.OrderAck, error) {
	const op = "simulation.Client.PlaceOrder"

	if !params.Quantity.IsPositive() {
		return models.OrderAck{}, fmt.Errorf("%s: %w: quantity must be positive", op, exchangeErrors.ErrRejected)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ack := models.OrderAck{
		Hash:     newHash(),
		Symbol:   params.Symbol,
		Side:     params.Side,
		Type:     params.Type,
		Quantity: params.Quantity,
		Price:    params.Price,
		Status:   "OPEN",
	}

	if params.Type != models.OrderTypeMarket {
		c.openOrders[ack.Hash] = ack
		return ack, nil
	}

	price := c.priceLocked(params.Symbol)
	filled, err := c.fillLocked(params, price)
	if err != nil {
		return models.OrderAck{}, fmt.Errorf("%s: %w", op, err)
	}

	ack.Quantity = filled
	ack.Price = price
	ack.AvgFillPrice = price
	ack.Status = "FILLED"

	c.trades = append(c.trades, models.Trade{
		ID:         uuid.NewString(),
		OrderHash:  ack.Hash,
		Symbol:     params.Symbol,
		Side:       params.Side,
		Price:      price,
		Quantity:   filled,
		ExecutedAt: c.now(),
	})

	c.publishLocked(ctx, models.OrderEvent{
		Kind:          models.EventOrderSettlement,
		OrderHash:     ack.Hash,
		Symbol:        params.Symbol,
		Quantity:      filled,
		IsBuy:         params.Side == models.SideBuy,
		AvgFillPrice:  price,
		FillID:        uuid.NewString(),
		MatchedOrders: []models.MatchedOrder{{FillPrice: price, Quantity: filled}},
	})

	return ack, nil
}

func (c *Client) CancelOrder(ctx context.Context, symbol, orderHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ack, ok := c.openOrders[orderHash]
	if !ok {
		return fmt.Errorf("simulation.Client.CancelOrder: %w: %s", exchangeErrors.ErrRejected, orderHash)
	}
	delete(c.openOrders, orderHash)

	c.publishLocked(ctx, models.OrderEvent{
		Kind:      models.EventOrderCancelledReversion,
		OrderHash: orderHash,
		Symbol:    ack.Symbol,
		Quantity:  ack.Quantity,
		IsBuy:     ack.Side == models.SideBuy,
	})
	return nil
}

func (c *Client) ClosePosition(ctx context.Context, symbol string, quantity *decimal.Decimal) (models.OrderAck, error) {
	c.mu.Lock()
	position, ok := c.positions[symbol]
	var params models.OrderParams
	if ok {
		size := position.Quantity
		if quantity != nil && quantity.IsPositive() && quantity.LessThan(size) {
			size = *quantity
		}
		params = models.OrderParams{
			Symbol:     symbol,
			Side:       position.Side.ClosingSide(),
			Type:       models.OrderTypeMarket,
			Quantity:   size,
			Leverage:   position.Leverage,
			ReduceOnly: true,
		}
	}
	c.mu.Unlock()

	if !ok {
		return models.OrderAck{}, fmt.Errorf("simulation.Client.ClosePosition: %w: no position in %s",
			exchangeErrors.ErrRejected, symbol)
	}

	return c.PlaceOrder(ctx, params)
}

// GetUserTradesHistory filters fills newest first. Pages start at 1 and
// hold at most 50 trades.
func (c *Client) GetUserTradesHistory(ctx context.Context, filter models.TradeFilter) ([]models.Trade, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	matched := make([]models.Trade, 0, len(c.trades))
	for i := len(c.trades) - 1; i >= 0; i-- {
		trade := c.trades[i]
		if filter.Symbol != "" && trade.Symbol != filter.Symbol {
			continue
		}
		if filter.Side != "" && trade.Side != filter.Side {
			continue
		}
		if !filter.From.IsZero() && trade.ExecutedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && trade.ExecutedAt.After(filter.To) {
			continue
		}
		matched = append(matched, trade)
	}

	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := max(filter.Page, 1)

	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []models.Trade{}, nil
	}
	end := min(start+pageSize, len(matched))

	return matched[start:end], nil
}

// Subscribe returns a channel of fills and cancellations. It is closed when
// ctx is done. Events are dropped when the subscriber falls behind.
func (c *Client) Subscribe(ctx context.Context) (<-chan models.OrderEvent, error) {
	events := make(chan models.OrderEvent, eventBuffer)

	c.mu.Lock()
	c.subscribers = append(c.subscribers, events)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()

		c.mu.Lock()
		defer c.mu.Unlock()
		for i, subscriber := range c.subscribers {
			if subscriber == events {
				c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
				break
			}
		}
		close(events)
	}()

	return events, nil
}

// Requeue emits a requeue event for a resting order.
func (c *Client) Requeue(ctx context.Context, orderHash string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ack, ok := c.openOrders[orderHash]
	if !ok {
		return fmt.Errorf("simulation.Client.Requeue: %w: %s", exchangeErrors.ErrRejected, orderHash)
	}

	c.publishLocked(ctx, models.OrderEvent{
		Kind:      models.EventOrderRequeue,
		OrderHash: orderHash,
		Symbol:    ack.Symbol,
		Quantity:  ack.Quantity,
		IsBuy:     ack.Side == models.SideBuy,
	})
	return nil
}

func (c *Client) priceLocked(symbol string) decimal.Decimal {
	if price, ok := c.prices[symbol]; ok {
		return price
	}
	if price, err := exchange.StaticPrice(symbol); err == nil {
		return price
	}
	return exchange.FallbackPrice
}

// fillLocked applies a fill to the position book and returns the filled size.
func (c *Client) fillLocked(params models.OrderParams, price decimal.Decimal) (decimal.Decimal, error) {
	quantity := params.Quantity
	position, exists := c.positions[params.Symbol]

	if params.ReduceOnly {
		if !exists || position.Side.ClosingSide() != params.Side {
			return decimal.Zero, fmt.Errorf("%w: reduce-only order would increase exposure", exchangeErrors.ErrRejected)
		}
		quantity = decimal.Min(quantity, position.Quantity)
	}

	leverage := max(params.Leverage, c.leverageLocked(params.Symbol))
	side := models.PositionLong
	if params.Side == models.SideSell {
		side = models.PositionShort
	}

	if !exists {
		c.positions[params.Symbol] = &models.Position{
			Symbol:     params.Symbol,
			Side:       side,
			EntryPrice: price,
			MarkPrice:  price,
			Quantity:   quantity,
			Leverage:   leverage,
		}
		return quantity, nil
	}

	if position.Side == side {
		total := position.Quantity.Add(quantity)
		position.EntryPrice = position.EntryPrice.Mul(position.Quantity).
			Add(price.Mul(quantity)).
			Div(total)
		position.Quantity = total
		c.markPosition(position, price)
		return quantity, nil
	}

	closing := decimal.Min(quantity, position.Quantity)
	c.balance = c.balance.Add(realizedPnL(position, price, closing))

	remaining := quantity.Sub(closing)
	position.Quantity = position.Quantity.Sub(closing)

	switch {
	case position.Quantity.IsZero() && remaining.IsPositive():
		position.Side = side
		position.EntryPrice = price
		position.Quantity = remaining
		c.markPosition(position, price)
	case position.Quantity.IsZero():
		delete(c.positions, params.Symbol)
	default:
		c.markPosition(position, price)
	}

	return quantity, nil
}

func (c *Client) leverageLocked(symbol string) int {
	if leverage, ok := c.leverage[symbol]; ok {
		return leverage
	}
	return defaultLeverage
}

func (c *Client) markPosition(position *models.Position, price decimal.Decimal) {
	position.MarkPrice = price
	position.UnrealizedPnL = realizedPnL(position, price, position.Quantity)
}

func (c *Client) publishLocked(ctx context.Context, event models.OrderEvent) {
	for _, subscriber := range c.subscribers {
		select {
		case subscriber <- event:
		default:
			zapLogger.Warn(ctx, "simulation subscriber is full, dropping event",
				zap.String("kind", string(event.Kind)),
				zap.String("order_hash", event.OrderHash))
		}
	}
}

func realizedPnL(position *models.Position, price, quantity decimal.Decimal) decimal.Decimal {
	diff := price.Sub(position.EntryPrice)
	if position.Side == models.PositionShort {
		diff = diff.Neg()
	}
	return diff.Mul(quantity)
}

func newHash() string {
	return "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
