package rest

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	exchangeErrors "github.com/nastyazhadan/perp-trader/shared/errors/exchange"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
	"github.com/nastyazhadan/perp-trader/traderService/internal/exchange"
)

const (
	accountPath        = "/account"
	positionsPath      = "/userPosition"
	marketDataPath     = "/marketData"
	orderbookPath      = "/orderbook"
	userLeveragePath   = "/account/userLeverage"
	adjustLeveragePath = "/account/adjustLeverage"
	ordersPath         = "/orders"
	cancelOrdersPath   = "/orders/cancel"
	tradesHistoryPath  = "/userTradesHistory"

	orderbookDepth  = "10"
	maxHistoryPage  = 50
	defaultHistPage = 50
)

// Transport is the subset of transport.Client the adapters use.
type Transport interface {
	Get(ctx context.Context, path string, query map[string]string, out any) error
	Post(ctx context.Context, path string, body, out any) error
}

// API covers the read, leverage, cancel and history endpoints shared by
// both live submission flows. It does not submit orders.
type API struct {
	transport Transport
	events    exchange.EventSource
}

// NewAPI wires the endpoints; events may be nil when no stream is configured.
func NewAPI(transport Transport, events exchange.EventSource) *API {
	return &API{transport: transport, events: events}
}

func (a *API) GetAccountInfo(ctx context.Context) (models.Account, error) {
	const op = "API.GetAccountInfo"

	var response accountResponse
	if err := a.transport.Get(ctx, accountPath, nil, &response); err != nil {
		return models.Account{}, fmt.Errorf("%s: %w", op, err)
	}

	return response.toDomain(), nil
}

func (a *API) GetPositions(ctx context.Context) ([]models.Position, error) {
	const op = "API.GetPositions"

	var response []positionResponse
	if err := a.transport.Get(ctx, positionsPath, nil, &response); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	positions := make([]models.Position, 0, len(response))
	for _, position := range response {
		if position.Quantity.IsZero() {
			continue
		}
		positions = append(positions, position.toDomain())
	}

	return positions, nil
}

func (a *API) GetMarginBankBalance(ctx context.Context) (decimal.Decimal, error) {
	const op = "API.GetMarginBankBalance"

	var response balanceResponse
	if err := a.transport.Get(ctx, accountPath+"/marginBank", nil, &response); err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}

	return response.Balance, nil
}

// GetMarketPrice returns the mark price.
func (a *API) GetMarketPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	const op = "API.GetMarketPrice"

	var response marketDataResponse
	if err := a.transport.Get(ctx, marketDataPath, map[string]string{"symbol": symbol}, &response); err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", op, err)
	}
	if !response.MarkPrice.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s: %s: %w", op, symbol, exchangeErrors.ErrInvalidPrice)
	}

	return response.MarkPrice, nil
}

func (a *API) GetOrderbook(ctx context.Context, symbol string) (models.Orderbook, error) {
	const op = "API.GetOrderbook"

	var response orderbookResponse
	query := map[string]string{"symbol": symbol, "limit": orderbookDepth}
	if err := a.transport.Get(ctx, orderbookPath, query, &response); err != nil {
		return models.Orderbook{}, fmt.Errorf("%s: %w", op, err)
	}

	book := response.toDomain()
	book.Symbol = symbol
	return book, nil
}

func (a *API) GetUserLeverage(ctx context.Context, symbol string) (int, error) {
	const op = "API.GetUserLeverage"

	var response leverageResponse
	if err := a.transport.Get(ctx, userLeveragePath, map[string]string{"symbol": symbol}, &response); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return response.Leverage, nil
}

func (a *API) SetLeverage(ctx context.Context, symbol string, leverage int) (exchange.LeverageResult, error) {
	const op = "API.SetLeverage"

	var response adjustLeverageResponse
	request := adjustLeverageRequest{Symbol: symbol, Leverage: leverage}
	if err := a.transport.Post(ctx, adjustLeveragePath, request, &response); err != nil {
		return exchange.LeverageResult{}, fmt.Errorf("%s: %w", op, err)
	}

	return exchange.LeverageResult{Success: response.Success, Leverage: response.Leverage}, nil
}

func (a *API) CancelOrder(ctx context.Context, symbol, orderHash string) error {
	const op = "API.CancelOrder"

	request := cancelOrderRequest{Symbol: symbol, OrderHashes: []string{orderHash}}
	if err := a.transport.Post(ctx, cancelOrdersPath, request, nil); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (a *API) GetUserTradesHistory(ctx context.Context, filter models.TradeFilter) ([]models.Trade, error) {
	const op = "API.GetUserTradesHistory"

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = defaultHistPage
	}
	pageSize = min(pageSize, maxHistoryPage)

	query := map[string]string{
		"pageSize":   strconv.Itoa(pageSize),
		"pageNumber": strconv.Itoa(max(filter.Page, 1)),
	}
	if filter.Symbol != "" {
		query["symbol"] = filter.Symbol
	}
	if filter.Side != "" {
		query["side"] = string(filter.Side)
	}
	if !filter.From.IsZero() {
		query["startTime"] = strconv.FormatInt(filter.From.UnixMilli(), 10)
	}
	if !filter.To.IsZero() {
		query["endTime"] = strconv.FormatInt(filter.To.UnixMilli(), 10)
	}

	var response []tradeResponse
	if err := a.transport.Get(ctx, tradesHistoryPath, query, &response); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	trades := make([]models.Trade, 0, len(response))
	for _, trade := range response {
		trades = append(trades, trade.toDomain())
	}
	return trades, nil
}

func (a *API) Subscribe(ctx context.Context) (<-chan models.OrderEvent, error) {
	if a.events == nil {
		return nil, fmt.Errorf("API.Subscribe: %w", exchangeErrors.ErrUnsupportedClient)
	}
	return a.events.Subscribe(ctx)
}

// PostOrder sends an already built order request.
func (a *API) PostOrder(ctx context.Context, request OrderRequest) (models.OrderAck, error) {
	const op = "API.PostOrder"

	var response OrderResponse
	if err := a.transport.Post(ctx, ordersPath, request, &response); err != nil {
		return models.OrderAck{}, fmt.Errorf("%s: %w", op, err)
	}
	if response.Hash == "" {
		return models.OrderAck{}, fmt.Errorf("%s: %w: empty order hash", op, exchangeErrors.ErrRejected)
	}

	return response.ToDomain(), nil
}

// ClosingOrder builds the reduce-only market order that closes quantity of
// the open position in symbol, or all of it when quantity is nil.
func ClosingOrder(ctx context.Context, client exchange.Client, symbol string, quantity *decimal.Decimal) (models.OrderParams, error) {
	const op = "rest.ClosingOrder"

	positions, err := client.GetPositions(ctx)
	if err != nil {
		return models.OrderParams{}, fmt.Errorf("%s: %w", op, err)
	}

	for _, position := range positions {
		if position.Symbol != symbol || position.Quantity.IsZero() {
			continue
		}

		size := position.Quantity
		if quantity != nil && quantity.IsPositive() && quantity.LessThan(size) {
			size = *quantity
		}

		return models.OrderParams{
			Symbol:     symbol,
			Side:       position.Side.ClosingSide(),
			Type:       models.OrderTypeMarket,
			Quantity:   size,
			Leverage:   max(position.Leverage, 1),
			ReduceOnly: true,
		}, nil
	}

	return models.OrderParams{}, fmt.Errorf("%s: no open position in %s: %w", op, symbol, exchangeErrors.ErrRejected)
}
