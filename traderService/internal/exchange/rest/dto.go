package rest

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

type accountResponse struct {
	Address           string          `json:"address"`
	AccountValue      decimal.Decimal `json:"accountValue"`
	FreeCollateral    decimal.Decimal `json:"freeCollateral"`
	RealizedPnLToday  decimal.Decimal `json:"accountDataByMarket24hRealizedPnl"`
	StartOfDayBalance decimal.Decimal `json:"walletBalanceStartOfDay"`
}

func (a accountResponse) toDomain() models.Account {
	return models.Account{
		Address:           a.Address,
		Balance:           a.AccountValue,
		FreeCollateral:    a.FreeCollateral,
		RealizedPnLToday:  a.RealizedPnLToday,
		StartOfDayBalance: a.StartOfDayBalance,
	}
}

type balanceResponse struct {
	Balance decimal.Decimal `json:"balance"`
}

type positionResponse struct {
	Symbol           string          `json:"symbol"`
	Side             string          `json:"side"`
	AvgEntryPrice    decimal.Decimal `json:"avgEntryPrice"`
	MarkPrice        decimal.Decimal `json:"oraclePrice"`
	Quantity         decimal.Decimal `json:"quantity"`
	Leverage         int             `json:"leverage"`
	UnrealizedProfit decimal.Decimal `json:"unrealizedProfit"`
}

func (p positionResponse) toDomain() models.Position {
	side := models.PositionLong
	if strings.EqualFold(p.Side, string(models.SideSell)) || strings.EqualFold(p.Side, string(models.PositionShort)) {
		side = models.PositionShort
	}

	return models.Position{
		Symbol:        p.Symbol,
		Side:          side,
		EntryPrice:    p.AvgEntryPrice,
		MarkPrice:     p.MarkPrice,
		Quantity:      p.Quantity.Abs(),
		Leverage:      p.Leverage,
		UnrealizedPnL: p.UnrealizedProfit,
	}
}

type marketDataResponse struct {
	Symbol    string          `json:"symbol"`
	MarkPrice decimal.Decimal `json:"markPrice"`
}

type orderbookResponse struct {
	Symbol string               `json:"symbol"`
	Bids   [][2]decimal.Decimal `json:"bids"`
	Asks   [][2]decimal.Decimal `json:"asks"`
}

func (o orderbookResponse) toDomain() models.Orderbook {
	return models.Orderbook{
		Symbol: o.Symbol,
		Bids:   levels(o.Bids),
		Asks:   levels(o.Asks),
	}
}

func levels(raw [][2]decimal.Decimal) []models.OrderbookLevel {
	out := make([]models.OrderbookLevel, 0, len(raw))
	for _, level := range raw {
		out = append(out, models.OrderbookLevel{Price: level[0], Quantity: level[1]})
	}
	return out
}

type leverageResponse struct {
	Leverage int `json:"leverage"`
}

type adjustLeverageRequest struct {
	Symbol   string `json:"symbol"`
	Leverage int    `json:"leverage"`
}

type adjustLeverageResponse struct {
	Success  bool `json:"success"`
	Leverage int  `json:"leverage"`
}

// OrderRequest is the wire form of a new order for both live flows.
type OrderRequest struct {
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	OrderType  string          `json:"orderType"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Leverage   int             `json:"leverage"`
	ReduceOnly bool            `json:"reduceOnly"`
	ClientID   string          `json:"clientId,omitempty"`
	Salt       string          `json:"salt,omitempty"`
	Expiration int64           `json:"expiration,omitempty"`
	Signature  string          `json:"orderSignature,omitempty"`
}

func NewOrderRequest(params models.OrderParams) OrderRequest {
	return OrderRequest{
		Symbol:     params.Symbol,
		Side:       string(params.Side),
		OrderType:  string(params.Type),
		Quantity:   params.Quantity,
		Price:      params.Price,
		Leverage:   params.Leverage,
		ReduceOnly: params.ReduceOnly,
		ClientID:   params.ClientOrderID,
	}
}

// OrderResponse is the exchange acknowledgement of a posted order.
type OrderResponse struct {
	Hash         string          `json:"hash"`
	Symbol       string          `json:"symbol"`
	Side         string          `json:"side"`
	OrderType    string          `json:"orderType"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	AvgFillPrice decimal.Decimal `json:"avgFillPrice"`
	Status       string          `json:"orderStatus"`
}

func (o OrderResponse) ToDomain() models.OrderAck {
	return models.OrderAck{
		Hash:         o.Hash,
		Symbol:       o.Symbol,
		Side:         models.Side(strings.ToUpper(o.Side)),
		Type:         models.OrderType(strings.ToUpper(o.OrderType)),
		Quantity:     o.Quantity,
		Price:        o.Price,
		AvgFillPrice: o.AvgFillPrice,
		Status:       o.Status,
	}
}

type cancelOrderRequest struct {
	Symbol      string   `json:"symbol"`
	OrderHashes []string `json:"orderHashes"`
}

type tradeResponse struct {
	ID          string          `json:"id"`
	OrderHash   string          `json:"orderHash"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Commission  decimal.Decimal `json:"commission"`
	RealizedPnL decimal.Decimal `json:"realizedPnl"`
	CreatedAtMs int64           `json:"createdAt"`
}

func (t tradeResponse) toDomain() models.Trade {
	return models.Trade{
		ID:          t.ID,
		OrderHash:   t.OrderHash,
		Symbol:      t.Symbol,
		Side:        models.Side(strings.ToUpper(t.Side)),
		Price:       t.Price,
		Quantity:    t.Quantity,
		Fee:         t.Commission,
		RealizedPnL: t.RealizedPnL,
		ExecutedAt:  time.UnixMilli(t.CreatedAtMs),
	}
}
