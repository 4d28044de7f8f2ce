package trader

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

type openTradeRequest struct {
	Symbol               string           `json:"symbol"`
	Side                 string           `json:"side"`
	PositionSize         *decimal.Decimal `json:"position_size"`
	RiskPercentage       *decimal.Decimal `json:"risk_percentage"`
	Leverage             *int             `json:"leverage"`
	StopLossPercentage   *decimal.Decimal `json:"stop_loss_percentage"`
	TakeProfitPercentage *decimal.Decimal `json:"take_profit_percentage"`
	OrderType            string           `json:"order_type"`
	Price                *decimal.Decimal `json:"price"`
}

type closeTradeRequest struct {
	Symbol   string           `json:"symbol"`
	Quantity *decimal.Decimal `json:"quantity"`
}

type cancelOrderRequest struct {
	OrderHash string `json:"order_hash"`
}

type configureRequest struct {
	MaxRiskPerTrade      *decimal.Decimal `json:"max_risk_per_trade"`
	MaxPositionSizeUSD   *decimal.Decimal `json:"max_position_size_usd"`
	DefaultLeverage      *int             `json:"default_leverage"`
	StopLossPercentage   *decimal.Decimal `json:"stop_loss_percentage"`
	TakeProfitMultiplier *decimal.Decimal `json:"take_profit_multiplier"`
	MaxOpenPositions     *int             `json:"max_open_positions"`
	MaxDailyLoss         *decimal.Decimal `json:"max_daily_loss"`
}

func (c configureRequest) toDomain() models.RiskParamsUpdate {
	return models.RiskParamsUpdate{
		MaxRiskPerTrade:      c.MaxRiskPerTrade,
		MaxPositionSizeUSD:   c.MaxPositionSizeUSD,
		DefaultLeverage:      c.DefaultLeverage,
		StopLossPercentage:   c.StopLossPercentage,
		TakeProfitMultiplier: c.TakeProfitMultiplier,
		MaxOpenPositions:     c.MaxOpenPositions,
		MaxDailyLoss:         c.MaxDailyLoss,
	}
}

type riskParamsResponse struct {
	MaxRiskPerTrade      decimal.Decimal `json:"max_risk_per_trade"`
	MaxPositionSizeUSD   decimal.Decimal `json:"max_position_size_usd"`
	DefaultLeverage      int             `json:"default_leverage"`
	StopLossPercentage   decimal.Decimal `json:"stop_loss_percentage"`
	TakeProfitMultiplier decimal.Decimal `json:"take_profit_multiplier"`
	MaxOpenPositions     int             `json:"max_open_positions"`
	MaxDailyLoss         decimal.Decimal `json:"max_daily_loss"`
}

func newRiskParamsResponse(params models.RiskParams) riskParamsResponse {
	return riskParamsResponse{
		MaxRiskPerTrade:      params.MaxRiskPerTrade,
		MaxPositionSizeUSD:   params.MaxPositionSizeUSD,
		DefaultLeverage:      params.DefaultLeverage,
		StopLossPercentage:   params.StopLossPercentage,
		TakeProfitMultiplier: params.TakeProfitMultiplier,
		MaxOpenPositions:     params.MaxOpenPositions,
		MaxDailyLoss:         params.MaxDailyLoss,
	}
}

type settlementResponse struct {
	Status          string          `json:"status"`
	FillPrice       decimal.Decimal `json:"fill_price"`
	MatchedQuantity decimal.Decimal `json:"matched_quantity"`
	RequeueCount    int             `json:"requeue_count"`
	Cancelled       bool            `json:"cancelled"`
	IsMaker         bool            `json:"is_maker"`
}

type orderResponse struct {
	Hash       string             `json:"order_hash"`
	Symbol     string             `json:"symbol"`
	Side       string             `json:"side"`
	Type       string             `json:"order_type"`
	Quantity   decimal.Decimal    `json:"quantity"`
	Price      decimal.Decimal    `json:"price"`
	Leverage   int                `json:"leverage"`
	ReduceOnly bool               `json:"reduce_only"`
	Status     string             `json:"status"`
	State      string             `json:"state"`
	Settlement settlementResponse `json:"settlement"`
	CreatedAt  time.Time          `json:"created_at"`
}

func newOrderResponse(order models.Order) orderResponse {
	return orderResponse{
		Hash:       order.Hash,
		Symbol:     order.Symbol,
		Side:       string(order.Side),
		Type:       string(order.Type),
		Quantity:   order.Quantity,
		Price:      order.Price,
		Leverage:   order.Leverage,
		ReduceOnly: order.ReduceOnly,
		Status:     string(order.Status),
		State:      string(order.State()),
		Settlement: settlementResponse{
			Status:          string(order.Settlement.Status),
			FillPrice:       order.Settlement.FillPrice,
			MatchedQuantity: order.Settlement.MatchedQuantity,
			RequeueCount:    order.Settlement.RequeueCount,
			Cancelled:       order.Settlement.Cancelled,
			IsMaker:         order.Settlement.IsMaker,
		},
		CreatedAt: order.CreatedAt,
	}
}

type legResponse struct {
	Requested bool           `json:"requested"`
	Placed    bool           `json:"placed"`
	Order     *orderResponse `json:"order,omitempty"`
	Error     string         `json:"error,omitempty"`
}

func newLegResponse(leg models.LegResult) legResponse {
	response := legResponse{
		Requested: leg.Requested,
		Placed:    leg.Placed(),
	}
	if leg.Order != nil {
		order := newOrderResponse(*leg.Order)
		response.Order = &order
	}
	if leg.Err != nil {
		response.Error = leg.Err.Error()
	}
	return response
}

type tradeResponse struct {
	Order       orderResponse   `json:"order"`
	MarketPrice decimal.Decimal `json:"market_price"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	StopLoss    legResponse     `json:"stop_loss"`
	TakeProfit  legResponse     `json:"take_profit"`
	Protected   bool            `json:"protected"`
}

func newTradeResponse(result models.TradeResult) tradeResponse {
	return tradeResponse{
		Order:       newOrderResponse(result.Order),
		MarketPrice: result.MarketPrice,
		EntryPrice:  result.EntryPrice,
		StopLoss:    newLegResponse(result.StopLoss),
		TakeProfit:  newLegResponse(result.TakeProfit),
		Protected:   result.Protected(),
	}
}

type positionResponse struct {
	Symbol        string          `json:"symbol"`
	Side          string          `json:"side"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	MarkPrice     decimal.Decimal `json:"mark_price"`
	Quantity      decimal.Decimal `json:"quantity"`
	Leverage      int             `json:"leverage"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}

func newPositionResponses(positions []models.Position) []positionResponse {
	out := make([]positionResponse, 0, len(positions))
	for _, position := range positions {
		out = append(out, positionResponse{
			Symbol:        position.Symbol,
			Side:          string(position.Side),
			EntryPrice:    position.EntryPrice,
			MarkPrice:     position.MarkPrice,
			Quantity:      position.Quantity,
			Leverage:      position.Leverage,
			UnrealizedPnL: position.UnrealizedPnL,
		})
	}
	return out
}

type tradeHistoryResponse struct {
	ID          string          `json:"id"`
	OrderHash   string          `json:"order_hash"`
	Symbol      string          `json:"symbol"`
	Side        string          `json:"side"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Fee         decimal.Decimal `json:"fee"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	ExecutedAt  time.Time       `json:"executed_at"`
}

func newTradeHistoryResponses(trades []models.Trade) []tradeHistoryResponse {
	out := make([]tradeHistoryResponse, 0, len(trades))
	for _, trade := range trades {
		out = append(out, tradeHistoryResponse{
			ID:          trade.ID,
			OrderHash:   trade.OrderHash,
			Symbol:      trade.Symbol,
			Side:        string(trade.Side),
			Price:       trade.Price,
			Quantity:    trade.Quantity,
			Fee:         trade.Fee,
			RealizedPnL: trade.RealizedPnL,
			ExecutedAt:  trade.ExecutedAt,
		})
	}
	return out
}

type accountResponse struct {
	Address           string          `json:"address"`
	Balance           decimal.Decimal `json:"balance"`
	FreeCollateral    decimal.Decimal `json:"free_collateral"`
	RealizedPnLToday  decimal.Decimal `json:"realized_pnl_today"`
	StartOfDayBalance decimal.Decimal `json:"start_of_day_balance"`
}

type statusResponse struct {
	Status      string            `json:"status"`
	LoopRunning bool              `json:"trading_loop_running"`
	Flow        string            `json:"submission_flow"`
	MockTrading bool              `json:"mock_trading"`
	Account     *accountResponse  `json:"account,omitempty"`
	Positions   int               `json:"open_positions"`
	Failing     map[string]string `json:"failing_checks,omitempty"`
}

type alertResponse struct {
	Status string `json:"status"`
	Symbol string `json:"symbol"`
	Side   string `json:"side"`
	Source string `json:"source"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}
