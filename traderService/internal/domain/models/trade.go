package models

import "github.com/shopspring/decimal"

// TradeRequest is the execute_trade contract. Nil fields are resolved from
// environment defaults and then from RiskParams.
type TradeRequest struct {
	Symbol               string
	Side                 Side
	PositionSize         *decimal.Decimal
	RiskPercentage       *decimal.Decimal
	StopLossPercentage   *decimal.Decimal
	TakeProfitPercentage *decimal.Decimal
	Leverage             *int
	OrderType            OrderType
	Price                *decimal.Decimal
}

type LegKind string

const (
	LegStopLoss   LegKind = "stop_loss"
	LegTakeProfit LegKind = "take_profit"
)

// LegResult is the outcome of one protective order.
type LegResult struct {
	Kind      LegKind
	Requested bool
	Order     *Order
	Err       error
}

func (l LegResult) Placed() bool {
	return l.Requested && l.Err == nil && l.Order != nil
}

type TradeResult struct {
	Order       Order
	MarketPrice decimal.Decimal
	EntryPrice  decimal.Decimal
	StopLoss    LegResult
	TakeProfit  LegResult
}

// Protected reports whether every requested protective leg was placed.
func (r TradeResult) Protected() bool {
	for _, leg := range []LegResult{r.StopLoss, r.TakeProfit} {
		if leg.Requested && !leg.Placed() {
			return false
		}
	}
	return true
}
