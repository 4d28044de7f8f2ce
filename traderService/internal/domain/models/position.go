package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
)

// ClosingSide is the order side that reduces the position.
func (p PositionSide) ClosingSide() Side {
	if p == PositionShort {
		return SideBuy
	}
	return SideSell
}

type Position struct {
	Symbol        string
	Side          PositionSide
	EntryPrice    decimal.Decimal
	MarkPrice     decimal.Decimal
	Quantity      decimal.Decimal
	Leverage      int
	UnrealizedPnL decimal.Decimal
}

type Account struct {
	Address           string
	Balance           decimal.Decimal
	FreeCollateral    decimal.Decimal
	RealizedPnLToday  decimal.Decimal
	StartOfDayBalance decimal.Decimal
}

type OrderbookLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

type Orderbook struct {
	Symbol string
	Bids   []OrderbookLevel
	Asks   []OrderbookLevel
}

// Mid returns the mid price and false when either side is empty.
func (o Orderbook) Mid() (decimal.Decimal, bool) {
	if len(o.Bids) == 0 || len(o.Asks) == 0 {
		return decimal.Zero, false
	}

	return o.Bids[0].Price.Add(o.Asks[0].Price).Div(decimal.NewFromInt(2)), true
}

type Trade struct {
	ID          string
	OrderHash   string
	Symbol      string
	Side        Side
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	Fee         decimal.Decimal
	RealizedPnL decimal.Decimal
	ExecutedAt  time.Time
}

type TradeFilter struct {
	Symbol   string
	Side     Side
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}
