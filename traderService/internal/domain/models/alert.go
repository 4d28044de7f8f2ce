package models

import "github.com/shopspring/decimal"

type SignalType string

const (
	SignalGreenCircle    SignalType = "GREEN_CIRCLE"
	SignalRedCircle      SignalType = "RED_CIRCLE"
	SignalGoldCircle     SignalType = "GOLD_CIRCLE"
	SignalPurpleTriangle SignalType = "PURPLE_TRIANGLE"
)

func (s SignalType) Valid() bool {
	switch s {
	case SignalGreenCircle, SignalRedCircle, SignalGoldCircle, SignalPurpleTriangle:
		return true
	default:
		return false
	}
}

// Alert is the normalized ingress record. Nil fields take configured defaults.
type Alert struct {
	Symbol       string
	Side         Side
	PositionSize *decimal.Decimal
	Leverage     *int
	StopLoss     *decimal.Decimal
	TakeProfit   *decimal.Decimal
	Source       string
	SignalType   SignalType
	Timeframe    string
}
