package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionNone Action = "NONE"
)

func (a Action) Side() (Side, bool) {
	switch a {
	case ActionBuy:
		return SideBuy, true
	case ActionSell:
		return SideSell, true
	default:
		return "", false
	}
}

type Recommendation struct {
	Action     Action
	Symbol     string
	EntryPrice decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	Confidence float64
	Reason     string
	Timestamp  time.Time
}

// NormalizeConfidence maps provider scores onto 0..1; values above 1 are
// treated as a 0..10 scale.
func NormalizeConfidence(value float64) float64 {
	if value > 1 {
		value /= 10
	}
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}

// DistancePercentage is |entry-target|/entry, or zero without both prices.
func DistancePercentage(entry, target decimal.Decimal) decimal.Decimal {
	if !entry.IsPositive() || !target.IsPositive() {
		return decimal.Zero
	}
	return entry.Sub(target).Abs().Div(entry)
}
