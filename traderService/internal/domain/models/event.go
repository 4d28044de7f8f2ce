package models

import "github.com/shopspring/decimal"

type EventKind string

const (
	EventOrderSettlement         EventKind = "OrderSettlementUpdate"
	EventOrderRequeue            EventKind = "OrderRequeueUpdate"
	EventOrderCancelledReversion EventKind = "OrderCancelledOnReversionUpdate"
)

type MatchedOrder struct {
	FillPrice decimal.Decimal
	Quantity  decimal.Decimal
}

// OrderEvent is one exchange event-stream callback. Quantity carries
// quantitySentForSettlement, quantitySentForRequeue or
// quantitySentForCancellation depending on Kind.
type OrderEvent struct {
	Kind          EventKind
	OrderHash     string
	Symbol        string
	Quantity      decimal.Decimal
	IsMaker       bool
	IsBuy         bool
	AvgFillPrice  decimal.Decimal
	FillID        string
	MatchedOrders []MatchedOrder
}
