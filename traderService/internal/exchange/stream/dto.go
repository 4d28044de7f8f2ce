package stream

import (
	"github.com/shopspring/decimal"

	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

type envelope struct {
	EventName string    `json:"eventName"`
	Data      eventData `json:"data"`
}

type matchedOrder struct {
	FillPrice decimal.Decimal `json:"fillPrice"`
	Quantity  decimal.Decimal `json:"quantity"`
}

type eventData struct {
	OrderHash     string          `json:"orderHash"`
	Symbol        string          `json:"symbol"`
	Settlement    decimal.Decimal `json:"quantitySentForSettlement"`
	Requeue       decimal.Decimal `json:"quantitySentForRequeue"`
	Cancellation  decimal.Decimal `json:"quantitySentForCancellation"`
	IsMaker       bool            `json:"isMaker"`
	IsBuy         bool            `json:"isBuy"`
	AvgFillPrice  decimal.Decimal `json:"avgFillPrice"`
	FillID        string          `json:"fillId"`
	MatchedOrders []matchedOrder  `json:"matchedOrders"`
}

func (e envelope) toDomain() (models.OrderEvent, bool) {
	kind := models.EventKind(e.EventName)

	var quantity decimal.Decimal
	switch kind {
	case models.EventOrderSettlement:
		quantity = e.Data.Settlement
	case models.EventOrderRequeue:
		quantity = e.Data.Requeue
	case models.EventOrderCancelledReversion:
		quantity = e.Data.Cancellation
	default:
		return models.OrderEvent{}, false
	}

	matched := make([]models.MatchedOrder, 0, len(e.Data.MatchedOrders))
	for _, order := range e.Data.MatchedOrders {
		matched = append(matched, models.MatchedOrder{FillPrice: order.FillPrice, Quantity: order.Quantity})
	}

	return models.OrderEvent{
		Kind:          kind,
		OrderHash:     e.Data.OrderHash,
		Symbol:        e.Data.Symbol,
		Quantity:      quantity,
		IsMaker:       e.Data.IsMaker,
		IsBuy:         e.Data.IsBuy,
		AvgFillPrice:  e.Data.AvgFillPrice,
		FillID:        e.Data.FillID,
		MatchedOrders: matched,
	}, true
}

type subscribeMessage struct {
	Event     string `json:"e"`
	Room      string `json:"rn"`
	PublicKey string `json:"pk,omitempty"`
	Token     string `json:"t,omitempty"`
}
