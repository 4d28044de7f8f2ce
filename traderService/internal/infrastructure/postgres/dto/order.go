package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

// Order is one row of the orders table. Numeric columns travel as text.
type Order struct {
	Hash             string    `db:"hash"`
	Symbol           string    `db:"symbol"`
	Side             string    `db:"side"`
	OrderType        string    `db:"order_type"`
	Quantity         string    `db:"quantity"`
	Price            string    `db:"price"`
	Leverage         int32     `db:"leverage"`
	ReduceOnly       bool      `db:"reduce_only"`
	Status           string    `db:"status"`
	SettlementStatus string    `db:"settlement_status"`
	RequeueCount     int32     `db:"requeue_count"`
	Cancelled        bool      `db:"cancelled"`
	FillPrice        string    `db:"fill_price"`
	MatchedQuantity  string    `db:"matched_quantity"`
	IsMaker          bool      `db:"is_maker"`
	CreatedAt        time.Time `db:"created_at"`
}

func (o Order) ToDomain() (models.Order, error) {
	var order models.Order

	fields := []struct {
		raw    string
		target *decimal.Decimal
	}{
		{o.Quantity, &order.Quantity},
		{o.Price, &order.Price},
		{o.FillPrice, &order.Settlement.FillPrice},
		{o.MatchedQuantity, &order.Settlement.MatchedQuantity},
	}
	for _, field := range fields {
		value, err := decimal.NewFromString(field.raw)
		if err != nil {
			return models.Order{}, err
		}
		*field.target = value
	}

	order.Hash = o.Hash
	order.Symbol = o.Symbol
	order.Side = models.Side(o.Side)
	order.Type = models.OrderType(o.OrderType)
	order.Leverage = int(o.Leverage)
	order.ReduceOnly = o.ReduceOnly
	order.Status = models.OrderStatus(o.Status)
	order.Settlement.Status = models.SettlementStatus(o.SettlementStatus)
	order.Settlement.RequeueCount = int(o.RequeueCount)
	order.Settlement.Cancelled = o.Cancelled
	order.Settlement.IsMaker = o.IsMaker
	order.CreatedAt = o.CreatedAt

	return order, nil
}

func FromDomain(order models.Order) Order {
	return Order{
		Hash:             order.Hash,
		Symbol:           order.Symbol,
		Side:             string(order.Side),
		OrderType:        string(order.Type),
		Quantity:         order.Quantity.String(),
		Price:            order.Price.String(),
		Leverage:         int32(order.Leverage),
		ReduceOnly:       order.ReduceOnly,
		Status:           string(order.Status),
		SettlementStatus: string(order.Settlement.Status),
		RequeueCount:     int32(order.Settlement.RequeueCount),
		Cancelled:        order.Settlement.Cancelled,
		FillPrice:        order.Settlement.FillPrice.String(),
		MatchedQuantity:  order.Settlement.MatchedQuantity.String(),
		IsMaker:          order.Settlement.IsMaker,
		CreatedAt:        order.CreatedAt,
	}
}
