package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func ParseSide(value string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(value))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("unknown side %q", value)
	}
}

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

type OrderType string

const (
	OrderTypeMarket     OrderType = "MARKET"
	OrderTypeLimit      OrderType = "LIMIT"
	OrderTypeStopMarket OrderType = "STOP_MARKET"
	OrderTypeTakeProfit OrderType = "TAKE_PROFIT"
)

func ParseOrderType(value string) (OrderType, error) {
	switch OrderType(strings.ToUpper(strings.TrimSpace(value))) {
	case "", OrderTypeMarket:
		return OrderTypeMarket, nil
	case OrderTypeLimit:
		return OrderTypeLimit, nil
	case OrderTypeStopMarket:
		return OrderTypeStopMarket, nil
	case OrderTypeTakeProfit:
		return OrderTypeTakeProfit, nil
	default:
		return "", fmt.Errorf("unknown order type %q", value)
	}
}

// OrderStatus is the submission outcome reported by the exchange.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusCreated OrderStatus = "created"
	OrderStatusError   OrderStatus = "error"
)

type SettlementStatus string

const (
	SettlementPending SettlementStatus = "pending"
	SettlementSent    SettlementStatus = "sent"
)

// State is the ledger lifecycle position of an order. It is derived from the
// order fields, so a transition never needs to touch more than it changes.
type State string

const (
	StatePendingSubmit State = "pending_submit"
	StateCreated       State = "created"
	StateSettled       State = "settled"
	StateRequeued      State = "requeued"
	StateCancelled     State = "cancelled"
)

type Settlement struct {
	Status          SettlementStatus
	RequeueCount    int
	Cancelled       bool
	FillPrice       decimal.Decimal
	MatchedQuantity decimal.Decimal
	IsMaker         bool
}

type Order struct {
	Hash       string
	Symbol     string
	Side       Side
	Type       OrderType
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	Leverage   int
	ReduceOnly bool
	Status     OrderStatus
	Settlement Settlement
	CreatedAt  time.Time
}

// NewOrder builds an order that has not been accepted by the exchange yet.
func NewOrder(params OrderParams) Order {
	return Order{
		Symbol:     params.Symbol,
		Side:       params.Side,
		Type:       params.Type,
		Quantity:   params.Quantity,
		Price:      params.Price,
		Leverage:   params.Leverage,
		ReduceOnly: params.ReduceOnly,
		Status:     OrderStatusPending,
		Settlement: Settlement{Status: SettlementPending},
	}
}

func (o Order) State() State {
	switch {
	case o.Settlement.Cancelled:
		return StateCancelled
	case o.Settlement.Status == SettlementSent:
		return StateSettled
	case o.Settlement.RequeueCount > 0:
		return StateRequeued
	case o.Hash != "":
		return StateCreated
	default:
		return StatePendingSubmit
	}
}

// MarkCreated records the exchange acknowledgement.
func (o *Order) MarkCreated(hash string, at time.Time) error {
	if o.State() != StatePendingSubmit {
		return fmt.Errorf("%w: created from %s", serviceErrors.ErrIllegalTransition, o.State())
	}
	if hash == "" {
		return fmt.Errorf("%w: empty order hash", serviceErrors.ErrIllegalTransition)
	}

	o.Hash = hash
	o.Status = OrderStatusCreated
	o.CreatedAt = at
	return nil
}

// ApplySettlement overwrites the fill data with the latest settlement slice.
func (o *Order) ApplySettlement(fillPrice, matchedQuantity decimal.Decimal, isMaker bool) error {
	if o.Hash == "" {
		return fmt.Errorf("%w: settlement before creation", serviceErrors.ErrIllegalTransition)
	}
	if o.Settlement.Cancelled {
		return fmt.Errorf("%w: settlement on cancelled order", serviceErrors.ErrIllegalTransition)
	}

	o.Settlement.Status = SettlementSent
	o.Settlement.FillPrice = fillPrice
	o.Settlement.MatchedQuantity = matchedQuantity
	o.Settlement.IsMaker = isMaker
	return nil
}

// ApplyRequeue counts the requeue and, once the count exceeds threshold,
// moves the local price against the order's own side by adjustment.
// It reports whether the price changed.
func (o *Order) ApplyRequeue(threshold int, adjustment decimal.Decimal) (bool, error) {
	if o.Hash == "" {
		return false, fmt.Errorf("%w: requeue before creation", serviceErrors.ErrIllegalTransition)
	}
	if o.Settlement.Cancelled {
		return false, fmt.Errorf("%w: requeue on cancelled order", serviceErrors.ErrIllegalTransition)
	}

	o.Settlement.RequeueCount++
	if o.Settlement.RequeueCount <= threshold {
		return false, nil
	}

	factor := decimal.NewFromInt(1).Add(adjustment)
	if o.Side == SideSell {
		factor = decimal.NewFromInt(1).Sub(adjustment)
	}
	o.Price = o.Price.Mul(factor)
	return true, nil
}

// ApplyCancel flags the order cancelled and changes nothing else.
func (o *Order) ApplyCancel() error {
	if o.Hash == "" {
		return fmt.Errorf("%w: cancel before creation", serviceErrors.ErrIllegalTransition)
	}
	if o.Settlement.MatchedQuantity.IsPositive() {
		return fmt.Errorf("%w: cancel after matched quantity %s",
			serviceErrors.ErrIllegalTransition, o.Settlement.MatchedQuantity)
	}

	o.Settlement.Cancelled = true
	return nil
}

// OrderParams is what the engine sends to the exchange for one order.
type OrderParams struct {
	ClientOrderID string
	Symbol        string
	Side          Side
	Type          OrderType
	Quantity      decimal.Decimal
	Price         decimal.Decimal
	Leverage      int
	ReduceOnly    bool
}

// OrderAck is the exchange's answer to a submitted order.
type OrderAck struct {
	Hash         string
	Symbol       string
	Side         Side
	Type         OrderType
	Quantity     decimal.Decimal
	Price        decimal.Decimal
	AvgFillPrice decimal.Decimal
	Status       string
}

// ExecutionPrice is the fill price if reported, else the acknowledged price.
func (a OrderAck) ExecutionPrice() decimal.Decimal {
	if a.AvgFillPrice.IsPositive() {
		return a.AvgFillPrice
	}
	return a.Price
}
