package ledger

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	serviceErrors "github.com/nastyazhadan/perp-trader/shared/errors/service"
	zapLogger "github.com/nastyazhadan/perp-trader/shared/interceptors/logger/zap"
	"github.com/nastyazhadan/perp-trader/traderService/internal/domain/models"
)

const (
	RequeueThreshold = 2

	orphanTTL      = 30 * time.Second
	maxOrphans     = 1024
	sweepInterval  = 250 * time.Millisecond
	outcomeApplied = "applied"
	outcomeUnknown = "unknown_order"
	outcomeIllegal = "illegal_transition"
	outcomeFailed  = "failed"
	outcomeExpired = "expired"
)

// RequeueAdjustment is the fraction the local price moves against the
// order's own side once the requeue threshold is exceeded.
var RequeueAdjustment = decimal.RequireFromString("0.01")

type Updater interface {
	Update(ctx context.Context, hash, transition string, mutate func(*models.Order) error) (models.Order, error)
}

type EventRecorder interface {
	SettlementEvent(kind, outcome string)
	PriceAdjusted()
}

type orphan struct {
	event    models.OrderEvent
	received time.Time
}

// SettlementHandler is the single consumer of exchange order events.
//
// An event for a hash the ledger does not know is not simply ignored. It is
// logged and counted as unknown_order, then parked for up to 30 seconds
// (at most 1024 events) and replayed in arrival order once the order is
// registered. This covers events that race ahead of the submit
// acknowledgement. Parked events that expire are counted and dropped, and
// no ledger record is ever created from an event.
type SettlementHandler struct {
	ledger   Updater
	recorder EventRecorder
	tracer   trace.Tracer
	now      func() time.Time

	orphans      map[string][]orphan
	orphanEvents int
	running      atomic.Bool
}

func NewSettlementHandler(ledger Updater, recorder EventRecorder) *SettlementHandler {
	return &SettlementHandler{
		ledger:   ledger,
		recorder: recorder,
		tracer:   otel.Tracer("perp-trader/ledger"),
		now:      time.Now,
		orphans:  make(map[string][]orphan),
	}
}

// Ready reports whether Run is consuming events.
func (h *SettlementHandler) Ready() bool {
	return h.running.Load()
}

// Run consumes events until the channel closes or ctx ends.
func (h *SettlementHandler) Run(ctx context.Context, events <-chan models.OrderEvent) error {
	h.running.Store(true)
	defer h.running.Store(false)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	zapLogger.Info(ctx, "settlement handler started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				zapLogger.Info(ctx, "event stream closed")
				return nil
			}
			h.Handle(ctx, event)
		case <-ticker.C:
			h.sweep(ctx)
		}
	}
}

// Handle applies one event. It never fails: problems are logged and counted.
func (h *SettlementHandler) Handle(ctx context.Context, event models.OrderEvent) {
	ctx, span := h.tracer.Start(ctx, "SettlementHandler.Handle", trace.WithAttributes(
		attribute.String("order_hash", event.OrderHash),
		attribute.String("event", string(event.Kind)),
	))
	defer span.End()

	ctx = zapLogger.ContextWithOrderHash(ctx, event.OrderHash)

	if _, parked := h.orphans[event.OrderHash]; parked {
		h.park(ctx, event)
		h.flush(ctx, event.OrderHash)
		return
	}

	if known := h.apply(ctx, event); !known {
		h.record(event, outcomeUnknown)
		zapLogger.Warn(ctx, "event for unknown order",
			zap.String("event", string(event.Kind)),
			zap.String("symbol", event.Symbol))
		h.park(ctx, event)
	}
}

// apply reports false only when the ledger has no order for the hash.
func (h *SettlementHandler) apply(ctx context.Context, event models.OrderEvent) bool {
	var adjusted bool

	order, err := h.ledger.Update(ctx, event.OrderHash, string(event.Kind), func(order *models.Order) error {
		switch event.Kind {
		case models.EventOrderSettlement:
			return order.ApplySettlement(event.AvgFillPrice, matchedQuantity(event), event.IsMaker)
		case models.EventOrderRequeue:
			var err error
			adjusted, err = order.ApplyRequeue(RequeueThreshold, RequeueAdjustment)
			return err
		case models.EventOrderCancelledReversion:
			return order.ApplyCancel()
		default:
			return errUnsupportedEvent
		}
	})

	switch {
	case err == nil:
		h.record(event, outcomeApplied)
	case errors.Is(err, serviceErrors.ErrOrderNotFound):
		return false
	case errors.Is(err, serviceErrors.ErrIllegalTransition), errors.Is(err, errUnsupportedEvent):
		h.record(event, outcomeIllegal)
		zapLogger.Warn(ctx, "event rejected by order state",
			zap.String("event", string(event.Kind)),
			zap.Error(err))
		return true
	default:
		h.record(event, outcomeFailed)
		zapLogger.Error(ctx, "apply order event failed",
			zap.String("event", string(event.Kind)),
			zap.Error(err))
		return true
	}

	if adjusted {
		if h.recorder != nil {
			h.recorder.PriceAdjusted()
		}
		zapLogger.Warn(ctx, "order price adjusted locally, exchange order not repriced",
			zap.Int("requeue_count", order.Settlement.RequeueCount),
			zap.String("price", order.Price.String()))
	}

	zapLogger.Debug(ctx, "order event applied",
		zap.String("event", string(event.Kind)),
		zap.String("state", string(order.State())))
	return true
}

func (h *SettlementHandler) park(ctx context.Context, event models.OrderEvent) {
	if h.orphanEvents >= maxOrphans {
		h.record(event, outcomeExpired)
		zapLogger.Warn(ctx, "orphan event buffer full, event dropped", zap.String("event", string(event.Kind)))
		return
	}

	h.orphans[event.OrderHash] = append(h.orphans[event.OrderHash], orphan{event: event, received: h.now()})
	h.orphanEvents++
}

// flush replays parked events for hash while the ledger accepts them.
func (h *SettlementHandler) flush(ctx context.Context, hash string) {
	parked := h.orphans[hash]
	for len(parked) > 0 {
		if !h.apply(ctx, parked[0].event) {
			h.orphans[hash] = parked
			return
		}
		parked = parked[1:]
		h.orphanEvents--
	}
	delete(h.orphans, hash)
}

func (h *SettlementHandler) sweep(ctx context.Context) {
	for hash, parked := range h.orphans {
		if h.now().Sub(parked[0].received) > orphanTTL {
			for _, item := range parked {
				h.record(item.event, outcomeExpired)
			}
			h.orphanEvents -= len(parked)
			delete(h.orphans, hash)
			zapLogger.Warn(zapLogger.ContextWithOrderHash(ctx, hash), "orphan events expired",
				zap.Int("events", len(parked)))
			continue
		}
		h.flush(ctx, hash)
	}
}

func (h *SettlementHandler) record(event models.OrderEvent, outcome string) {
	if h.recorder != nil {
		h.recorder.SettlementEvent(string(event.Kind), outcome)
	}
}

// matchedQuantity prefers the quantity sent for settlement and otherwise
// sums the matched orders.
func matchedQuantity(event models.OrderEvent) decimal.Decimal {
	if event.Quantity.IsPositive() {
		return event.Quantity
	}

	total := decimal.Zero
	for _, matched := range event.MatchedOrders {
		total = total.Add(matched.Quantity)
	}
	return total
}

var errUnsupportedEvent = errors.New("unsupported event kind")
