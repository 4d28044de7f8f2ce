package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "trader"

// Metrics groups the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	ordersSubmitted    *prometheus.CounterVec
	submitFailures     *prometheus.CounterVec
	legFailures        *prometheus.CounterVec
	sizingFallbacks    prometheus.Counter
	leverageFailures   prometheus.Counter
	settlementEvents   *prometheus.CounterVec
	priceAdjustments   prometheus.Counter
	loopIterations     *prometheus.CounterVec
	alertsReceived     *prometheus.CounterVec
	submissionDuration *prometheus.HistogramVec
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: registry,
		ordersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_submitted_total",
			Help:      "Orders accepted by the exchange.",
		}, []string{"flow", "type", "role"}),
		submitFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_submit_failures_total",
			Help:      "Primary orders that failed before or during submission.",
		}, []string{"reason"}),
		legFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protective_leg_failures_total",
			Help:      "Stop-loss or take-profit legs that could not be placed.",
		}, []string{"leg"}),
		sizingFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sizing_fallbacks_total",
			Help:      "Position sizes replaced by the safe fallback quantity.",
		}),
		leverageFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leverage_guard_failures_total",
			Help:      "Trades blocked because leverage could not be ensured.",
		}),
		settlementEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_events_total",
			Help:      "Exchange order events by kind and outcome.",
		}, []string{"kind", "outcome"}),
		priceAdjustments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requeue_price_adjustments_total",
			Help:      "Local price adjustments after repeated requeues. The exchange order is not repriced.",
		}),
		loopIterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trading_loop_iterations_total",
			Help:      "Trading loop iterations by outcome.",
		}, []string{"outcome"}),
		alertsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_received_total",
			Help:      "Ingress alerts by format and outcome.",
		}, []string{"format", "outcome"}),
		submissionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_submission_seconds",
			Help:      "Latency of one order submission through the resolved flow.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"flow"}),
	}

	registry.MustRegister(
		m.ordersSubmitted,
		m.submitFailures,
		m.legFailures,
		m.sizingFallbacks,
		m.leverageFailures,
		m.settlementEvents,
		m.priceAdjustments,
		m.loopIterations,
		m.alertsReceived,
		m.submissionDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) OrderSubmitted(flow, orderType, role string, seconds float64) {
	if m == nil {
		return
	}
	m.ordersSubmitted.WithLabelValues(flow, orderType, role).Inc()
	m.submissionDuration.WithLabelValues(flow).Observe(seconds)
}

func (m *Metrics) SubmitFailed(reason string) {
	if m == nil {
		return
	}
	m.submitFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) LegFailed(leg string) {
	if m == nil {
		return
	}
	m.legFailures.WithLabelValues(leg).Inc()
}

func (m *Metrics) SizingFallback() {
	if m == nil {
		return
	}
	m.sizingFallbacks.Inc()
}

func (m *Metrics) LeverageFailed() {
	if m == nil {
		return
	}
	m.leverageFailures.Inc()
}

func (m *Metrics) SettlementEvent(kind, outcome string) {
	if m == nil {
		return
	}
	m.settlementEvents.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) PriceAdjusted() {
	if m == nil {
		return
	}
	m.priceAdjustments.Inc()
}

func (m *Metrics) LoopIteration(outcome string) {
	if m == nil {
		return
	}
	m.loopIterations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AlertReceived(format, outcome string) {
	if m == nil {
		return
	}
	m.alertsReceived.WithLabelValues(format, outcome).Inc()
}
