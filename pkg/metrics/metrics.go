// Package metrics exposes prometheus instruments for the ordering core.
// Every method tolerates a nil receiver so call sites never need guards.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ordersCreated       *prometheus.CounterVec
	orderTransitions    *prometheus.CounterVec
	compensations       prometheus.Counter
	watchdogCompletions prometheus.Counter
	engagementOutcomes  *prometheus.CounterVec
	fallbackWrites      *prometheus.CounterVec
	paymentResults      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aquaflow_orders_created_total",
			Help: "Orders created, by initial status.",
		}, []string{"status"}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aquaflow_order_transitions_total",
			Help: "Order status transitions applied.",
		}, []string{"from", "to"}),
		compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aquaflow_order_compensations_total",
			Help: "Checkout attempts rolled back after a partial write.",
		}),
		watchdogCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "aquaflow_order_watchdog_completions_total",
			Help: "Orders auto-completed by the delivery watchdog.",
		}),
		engagementOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aquaflow_engagement_outcomes_total",
			Help: "Terminal engagement-gate outcomes.",
		}, []string{"outcome"}),
		fallbackWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aquaflow_persistence_writes_total",
			Help: "Document writes, by collection and storage tier.",
		}, []string{"collection", "tier"}),
		paymentResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aquaflow_payment_results_total",
			Help: "Simulated payment outcomes, by method and status.",
		}, []string{"method", "status"}),
	}

	reg.MustRegister(
		m.ordersCreated,
		m.orderTransitions,
		m.compensations,
		m.watchdogCompletions,
		m.engagementOutcomes,
		m.fallbackWrites,
		m.paymentResults,
	)
	return m
}

func (m *Metrics) OrderCreated(status string) {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.WithLabelValues(status).Inc()
}

func (m *Metrics) OrderTransition(from, to string) {
	if m == nil || m.orderTransitions == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) CompensationRun() {
	if m == nil || m.compensations == nil {
		return
	}
	m.compensations.Inc()
}

func (m *Metrics) WatchdogCompletion() {
	if m == nil || m.watchdogCompletions == nil {
		return
	}
	m.watchdogCompletions.Inc()
}

func (m *Metrics) EngagementOutcome(outcome string) {
	if m == nil || m.engagementOutcomes == nil {
		return
	}
	m.engagementOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PersistenceWrite(collection, tier string) {
	if m == nil || m.fallbackWrites == nil {
		return
	}
	m.fallbackWrites.WithLabelValues(collection, tier).Inc()
}

func (m *Metrics) PaymentResult(method, status string) {
	if m == nil || m.paymentResults == nil {
		return
	}
	m.paymentResults.WithLabelValues(method, status).Inc()
}
