// Package metrics exposes Prometheus instrumentation for the approval
// workflow.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the workflow instruments. All methods are safe for
// concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	proposalsTotal  *prometheus.CounterVec
	executionsTotal *prometheus.CounterVec
	replaysBlocked  prometheus.Counter
	pendingTrades   prometheus.GaugeFunc
	marketsIndexed  prometheus.GaugeFunc
	orderLatency    prometheus.Histogram
}

// PendingCounter reports the number of proposals currently awaiting
// approval.
type PendingCounter interface {
	PendingCount() int
}

// New builds and registers the workflow instruments on a fresh registry.
// pending and indexSize may be nil; the corresponding gauge is then omitted.
// indexSize is called on every scrape.
func New(pending PendingCounter, indexSize func() int64) *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		proposalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalshibot_proposals_total",
				Help: "Trade proposals created, by side",
			},
			[]string{"side"},
		),
		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalshibot_executions_total",
				Help: "Execution attempts, by outcome",
			},
			[]string{"outcome"},
		),
		replaysBlocked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kalshibot_replays_blocked_total",
				Help: "Token redemptions rejected because the token was already spent",
			},
		),
		orderLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "kalshibot_order_latency_seconds",
				Help:    "Exchange order placement latency",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	reg.MustRegister(m.proposalsTotal, m.executionsTotal, m.replaysBlocked, m.orderLatency)

	if indexSize != nil {
		m.marketsIndexed = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "kalshibot_markets_indexed",
				Help: "Markets currently held in the local index",
			},
			func() float64 { return float64(indexSize()) },
		)
		reg.MustRegister(m.marketsIndexed)
	}

	if pending != nil {
		m.pendingTrades = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "kalshibot_pending_proposals",
				Help: "Proposals currently awaiting approval",
			},
			func() float64 { return float64(pending.PendingCount()) },
		)
		reg.MustRegister(m.pendingTrades)
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ProposalCreated counts one new proposal.
func (m *Metrics) ProposalCreated(side string) {
	m.proposalsTotal.WithLabelValues(side).Inc()
}

// ExecutionSucceeded counts one accepted order.
func (m *Metrics) ExecutionSucceeded() {
	m.executionsTotal.WithLabelValues("success").Inc()
}

// ExecutionFailed counts one failed redemption or rejected order.
func (m *Metrics) ExecutionFailed() {
	m.executionsTotal.WithLabelValues("failure").Inc()
}

// ReplayBlocked counts one spent-token rejection.
func (m *Metrics) ReplayBlocked() {
	m.replaysBlocked.Inc()
}

// ObserveOrderLatency records one order round trip.
func (m *Metrics) ObserveOrderLatency(seconds float64) {
	m.orderLatency.Observe(seconds)
}
