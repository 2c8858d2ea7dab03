// Package metrics holds the prometheus collectors the client records into.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "posclient"

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	StatusRollbacks prometheus.Counter
	IdleLogouts     prometheus.Counter
	OrdersSubmitted prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Backend requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Backend request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		StatusRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_status_rollbacks_total",
			Help:      "Optimistic order status changes reverted after a backend failure.",
		}),
		IdleLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idle_logouts_total",
			Help:      "Sessions closed by the idle watchdog.",
		}),
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_submitted_total",
			Help:      "Orders accepted by the backend.",
		}),
	}
	reg.MustRegister(m.Requests, m.RequestDuration, m.StatusRollbacks, m.IdleLogouts, m.OrdersSubmitted)
	return m
}

// ObserveRequest records one backend call.
func (m *Metrics) ObserveRequest(method, route, code string, seconds float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, route, code).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(seconds)
}

// Rollback records a reverted optimistic status change.
func (m *Metrics) Rollback() {
	if m != nil {
		m.StatusRollbacks.Inc()
	}
}

// IdleLogout records a watchdog logout.
func (m *Metrics) IdleLogout() {
	if m != nil {
		m.IdleLogouts.Inc()
	}
}

// OrderSubmitted records an accepted order.
func (m *Metrics) OrderSubmitted() {
	if m != nil {
		m.OrdersSubmitted.Inc()
	}
}
