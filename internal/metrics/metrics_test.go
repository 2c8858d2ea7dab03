package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("GET", "/orders", "200", 0.01)
	m.ObserveRequest("GET", "/orders", "200", 0.02)
	m.Rollback()
	m.IdleLogout()
	m.OrderSubmitted()

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("GET", "/orders", "200")); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.StatusRollbacks); got != 1 {
		t.Errorf("rollbacks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.IdleLogouts); got != 1 {
		t.Errorf("idle logouts = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.OrdersSubmitted); got != 1 {
		t.Errorf("orders submitted = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("GET", "/", "200", 0)
	m.Rollback()
	m.IdleLogout()
	m.OrderSubmitted()
}
