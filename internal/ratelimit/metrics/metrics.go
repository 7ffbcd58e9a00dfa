package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Admitted      prometheus.Counter
	Rejected      prometheus.Counter
	Evicted       prometheus.Counter
	ActiveBuckets prometheus.Gauge
}

// New registers the limiter metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Admitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "changedetection_mcp_ratelimit_admitted_total",
			Help: "Total number of requests admitted by the rate limiter",
		}),
		Rejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "changedetection_mcp_ratelimit_rejected_total",
			Help: "Total number of requests rejected by the rate limiter",
		}),
		Evicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "changedetection_mcp_ratelimit_buckets_evicted_total",
			Help: "Total number of idle token buckets evicted",
		}),
		ActiveBuckets: factory.NewGauge(prometheus.GaugeOpts{
			Name: "changedetection_mcp_ratelimit_active_buckets",
			Help: "Current number of token buckets held in memory",
		}),
	}
}

func (m *Metrics) RecordAdmitted() {
	m.Admitted.Inc()
}

func (m *Metrics) RecordRejected() {
	m.Rejected.Inc()
}

func (m *Metrics) RecordEvicted(n int) {
	m.Evicted.Add(float64(n))
}

func (m *Metrics) SetActiveBuckets(n int) {
	m.ActiveBuckets.Set(float64(n))
}
