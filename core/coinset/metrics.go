package coinset

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments ledger RPC calls.
type Metrics struct {
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	cacheHits prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "streaming",
				Subsystem: "coinset",
				Name:      "requests_total",
				Help:      "Ledger RPC requests by method and outcome.",
			},
			[]string{"method", "outcome"},
		),
		durations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "streaming",
				Subsystem: "coinset",
				Name:      "request_duration_seconds",
				Help:      "Ledger RPC latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		cacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "streaming",
				Subsystem: "coinset",
				Name:      "cache_hits_total",
				Help:      "Ledger lookups answered from the spent coin cache.",
			},
		),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.requests, m.durations, m.cacheHits} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observe(method, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.durations.WithLabelValues(method).Observe(seconds)
}

func (m *Metrics) hit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}
