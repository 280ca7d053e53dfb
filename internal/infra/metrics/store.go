package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		storeRequestsTotal,
		storeLatencyMs,
	)
}

var (
	storeRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "record_store_requests_total",
			Help: "Record store calls by driver, operation and outcome.",
		},
		[]string{"driver", "op", "outcome"},
	)

	storeLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "record_store_latency_ms",
			Help:    "Record store call latency distribution in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"driver", "op"},
	)
)

// ObserveStoreCall records one store round-trip. Outcome is one of
// ok|not_found|conflict|duplicate|unavailable.
func ObserveStoreCall(driver, op, outcome string, latencyMs float64) {
	storeRequestsTotal.WithLabelValues(driver, op, outcome).Inc()
	storeLatencyMs.WithLabelValues(driver, op).Observe(latencyMs)
}
