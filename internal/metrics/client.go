package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Client-side Prometheus metrics for the search service transport.
var (
	TransportRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchidx",
			Subsystem: "transport",
			Name:      "requests_total",
			Help:      "Total number of requests sent to the search service",
		},
		[]string{"op", "status"},
	)

	TransportRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "searchidx",
			Subsystem: "transport",
			Name:      "request_duration_seconds",
			Help:      "Search service round-trip duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"op"},
	)

	RetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "searchidx",
			Subsystem: "transport",
			Name:      "retries_total",
			Help:      "Retries after a transient (503) response",
		},
		[]string{"op"},
	)
)

// RegisterClientMetrics registers the transport metrics with reg.
// Registering twice with the same registry is a no-op.
func RegisterClientMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{TransportRequestsTotal, TransportRequestDuration, RetriesTotal} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err //nolint:wrapcheck // registry error is self-describing
		}
	}
	return nil
}
