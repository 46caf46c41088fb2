package metrics

import (
	"time"

	"github.com/edelkas/cuse/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// BackendMetrics tracks queries sent to the search backend.
//
// Metrics:
//   - cuse_proxy_backend_queries_total: queries by outcome
//   - cuse_proxy_backend_query_duration_seconds: round trip time
//   - cuse_proxy_backend_reply_size_bytes: reply size
type BackendMetrics struct {
	queriesTotal  *prometheus.CounterVec
	queryDuration prometheus.Histogram
	replySize     prometheus.Histogram
}

// NewBackendMetrics creates and registers backend metrics.
func NewBackendMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *BackendMetrics {
	bm := &BackendMetrics{
		queriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "backend_queries_total",
				Help:      "Total number of queries sent to the search backend",
			},
			[]string{"outcome"},
		),

		queryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "backend_query_duration_seconds",
				Help:      "Round trip time of backend queries",
				Buckets:   cfg.DurationBuckets,
			},
		),

		replySize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "backend_reply_size_bytes",
				Help:      "Size of backend replies",
				Buckets:   prometheus.ExponentialBuckets(48, 4, 10),
			},
		),
	}

	registry.MustRegister(
		bm.queriesTotal,
		bm.queryDuration,
		bm.replySize,
	)

	return bm
}

// RecordQuery records one backend round trip.
func (bm *BackendMetrics) RecordQuery(outcome string, duration time.Duration, replyBytes int) {
	bm.queriesTotal.WithLabelValues(outcome).Inc()
	bm.queryDuration.Observe(duration.Seconds())
	if replyBytes > 0 {
		bm.replySize.Observe(float64(replyBytes))
	}
}
