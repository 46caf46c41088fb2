package metrics

import (
	"time"

	"github.com/edelkas/cuse/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks client requests handled by the proxy.
//
// Metrics:
//   - cuse_proxy_requests_total: requests by route and outcome
//   - cuse_proxy_request_duration_seconds: handling time by route
//   - cuse_proxy_response_size_bytes: response size by route
type RequestMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	responseSize    *prometheus.HistogramVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RequestMetrics {
	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of client requests handled",
			},
			[]string{"route", "outcome"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Time spent handling a client request",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"route"},
		),

		responseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "response_size_bytes",
				Help:      "Size of responses sent to the client",
				Buckets:   prometheus.ExponentialBuckets(48, 4, 10), // 48B to ~12MB
			},
			[]string{"route"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.responseSize,
	)

	return rm
}

// RecordRequest records metrics for a completed request.
func (rm *RequestMetrics) RecordRequest(route, outcome string, duration time.Duration, responseBytes int) {
	rm.requestsTotal.WithLabelValues(route, outcome).Inc()
	rm.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
	if responseBytes > 0 {
		rm.responseSize.WithLabelValues(route).Observe(float64(responseBytes))
	}
}
