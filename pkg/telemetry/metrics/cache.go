package metrics

import (
	"github.com/edelkas/cuse/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks the collection cache.
//
// Metrics:
//   - cuse_proxy_cache_hits_total: lookups served from the cache
//   - cuse_proxy_cache_misses_total: lookups that went to the backend
//   - cuse_proxy_cache_entries: occupied slots
//   - cuse_proxy_cache_evictions_total: removed slots by reason
//     (capacity, expired, cleared)
type CacheMetrics struct {
	hitsTotal      prometheus.Counter
	missesTotal    prometheus.Counter
	entries        prometheus.Gauge
	evictionsTotal *prometheus.CounterVec
}

// NewCacheMetrics creates and registers cache metrics with the provided registry.
func NewCacheMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CacheMetrics {
	cm := &CacheMetrics{
		hitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_hits_total",
				Help:      "Total number of cache hits",
			},
		),

		missesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_misses_total",
				Help:      "Total number of cache misses",
			},
		),

		entries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_entries",
				Help:      "Current number of entries in cache",
			},
		),

		evictionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "cache_evictions_total",
				Help:      "Total number of cache evictions",
			},
			[]string{"reason"},
		),
	}

	registry.MustRegister(
		cm.hitsTotal,
		cm.missesTotal,
		cm.entries,
		cm.evictionsTotal,
	)

	return cm
}

// RecordHit records a cache hit.
func (cm *CacheMetrics) RecordHit() {
	cm.hitsTotal.Inc()
}

// RecordMiss records a cache miss.
func (cm *CacheMetrics) RecordMiss() {
	cm.missesTotal.Inc()
}

// UpdateSize sets the number of occupied slots.
func (cm *CacheMetrics) UpdateSize(size int) {
	cm.entries.Set(float64(size))
}

// RecordEviction records n slots removed for reason.
//
// The hit rate is best computed in PromQL:
//
//	rate(cuse_proxy_cache_hits_total[5m]) /
//	(rate(cuse_proxy_cache_hits_total[5m]) + rate(cuse_proxy_cache_misses_total[5m]))
func (cm *CacheMetrics) RecordEviction(reason string, n int) {
	cm.evictionsTotal.WithLabelValues(reason).Add(float64(n))
}
