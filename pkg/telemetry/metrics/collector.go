package metrics

import (
	"time"

	"github.com/edelkas/cuse/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the main orchestrator for all Prometheus metrics in cuse.
// It owns the registry and forwards each event to the subsystem that
// tracks it. All label values come from small fixed sets, so cardinality
// is bounded.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	requestMetrics *RequestMetrics
	backendMetrics *BackendMetrics
	codecMetrics   *CodecMetrics
	cacheMetrics   *CacheMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "cuse",
//		Subsystem: "proxy",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = append([]float64(nil), config.DefaultDurationBuckets...)
	}

	return &Collector{
		config:         cfg,
		registry:       registry,
		requestMetrics: NewRequestMetrics(cfg, registry),
		backendMetrics: NewBackendMetrics(cfg, registry),
		codecMetrics:   NewCodecMetrics(cfg, registry),
		cacheMetrics:   NewCacheMetrics(cfg, registry),
	}
}

// RecordRequest records a completed client request.
//
// Parameters:
//   - route: "intercept" or "forward"
//   - outcome: "ok", "empty" (intercepted, answered with an empty query),
//     or "error"
//   - duration: time from accept to response written
//   - responseBytes: size of the response sent to the client
func (c *Collector) RecordRequest(route, outcome string, duration time.Duration, responseBytes int) {
	if !c.config.Enabled {
		return
	}
	c.requestMetrics.RecordRequest(route, outcome, duration, responseBytes)
}

// RecordBackendQuery records one round trip to the search backend.
//
// Parameters:
//   - outcome: "ok", "empty" (no bytes before the timeout), or "error"
//   - duration: time from dial to connection close
//   - replyBytes: size of the reply
func (c *Collector) RecordBackendQuery(outcome string, duration time.Duration, replyBytes int) {
	if !c.config.Enabled {
		return
	}
	c.backendMetrics.RecordQuery(outcome, duration, replyBytes)
}

// RecordDecode records the result of validating a backend reply.
// reason is "ok" for accepted payloads, otherwise the rejection reason.
func (c *Collector) RecordDecode(reason string, levels int) {
	if !c.config.Enabled {
		return
	}
	c.codecMetrics.RecordDecode(reason, levels)
}

// RecordCacheHit records a cache hit.
func (c *Collector) RecordCacheHit() {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordHit()
}

// RecordCacheMiss records a cache miss.
func (c *Collector) RecordCacheMiss() {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordMiss()
}

// RecordCacheEviction records n slots removed for the given reason.
func (c *Collector) RecordCacheEviction(reason string, n int) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.RecordEviction(reason, n)
}

// UpdateCacheSize updates the number of occupied cache slots.
func (c *Collector) UpdateCacheSize(size int) {
	if !c.config.Enabled {
		return
	}
	c.cacheMetrics.UpdateSize(size)
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
