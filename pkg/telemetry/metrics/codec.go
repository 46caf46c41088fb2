package metrics

import (
	"github.com/edelkas/cuse/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// CodecMetrics tracks validation of backend payloads.
//
// Metrics:
//   - cuse_proxy_payloads_decoded_total: payloads by result ("ok" or the
//     rejection reason: empty, length, type, mode)
//   - cuse_proxy_payload_levels: levels per accepted payload
type CodecMetrics struct {
	decodedTotal *prometheus.CounterVec
	levels       prometheus.Histogram
}

// NewCodecMetrics creates and registers codec metrics.
func NewCodecMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *CodecMetrics {
	cm := &CodecMetrics{
		decodedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "payloads_decoded_total",
				Help:      "Total number of backend payloads validated, by result",
			},
			[]string{"result"},
		),

		levels: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "payload_levels",
				Help:      "Number of levels in accepted payloads",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
			},
		),
	}

	registry.MustRegister(cm.decodedTotal, cm.levels)
	return cm
}

// RecordDecode records one validation result.
func (cm *CodecMetrics) RecordDecode(result string, levels int) {
	cm.decodedTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		cm.levels.Observe(float64(levels))
	}
}
