package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/avolkov/docvault/internal/core/domain"
)

type SyncMetrics struct {
	registry *prometheus.Registry
	service  string

	drainTotal    *prometheus.CounterVec
	drainDuration prometheus.Histogram
	itemTotal     *prometheus.CounterVec
	queueDepth    prometheus.Gauge
	blobBytes     prometheus.Gauge
}

func NewSyncMetrics(service string) *SyncMetrics {
	registry := prometheus.NewRegistry()

	drainTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docvault",
			Subsystem: "sync",
			Name:      "drain_total",
			Help:      "Total drain invocations by result (completed, rejected, offline).",
		},
		[]string{"service", "result"},
	)
	drainDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "docvault",
			Subsystem: "sync",
			Name:      "drain_duration_seconds",
			Help:      "Drain pass duration in seconds.",
			Buckets:   prometheus.DefBuckets,
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	itemTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docvault",
			Subsystem: "sync",
			Name:      "item_total",
			Help:      "Total processed queue items by operation and outcome.",
		},
		[]string{"service", "operation", "outcome"},
	)
	queueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docvault",
			Subsystem: "sync",
			Name:      "queue_depth",
			Help:      "Pending plus failed queue items after the last stats read.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	blobBytes := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docvault",
			Subsystem: "cache",
			Name:      "blob_bytes",
			Help:      "Total cached blob bytes after the last stats read.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(drainTotal, drainDuration, itemTotal, queueDepth, blobBytes)

	return &SyncMetrics{
		registry:      registry,
		service:       service,
		drainTotal:    drainTotal,
		drainDuration: drainDuration,
		itemTotal:     itemTotal,
		queueDepth:    queueDepth,
		blobBytes:     blobBytes,
	}
}

func (m *SyncMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *SyncMetrics) CountDrain(result string) {
	m.drainTotal.WithLabelValues(m.service, result).Inc()
}

func (m *SyncMetrics) ObserveDrain(duration time.Duration) {
	m.drainDuration.Observe(duration.Seconds())
}

func (m *SyncMetrics) CountItem(operation string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	m.itemTotal.WithLabelValues(m.service, operation, outcome).Inc()
}

func (m *SyncMetrics) SetCacheStats(stats domain.CacheStats) {
	m.queueDepth.Set(float64(stats.PendingSyncCount + stats.FailedSyncCount))
	m.blobBytes.Set(float64(stats.TotalBlobBytes))
}
