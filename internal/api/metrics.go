package api

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/matzehuels/chainflow/pkg/observability"
)

// MetricsHooks exports engine and cache events as Prometheus metrics.
// Register once at startup:
//
//	m := api.NewMetricsHooks()
//	observability.SetEngineHooks(m)
//	observability.SetCacheHooks(m)
type MetricsHooks struct {
	recomputeTotal    prometheus.Counter
	recomputeErrors   prometheus.Counter
	recomputeDuration prometheus.Histogram
	visibleNodes      prometheus.Gauge
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	cacheBytesWritten *prometheus.CounterVec
}

// NewMetricsHooks creates hooks registered on the default Prometheus
// registry, which the /metrics endpoint serves.
func NewMetricsHooks() *MetricsHooks {
	return &MetricsHooks{
		recomputeTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainflow_recompute_total",
			Help: "Total number of recompute passes.",
		}),
		recomputeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainflow_recompute_errors_total",
			Help: "Total number of failed recompute passes.",
		}),
		recomputeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainflow_recompute_duration_seconds",
			Help:    "Duration of recompute passes.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		visibleNodes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chainflow_visible_nodes",
			Help: "Number of visible nodes in the last recompute pass.",
		}),
		cacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainflow_cache_hits_total",
			Help: "Cache hits by key type.",
		}, []string{"key_type"}),
		cacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainflow_cache_misses_total",
			Help: "Cache misses by key type.",
		}, []string{"key_type"}),
		cacheBytesWritten: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chainflow_cache_bytes_written_total",
			Help: "Bytes written to the cache by key type.",
		}, []string{"key_type"}),
	}
}

// OnRecomputeStart implements observability.EngineHooks.
func (m *MetricsHooks) OnRecomputeStart(ctx context.Context, visibleNodes int) {
	m.visibleNodes.Set(float64(visibleNodes))
}

// OnRecomputeComplete implements observability.EngineHooks.
func (m *MetricsHooks) OnRecomputeComplete(ctx context.Context, visibleNodes int, duration time.Duration, err error) {
	m.recomputeTotal.Inc()
	m.recomputeDuration.Observe(duration.Seconds())
	if err != nil {
		m.recomputeErrors.Inc()
	}
}

// OnCacheHit implements observability.CacheHooks.
func (m *MetricsHooks) OnCacheHit(ctx context.Context, keyType string) {
	m.cacheHits.WithLabelValues(keyType).Inc()
}

// OnCacheMiss implements observability.CacheHooks.
func (m *MetricsHooks) OnCacheMiss(ctx context.Context, keyType string) {
	m.cacheMisses.WithLabelValues(keyType).Inc()
}

// OnCacheSet implements observability.CacheHooks.
func (m *MetricsHooks) OnCacheSet(ctx context.Context, keyType string, size int) {
	m.cacheBytesWritten.WithLabelValues(keyType).Add(float64(size))
}

// Ensure MetricsHooks implements both hook interfaces.
var (
	_ observability.EngineHooks = (*MetricsHooks)(nil)
	_ observability.CacheHooks  = (*MetricsHooks)(nil)
)
