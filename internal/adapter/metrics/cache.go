package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics holds Prometheus metrics for the stylesheet description cache.
type CacheMetrics struct {
	Hits          *prometheus.CounterVec
	Misses        *prometheus.CounterVec
	Invalidations prometheus.Counter
}

// NewCacheMetrics creates and registers cache metrics on the given registry.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "description_cache",
			Name:      "hits_total",
			Help:      "Total number of stylesheet description cache hits, by kind and layer.",
		}, []string{"kind", "layer"}),
		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "description_cache",
			Name:      "misses_total",
			Help:      "Total number of stylesheet description cache misses, by kind and layer.",
		}, []string{"kind", "layer"}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "description_cache",
			Name:      "invalidations_total",
			Help:      "Total number of stylesheet description invalidations.",
		}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.Invalidations)
	return m
}

func (m *CacheMetrics) RecordHit(kind, layer string) {
	m.Hits.WithLabelValues(kind, layer).Inc()
}

func (m *CacheMetrics) RecordMiss(kind, layer string) {
	m.Misses.WithLabelValues(kind, layer).Inc()
}

func (m *CacheMetrics) RecordInvalidation() {
	m.Invalidations.Inc()
}
