package metrics

import "github.com/prometheus/client_golang/prometheus"

// StoreMetrics holds Prometheus metrics for layout store queries.
type StoreMetrics struct {
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
	WriteRetries  prometheus.Counter
}

// NewStoreMetrics creates and registers store metrics on the given registry.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_duration_seconds",
			Help:      "Duration of store queries in seconds, by statement verb.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"query"}),
		QueryErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "query_errors_total",
			Help:      "Total number of failed store queries, by statement verb.",
		}, []string{"query"}),
		WriteRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "write_retries_total",
			Help:      "Total number of retried preference writes.",
		}),
	}

	reg.MustRegister(m.QueryDuration, m.QueryErrors, m.WriteRetries)
	return m
}

func (m *StoreMetrics) ObserveQuery(query string, seconds float64, err error) {
	m.QueryDuration.WithLabelValues(query).Observe(seconds)
	if err != nil {
		m.QueryErrors.WithLabelValues(query).Inc()
	}
}

func (m *StoreMetrics) RecordWriteRetry() {
	m.WriteRetries.Inc()
}
