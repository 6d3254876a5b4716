package metrics

import "github.com/prometheus/client_golang/prometheus"

// PreferencesMetrics covers profile resolution, preference population,
// transitions and the session population.
type PreferencesMetrics struct {
	Resolutions    *prometheus.CounterVec
	Populations    *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
	SessionEnds    *prometheus.CounterVec
}

// NewPreferencesMetrics creates and registers preferences metrics on the given registry.
func NewPreferencesMetrics(reg prometheus.Registerer) *PreferencesMetrics {
	m := &PreferencesMetrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "profile",
			Name:      "resolutions_total",
			Help:      "Total number of profile resolutions, by the cascade step that matched.",
		}, []string{"step"}),
		Populations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preferences",
			Name:      "populations_total",
			Help:      "Total number of preference populations, by source.",
		}, []string{"source"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "preferences",
			Name:      "transitions_total",
			Help:      "Total number of preference transitions, by outcome.",
		}, []string{"outcome"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Number of sessions held in memory.",
		}),
		SessionEnds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "ended_total",
			Help:      "Total number of ended sessions, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.Resolutions, m.Populations, m.Transitions, m.ActiveSessions, m.SessionEnds)
	return m
}

func (m *PreferencesMetrics) RecordResolution(step string) {
	m.Resolutions.WithLabelValues(step).Inc()
}

func (m *PreferencesMetrics) RecordPopulation(source string) {
	m.Populations.WithLabelValues(source).Inc()
}

func (m *PreferencesMetrics) RecordTransition(outcome string) {
	m.Transitions.WithLabelValues(outcome).Inc()
}

func (m *PreferencesMetrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

func (m *PreferencesMetrics) RecordSessionEnd(reason string) {
	m.SessionEnds.WithLabelValues(reason).Inc()
}
