package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the check-in desk counters. It satisfies checkin.Recorder.
type Metrics struct {
	registry       *prometheus.Registry
	ActiveSessions prometheus.Gauge
	LookupsTotal   *prometheus.CounterVec
	CommitsTotal   *prometheus.CounterVec
	UndosTotal     *prometheus.CounterVec
	SearchesTotal  *prometheus.CounterVec
	CapturesTotal  *prometheus.CounterVec
	DesksEvicted   prometheus.Counter
}

func NewMetrics() *Metrics {
	r := prometheus.NewRegistry()
	m := &Metrics{
		registry: r,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "checkin",
			Name:      "active_sessions",
			Help:      "Number of desks with an active scanning session",
		}),
		LookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "lookups_total",
			Help:      "Code lookups by outcome",
		}, []string{"outcome"}),
		CommitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "commits_total",
			Help:      "Confirmed check-ins by outcome",
		}, []string{"outcome"}),
		UndosTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "undos_total",
			Help:      "Undone check-ins by outcome",
		}, []string{"outcome"}),
		SearchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "searches_total",
			Help:      "Name/email searches by outcome",
		}, []string{"outcome"}),
		CapturesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "captures_total",
			Help:      "Capture attempts by backend and outcome",
		}, []string{"backend", "outcome"}),
		DesksEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "desks_evicted_total",
			Help:      "Desks torn down after expiry or deletion",
		}),
	}
	r.MustRegister(m.ActiveSessions, m.LookupsTotal, m.CommitsTotal, m.UndosTotal,
		m.SearchesTotal, m.CapturesTotal, m.DesksEvicted)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) SessionStarted() { m.ActiveSessions.Inc() }

func (m *Metrics) SessionStopped() { m.ActiveSessions.Dec() }

func (m *Metrics) Lookup(outcome string) { m.LookupsTotal.WithLabelValues(outcome).Inc() }

func (m *Metrics) Commit(outcome string) { m.CommitsTotal.WithLabelValues(outcome).Inc() }

func (m *Metrics) Undo(outcome string) { m.UndosTotal.WithLabelValues(outcome).Inc() }

func (m *Metrics) Search(outcome string) { m.SearchesTotal.WithLabelValues(outcome).Inc() }

func (m *Metrics) Capture(backend, outcome string) {
	m.CapturesTotal.WithLabelValues(backend, outcome).Inc()
}

func (m *Metrics) DeskEvicted() { m.DesksEvicted.Inc() }
