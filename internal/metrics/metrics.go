// Package metrics exposes Prometheus instruments for providers, sessions
// and render jobs. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chat_english"

// Metrics holds the service instruments.
type Metrics struct {
	registry *prometheus.Registry

	generateTotal    *prometheus.CounterVec
	generateDuration *prometheus.HistogramVec
	fallbackTotal    *prometheus.CounterVec
	probeTotal       *prometheus.CounterVec
	renderTotal      *prometheus.CounterVec
	renderPolls      prometheus.Counter
	activeSessions   prometheus.Gauge
}

// New creates the instruments on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generateTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_generate_total",
			Help:      "Generate calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		generateDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_generate_seconds",
			Help:      "Generate call latency by provider.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		fallbackTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallback_total",
			Help:      "Degradations to the mock provider by failing provider.",
		}, []string{"from"}),
		probeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_probe_total",
			Help:      "Provider probes by result.",
		}, []string{"provider", "result"}),
		renderTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_jobs_total",
			Help:      "Finished render jobs by terminal state.",
		}, []string{"state"}),
		renderPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "render_polls_total",
			Help:      "Render status polls issued.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Conversation sessions currently open.",
		}),
	}
	m.registry.MustRegister(
		m.generateTotal,
		m.generateDuration,
		m.fallbackTotal,
		m.probeTotal,
		m.renderTotal,
		m.renderPolls,
		m.activeSessions,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveGenerate(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.generateTotal.WithLabelValues(provider, outcome).Inc()
	m.generateDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) IncFallback(from string) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(from).Inc()
}

func (m *Metrics) IncProbe(provider string, ok bool) {
	if m == nil {
		return
	}
	result := "fail"
	if ok {
		result = "ok"
	}
	m.probeTotal.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) IncRender(state string) {
	if m == nil {
		return
	}
	m.renderTotal.WithLabelValues(state).Inc()
}

func (m *Metrics) IncRenderPoll() {
	if m == nil {
		return
	}
	m.renderPolls.Inc()
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
