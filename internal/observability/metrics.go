package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aiverse"

// Metrics holds the collectors for upstream calls and response normalization.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	upstreamAttempts  *prometheus.CounterVec
	upstreamLatency   *prometheus.HistogramVec
	credentialRefresh *prometheus.CounterVec
	normalized        *prometheus.CounterVec
}

// NewMetrics registers all collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		upstreamAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_attempts_total",
			Help:      "Outbound upstream call attempts by outcome.",
		}, []string{"upstream", "outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_call_duration_seconds",
			Help:      "Latency of individual upstream call attempts.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"upstream"}),
		credentialRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credential_refresh_total",
			Help:      "Upstream credential exchanges by outcome.",
		}, []string{"upstream", "outcome"}),
		normalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "normalize_total",
			Help:      "Generative model outputs normalized, by mode and parse tier.",
		}, []string{"mode", "tier"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.upstreamAttempts,
		m.upstreamLatency,
		m.credentialRefresh,
		m.normalized,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry (used by tests).
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAttempt(upstream, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.upstreamAttempts.WithLabelValues(upstream, outcome).Inc()
	m.upstreamLatency.WithLabelValues(upstream).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCredentialRefresh(upstream, outcome string) {
	if m == nil {
		return
	}
	m.credentialRefresh.WithLabelValues(upstream, outcome).Inc()
}

func (m *Metrics) ObserveNormalize(mode, tier string) {
	if m == nil {
		return
	}
	m.normalized.WithLabelValues(mode, tier).Inc()
}
