package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "anubis"

// Authentication outcomes
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	authentications *prometheus.CounterVec
	decisions       *prometheus.CounterVec
	staleKeyUses    *prometheus.CounterVec
	keyCache        *prometheus.CounterVec
	signatureWrites *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them, together with the
// Go runtime and process collectors, on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		authentications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "authentications_total",
				Help:      "Authentication attempts by token type and outcome.",
			},
			[]string{"token_type", "outcome", "reason"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "access_decisions_total",
				Help:      "Access decisions by result.",
			},
			[]string{"decision"},
		),
		staleKeyUses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stale_key_uses_total",
				Help:      "Tokens presented with an invalidated key timestamp.",
			},
			[]string{"token_type"},
		),
		keyCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "key_cache",
				Name:      "lookups_total",
				Help:      "Key cache lookups by result.",
			},
			[]string{"result"},
		),
		signatureWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signature_set_writes_total",
				Help:      "Signature set writes by operation.",
			},
			[]string{"operation"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.authentications,
		m.decisions,
		m.staleKeyUses,
		m.keyCache,
		m.signatureWrites,
	)
	return m
}

// Registry returns the registry the collectors live on
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAuthentication counts one authentication attempt. reason is empty on success.
func (m *Metrics) RecordAuthentication(tokenType, outcome, reason string) {
	if m == nil {
		return
	}
	m.authentications.WithLabelValues(tokenType, outcome, reason).Inc()
}

// RecordDecision counts one access decision
func (m *Metrics) RecordDecision(granted bool) {
	if m == nil {
		return
	}
	decision := "denied"
	if granted {
		decision = "granted"
	}
	m.decisions.WithLabelValues(decision).Inc()
}

// RecordStaleKeyUse counts a token signed under an invalidated key timestamp
func (m *Metrics) RecordStaleKeyUse(tokenType string) {
	if m == nil {
		return
	}
	m.staleKeyUses.WithLabelValues(tokenType).Inc()
}

// RecordKeyCache counts a key cache hit or miss
func (m *Metrics) RecordKeyCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.keyCache.WithLabelValues(result).Inc()
}

// RecordSignatureWrite counts a signature set create, provision, or invalidate
func (m *Metrics) RecordSignatureWrite(operation string) {
	if m == nil {
		return
	}
	m.signatureWrites.WithLabelValues(operation).Inc()
}
