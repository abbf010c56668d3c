// Package metrics exposes Prometheus counters for the session guard, the
// auth gateway and the assistant relay.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "quantdesk"

// Metrics implements session.Observer, auth.Observer and relay.Observer.
type Metrics struct {
	GuardVerdicts *prometheus.CounterVec
	AuthCalls     *prometheus.CounterVec
	RelayResults  *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		GuardVerdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guard_verdicts_total",
				Help:      "Session guard verdicts by reason",
			},
			[]string{"reason"},
		),
		AuthCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_calls_total",
				Help:      "Platform auth calls by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		RelayResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "relay_results_total",
				Help:      "Assistant relay outcomes by reason",
			},
			[]string{"reason"},
		),
		gatherer: reg,
	}

	reg.MustRegister(m.GuardVerdicts, m.AuthCalls, m.RelayResults)
	return m
}

// ObserveVerdict counts a guard verdict.
func (m *Metrics) ObserveVerdict(reason string) {
	m.GuardVerdicts.WithLabelValues(reason).Inc()
}

// ObserveAuth counts a gateway call.
func (m *Metrics) ObserveAuth(op, outcome string) {
	m.AuthCalls.WithLabelValues(op, outcome).Inc()
}

// ObserveRelay counts a relay outcome.
func (m *Metrics) ObserveRelay(reason string) {
	m.RelayResults.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
