// Package metrics exposes Prometheus collectors for provider calls, alert
// dispatch and rate limiting. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "visibility"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
)

// Metrics holds every collector the engine records to.
type Metrics struct {
	providerCalls       *prometheus.CounterVec
	providerLatency     *prometheus.HistogramVec
	chainFailures       *prometheus.CounterVec
	alertDispatches     *prometheus.CounterVec
	rateLimitRejections *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Provider calls made by the router, by provider, operation and outcome.",
		}, []string{"provider", "operation", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Latency of provider calls that reached the upstream.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45},
		}, []string{"provider", "operation"}),
		chainFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_chain_failures_total",
			Help:      "Router chains in which every provider failed.",
		}, []string{"operation"}),
		alertDispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_dispatches_total",
			Help:      "Alert notification attempts, by channel and outcome.",
		}, []string{"channel", "outcome"}),
		rateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the fixed-window rate limiter.",
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.providerCalls,
		m.providerLatency,
		m.chainFailures,
		m.alertDispatches,
		m.rateLimitRejections,
	)
	return m
}

// ObserveProviderCall records one provider attempt. A zero elapsed duration
// (skipped provider) is counted but not observed as latency.
func (m *Metrics) ObserveProviderCall(provider, operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerCalls.WithLabelValues(provider, operation, outcome).Inc()
	if elapsed > 0 {
		m.providerLatency.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
	}
}

// IncChainFailure records an exhausted router chain.
func (m *Metrics) IncChainFailure(operation string) {
	if m == nil {
		return
	}
	m.chainFailures.WithLabelValues(operation).Inc()
}

// IncAlertDispatch records one notification attempt.
func (m *Metrics) IncAlertDispatch(channel, outcome string) {
	if m == nil {
		return
	}
	m.alertDispatches.WithLabelValues(channel, outcome).Inc()
}

// IncRateLimitRejection records a request denied by the limiter.
func (m *Metrics) IncRateLimitRejection(route string) {
	if m == nil {
		return
	}
	m.rateLimitRejections.WithLabelValues(route).Inc()
}
