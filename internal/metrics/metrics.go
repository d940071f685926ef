// Package metrics registers the Prometheus collectors the gateway exposes
// on /metrics: in-flight upstream calls, thread outcomes, validation
// verdicts, fusion strategy usage and request latency.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the gateway records against. Built around
// an explicit *prometheus.Registry (rather than the package-level default
// registry) so a process can construct more than one Orchestrator — in
// tests, or in a future multi-tenant deployment — without a
// duplicate-registration panic, and so /metrics can gather from exactly
// the registry these collectors were registered against.
type Metrics struct {
	Registry *prometheus.Registry

	InFlightModelCalls *prometheus.GaugeVec
	ThreadOutcomes     *prometheus.CounterVec
	ValidationVerdicts *prometheus.CounterVec
	FusionStrategyUsed *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	CircuitBreakerTrip *prometheus.CounterVec
}

// New registers and returns the gateway's collectors against reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		InFlightModelCalls: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reasoning_gateway_inflight_model_calls",
			Help: "Number of upstream model calls currently in flight, by role.",
		}, []string{"role"}),

		ThreadOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reasoning_gateway_thread_outcomes_total",
			Help: "Total ThinkingThread terminations, by outcome.",
		}, []string{"outcome"}),

		ValidationVerdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reasoning_gateway_validation_verdicts_total",
			Help: "Total validation verdicts, by outcome.",
		}, []string{"outcome"}),

		FusionStrategyUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reasoning_gateway_fusion_strategy_total",
			Help: "Total answered requests, by requested fusion strategy (a fallback to concat is counted under the requested strategy).",
		}, []string{"strategy"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reasoning_gateway_request_duration_seconds",
			Help:    "End-to-end request latency from ingress to final answer.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),

		CircuitBreakerTrip: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "reasoning_gateway_circuit_breaker_trips_total",
			Help: "Total circuit breaker state transitions into open, by model.",
		}, []string{"model"}),
	}
}

// ObserveRequest records the outcome and latency of one gateway request.
func (m *Metrics) ObserveRequest(outcome string, elapsed time.Duration) {
	m.RequestDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveThreadOutcome records one ThinkingThread's terminal status.
func (m *Metrics) ObserveThreadOutcome(status string) {
	m.ThreadOutcomes.WithLabelValues(status).Inc()
}

// ObserveValidationVerdict records one Validator verdict outcome.
func (m *Metrics) ObserveValidationVerdict(outcome string) {
	m.ValidationVerdicts.WithLabelValues(outcome).Inc()
}

// ObserveFusionStrategy records the fusion strategy a request asked for.
// It does not distinguish an intelligent fusion that fell back to concat.
func (m *Metrics) ObserveFusionStrategy(strategy string) {
	m.FusionStrategyUsed.WithLabelValues(strategy).Inc()
}

// IncInFlightModelCalls marks one upstream call as started, by model role.
func (m *Metrics) IncInFlightModelCalls(role string) {
	m.InFlightModelCalls.WithLabelValues(role).Inc()
}

// DecInFlightModelCalls marks one upstream call as finished, by model role.
func (m *Metrics) DecInFlightModelCalls(role string) {
	m.InFlightModelCalls.WithLabelValues(role).Dec()
}

// ObserveCircuitBreakerTrip records one circuit breaker transition into
// the open state, for the named model.
func (m *Metrics) ObserveCircuitBreakerTrip(model string) {
	m.CircuitBreakerTrip.WithLabelValues(model).Inc()
}
