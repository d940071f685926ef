package modelclient

import (
	"context"
	"sync"
	"time"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"
)

// CircuitState is the state of a CircuitBreaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half_open"
)

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	SuccessThreshold    int
	Cooldown            time.Duration
	HalfOpenMaxRequests int
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Cooldown:            30 * time.Second,
		HalfOpenMaxRequests: 3,
	}
}

// Metrics is the subset of metrics.Metrics a CircuitBreaker reports its
// open-state trips to. Declared here, not imported, to keep this package
// free of an internal/metrics dependency.
type Metrics interface {
	ObserveCircuitBreakerTrip(model string)
}

// CircuitBreaker wraps a ModelClient for one named model and stops
// dispatching calls to it once it has failed persistently, shedding load
// with types.ErrCircuitOpen until its cooldown elapses.
type CircuitBreaker struct {
	mu                   sync.Mutex
	inner                ModelClient
	config               CircuitBreakerConfig
	state                CircuitState
	consecutiveFailures  int
	consecutiveSuccesses int
	lastFailure          time.Time
	halfOpenInFlight     int
	metrics              Metrics
}

// NewCircuitBreaker wraps inner with the given config.
func NewCircuitBreaker(inner ModelClient, config CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{inner: inner, config: config, state: CircuitClosed}
}

// WithMetrics attaches a Metrics recorder, reported to on every
// transition into the open state. Optional.
func (cb *CircuitBreaker) WithMetrics(m Metrics) *CircuitBreaker {
	cb.metrics = m
	return cb
}

// State reports the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Invoke implements ModelClient.
func (cb *CircuitBreaker) Invoke(ctx context.Context, model string, messages []types.Message, opts types.InvokeOptions) (string, error) {
	if err := cb.beforeCall(); err != nil {
		return "", err
	}

	text, err := cb.inner.Invoke(ctx, model, messages, opts)
	cb.afterCall(model, err)
	return text, err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitOpen:
		if time.Since(cb.lastFailure) > cb.config.Cooldown {
			cb.state = CircuitHalfOpen
			cb.halfOpenInFlight = 1
			return nil
		}
		return types.ErrCircuitOpen
	case CircuitHalfOpen:
		if cb.halfOpenInFlight >= cb.config.HalfOpenMaxRequests {
			return types.ErrCircuitOpen
		}
		cb.halfOpenInFlight++
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) afterCall(model string, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.consecutiveFailures++
		cb.consecutiveSuccesses = 0
		cb.lastFailure = time.Now()

		switch cb.state {
		case CircuitClosed:
			if cb.consecutiveFailures >= cb.config.FailureThreshold {
				cb.state = CircuitOpen
				cb.trip(model)
			}
		case CircuitHalfOpen:
			cb.state = CircuitOpen
			cb.trip(model)
		}
		return
	}

	cb.consecutiveSuccesses++
	cb.consecutiveFailures = 0
	if cb.state == CircuitHalfOpen && cb.consecutiveSuccesses >= cb.config.SuccessThreshold {
		cb.state = CircuitClosed
	}
}

// trip reports a transition into the open state. Called with cb.mu held.
func (cb *CircuitBreaker) trip(model string) {
	if cb.metrics != nil {
		cb.metrics.ObserveCircuitBreakerTrip(model)
	}
}
