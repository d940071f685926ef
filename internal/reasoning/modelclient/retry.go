package modelclient

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"
)

// RetryConfig configures the exponential-backoff retry policy applied
// around every upstream call. The default policy makes 3 attempts; the
// wait between them starts at 2s and doubles (capped at 8s), so the two
// waits are about 2s and 4s, randomized by backoff's default jitter.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	PerCallTimeout time.Duration
}

// DefaultRetryConfig returns the documented retry schedule.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      2 * time.Second,
		MaxDelay:       8 * time.Second,
		PerCallTimeout: 60 * time.Second,
	}
}

// RetryingClient wraps a ModelClient with exponential-backoff retries and
// a per-call timeout. It is the only place backoff.Retry is used; every
// concrete provider client should be constructed through NewRetryingClient
// rather than retrying on its own.
type RetryingClient struct {
	inner  ModelClient
	config RetryConfig
}

// NewRetryingClient wraps inner with the given retry policy.
func NewRetryingClient(inner ModelClient, config RetryConfig) *RetryingClient {
	if config.MaxAttempts <= 0 {
		config = DefaultRetryConfig()
	}
	return &RetryingClient{inner: inner, config: config}
}

// Invoke implements ModelClient, retrying transient failures. Each attempt
// gets its own PerCallTimeout.
func (c *RetryingClient) Invoke(ctx context.Context, model string, messages []types.Message, opts types.InvokeOptions) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.BaseDelay
	b.MaxInterval = c.config.MaxDelay
	b.Multiplier = 2

	return backoff.Retry(ctx, func() (string, error) {
		callCtx := ctx
		if c.config.PerCallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.config.PerCallTimeout)
			defer cancel()
		}
		text, err := c.inner.Invoke(callCtx, model, messages, opts)
		if err != nil {
			return "", err
		}
		return text, nil
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(c.config.MaxAttempts)))
}
