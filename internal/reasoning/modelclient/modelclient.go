// Package modelclient defines the ModelClient capability consumed by the
// reasoning pipeline, plus the retry and circuit-breaker decorators every
// concrete implementation is wrapped in before being wired into the
// orchestrator.
package modelclient

import (
	"context"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"
)

// ModelClient invokes a named upstream model and returns its complete
// text response. The core never talks to an upstream wire protocol
// directly; it only ever calls through this interface.
type ModelClient interface {
	Invoke(ctx context.Context, model string, messages []types.Message, opts types.InvokeOptions) (string, error)
}

// Func adapts a plain function to the ModelClient interface, mirroring
// http.HandlerFunc.
type Func func(ctx context.Context, model string, messages []types.Message, opts types.InvokeOptions) (string, error)

// Invoke implements ModelClient.
func (f Func) Invoke(ctx context.Context, model string, messages []types.Message, opts types.InvokeOptions) (string, error) {
	return f(ctx, model, messages, opts)
}
