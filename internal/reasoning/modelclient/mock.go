package modelclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"
)

// ScriptEntry is one scripted response for MockClient: Text is returned on
// success, Err causes the call to fail instead.
type ScriptEntry struct {
	Text string
	Err  error
}

// MockClient is a deterministic ModelClient driven by a per-model script,
// used by the test suite. Each
// model name owns its own call counter; calls past the end of a model's
// script repeat its final entry.
type MockClient struct {
	mu      sync.Mutex
	scripts map[string][]ScriptEntry
	calls   map[string]int
	history []InvocationRecord
}

// InvocationRecord captures one call made through the mock, for assertions
// about call ordering and message content in tests.
type InvocationRecord struct {
	Model    string
	Messages []types.Message
}

// NewMockClient builds a MockClient with no scripted models; use
// Script to add them.
func NewMockClient() *MockClient {
	return &MockClient{
		scripts: make(map[string][]ScriptEntry),
		calls:   make(map[string]int),
	}
}

// Script registers the ordered responses for a given model name.
func (m *MockClient) Script(model string, entries ...ScriptEntry) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[model] = entries
	return m
}

// Invoke implements ModelClient.
func (m *MockClient) Invoke(ctx context.Context, model string, messages []types.Message, opts types.InvokeOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, InvocationRecord{Model: model, Messages: messages})

	entries, ok := m.scripts[model]
	if !ok || len(entries) == 0 {
		return "", fmt.Errorf("modelclient: no script for model %q", model)
	}

	idx := m.calls[model]
	m.calls[model] = idx + 1
	if idx >= len(entries) {
		idx = len(entries) - 1
	}

	entry := entries[idx]
	if entry.Err != nil {
		return "", entry.Err
	}
	return entry.Text, nil
}

// History returns every invocation recorded so far, in call order.
func (m *MockClient) History() []InvocationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]InvocationRecord, len(m.history))
	copy(out, m.history)
	return out
}

// CallCount reports how many times model has been invoked.
func (m *MockClient) CallCount(model string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[model]
}
