// Package contextbuilder implements the sliding-window compression policy
// that turns a thread's step history into the message list fed to the
// next main-model call.
package contextbuilder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/modelclient"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"
)

// Config configures the summarization call made for the compressed
// middle range.
type Config struct {
	SummaryModel  string
	SummaryPrompt string // template; "%s" is replaced with the joined middle-step bodies
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		SummaryModel:  "summary",
		SummaryPrompt: "Summarize the following reasoning steps, preserving every fact that later steps might depend on:\n\n%s",
	}
}

// Builder is a ContextBuilder instance owned by a single request. It
// memoizes one summary call per distinct middle range: a request for the
// same range (same step indices and bodies) reuses the stored summary. A
// middle range that has grown by a step is a different range and is
// summarized afresh; earlier summaries are not extended.
type Builder struct {
	client modelclient.ModelClient
	config Config

	mu    sync.Mutex
	memo  map[string]string
}

// New creates a request-scoped Builder. It must not be shared across
// requests: its memo is part of the per-request state the core owns.
func New(client modelclient.ModelClient, config Config) *Builder {
	return &Builder{client: client, config: config, memo: make(map[string]string)}
}

// Build implements the compression policy of the component design.
func (b *Builder) Build(ctx context.Context, history []*types.Step, userMessages []types.Message, nextIndex int) ([]types.Message, error) {
	k := nextIndex
	out := make([]types.Message, 0, len(userMessages)+4)
	out = append(out, userMessages...)

	switch {
	case k == 0:
		return out, nil
	case k == 1:
		return append(out, assistantMessage(history[0])), nil
	case k == 2:
		return append(out, assistantMessage(history[0]), assistantMessage(history[1])), nil
	default:
		middle := history[1 : k-2]
		summary, err := b.summarize(ctx, middle)
		if err != nil {
			return nil, err
		}
		out = append(out, assistantMessage(history[0]))
		out = append(out, types.Message{Role: types.RoleAssistant, Content: summary})
		out = append(out, assistantMessage(history[k-2]), assistantMessage(history[k-1]))
		return out, nil
	}
}

func assistantMessage(s *types.Step) types.Message {
	return types.Message{Role: types.RoleAssistant, Content: s.Body}
}

// summarize returns the memoized summary for middle, calling the summary
// model only on a cache miss.
func (b *Builder) summarize(ctx context.Context, middle []*types.Step) (string, error) {
	key := middleKey(middle)

	b.mu.Lock()
	if cached, ok := b.memo[key]; ok {
		b.mu.Unlock()
		return cached, nil
	}
	b.mu.Unlock()

	var bodies []string
	for _, s := range middle {
		bodies = append(bodies, s.Body)
	}
	prompt := fmt.Sprintf(b.config.SummaryPrompt, strings.Join(bodies, "\n---\n"))

	summary, err := b.client.Invoke(ctx, b.config.SummaryModel, []types.Message{
		{Role: types.RoleUser, Content: prompt},
	}, types.InvokeOptions{})
	if err != nil {
		return "", fmt.Errorf("contextbuilder: summarize middle range: %w", err)
	}

	b.mu.Lock()
	b.memo[key] = summary
	b.mu.Unlock()

	return summary, nil
}

// middleKey identifies a middle range by a hash over its step indices and
// bodies, so two requests for a range share a key only when every index
// and body in it is identical.
func middleKey(middle []*types.Step) string {
	h := sha256.New()
	for _, s := range middle {
		fmt.Fprintf(h, "%d:", s.Index)
		h.Write([]byte(s.Body))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
