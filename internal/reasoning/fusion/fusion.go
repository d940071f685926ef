// Package fusion collapses the completed threads of a request into one
// final answer, under either the intelligent or concat strategy.
package fusion

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/modelclient"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"
)

// Config configures the fusion stage.
type Config struct {
	FusionModel      string
	ConcatDelimiter  string
	FusionPrompt     string // template; "%s" and "%s" replaced with the question and the joined thread answers
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		FusionModel:     "fusion",
		ConcatDelimiter: "\n\n---\n\n",
		FusionPrompt: "The user asked:\n%s\n\nHere are the final answers from independent reasoning threads:\n%s\n\n" +
			"Extract shared conclusions, integrate unique insights, and resolve contradictions into one answer.",
	}
}

// Fuser merges completed threads into one text.
type Fuser struct {
	client modelclient.ModelClient
	config Config
}

// New builds a Fuser against client.
func New(client modelclient.ModelClient, config Config) *Fuser {
	return &Fuser{client: client, config: config}
}

// Fuse implements the fusion contract. Intelligent-strategy failures fall
// back to concat, which cannot itself fail.
func (f *Fuser) Fuse(ctx context.Context, completed []*types.ThreadState, userMessages []types.Message, strategy types.FusionStrategy) (string, error) {
	if len(completed) == 0 {
		return "", types.NewGatewayError(types.KindAllThreadsFailed, "fusion requires at least one completed thread", nil)
	}

	ordered := orderedCopy(completed)

	if strategy == types.FusionIntelligent {
		text, err := f.intelligent(ctx, ordered, userMessages)
		if err == nil {
			return text, nil
		}
		return f.concat(ordered), nil
	}

	return f.concat(ordered), nil
}

func orderedCopy(threads []*types.ThreadState) []*types.ThreadState {
	out := make([]*types.ThreadState, len(threads))
	copy(out, threads)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *Fuser) intelligent(ctx context.Context, threads []*types.ThreadState, userMessages []types.Message) (string, error) {
	var finals []string
	for _, th := range threads {
		last := th.LastStep()
		if last == nil {
			continue
		}
		finals = append(finals, last.Body)
	}

	question := lastUserContent(userMessages)
	prompt := fmt.Sprintf(f.config.FusionPrompt, question, strings.Join(finals, "\n"))

	text, err := f.client.Invoke(ctx, f.config.FusionModel, []types.Message{
		{Role: types.RoleUser, Content: prompt},
	}, types.InvokeOptions{})
	if err != nil {
		return "", types.NewGatewayError(types.KindFusionFailed, "intelligent fusion failed", err)
	}
	return text, nil
}

// concat joins each thread's last-step body with the configured
// delimiter, thread id ascending. No per-thread header is emitted: the
// delimiter alone (e.g. a blank line plus a rule) is expected to carry
// enough structure for a human reader.
func (f *Fuser) concat(threads []*types.ThreadState) string {
	var parts []string
	for _, th := range threads {
		last := th.LastStep()
		body := ""
		if last != nil {
			body = last.Body
		}
		parts = append(parts, body)
	}
	return strings.Join(parts, f.config.ConcatDelimiter)
}

func lastUserContent(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
