// Package thinking implements a single reasoning thread's state machine:
// it drives the step loop against a ContextBuilder, a main-model
// ModelClient and an optional Validator until it self-declares completion
// or hits the step cap.
package thinking

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/modelclient"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"
)

// ContextBuilder is the subset of contextbuilder.Builder a thread depends
// on; declared here so thinking does not import contextbuilder directly
// and the two packages can evolve independently.
type ContextBuilder interface {
	Build(ctx context.Context, history []*types.Step, userMessages []types.Message, nextIndex int) ([]types.Message, error)
}

// Validator is the subset of validator.Validator a thread depends on.
type Validator interface {
	Validate(ctx context.Context, stepText, userQuestion string) (*types.ValidationVerdict, error)
}

// Metrics is the subset of metrics.Metrics a thread reports its terminal
// status to. Declared here, not imported, for the same reason as
// ContextBuilder and Validator above.
type Metrics interface {
	ObserveThreadOutcome(status string)
}

// Config configures one thread's run.
type Config struct {
	MainModel         string
	TerminationMarker string
	MaxSteps          int
	ValidateSteps     bool
	SamplingOverride  types.InvokeOptions
}

// Thread drives a single reasoning trajectory.
type Thread struct {
	client  modelclient.ModelClient
	builder ContextBuilder
	val     Validator
	config  Config
	metrics Metrics
}

// New builds a Thread against the given collaborators.
func New(client modelclient.ModelClient, builder ContextBuilder, val Validator, config Config) *Thread {
	return &Thread{client: client, builder: builder, val: val, config: config}
}

// WithMetrics attaches a Metrics recorder, reported to on every terminal
// transition. Optional; a Thread with no Metrics attached skips reporting.
func (t *Thread) WithMetrics(m Metrics) *Thread {
	t.metrics = m
	return t
}

// Run executes the step loop until termination or the step cap, and
// returns the frozen ThreadState. It never panics; all failure is
// reported through ThreadState.Status.
func (t *Thread) Run(ctx context.Context, threadID int, userMessages []types.Message) *types.ThreadState {
	state := types.NewThreadState(threadID)
	lastUser := lastUserMessage(userMessages)

	var pending sync.WaitGroup
	history := make([]*types.Step, 0, t.config.MaxSteps)

	for i := 0; i < t.config.MaxSteps; i++ {
		if err := ctx.Err(); err != nil {
			t.finish(state, types.ThreadFailed, "canceled")
			pending.Wait()
			return state
		}

		msgs, err := t.builder.Build(ctx, history, userMessages, i)
		if err != nil {
			t.finish(state, types.ThreadFailed, "context build failed: "+err.Error())
			pending.Wait()
			return state
		}

		start := time.Now()
		text, err := t.client.Invoke(ctx, t.config.MainModel, msgs, t.config.SamplingOverride)
		if err != nil {
			t.finish(state, types.ThreadFailed, "upstream unavailable: "+err.Error())
			pending.Wait()
			return state
		}

		step := &types.Step{
			Index:   i,
			Body:    text,
			Done:    t.isTerminal(text),
			Verdict: types.VerdictPending,
			Elapsed: time.Since(start),
		}
		if !t.config.ValidateSteps {
			step.Verdict = types.VerdictSkipped
		}
		state.AppendStep(step)
		history = append(history, step)

		if t.config.ValidateSteps {
			pending.Add(1)
			go func(idx int, body string) {
				defer pending.Done()
				verdict, verr := t.val.Validate(ctx, body, lastUser)
				if verr != nil || verdict == nil {
					state.AttachVerdict(idx, types.VerdictSkipped, nil)
					return
				}
				state.AttachVerdict(idx, verdict.Outcome, verdict)
			}(i, text)
		}

		if step.Done {
			pending.Wait()
			t.finish(state, types.ThreadCompleted, "")
			return state
		}
	}

	pending.Wait()
	t.finish(state, types.ThreadCompleted, "")
	return state
}

// finish transitions state to its terminal status and reports it to the
// attached Metrics, if any.
func (t *Thread) finish(state *types.ThreadState, status types.ThreadStatus, reason string) {
	state.Finish(status, reason)
	if t.metrics != nil {
		t.metrics.ObserveThreadOutcome(string(status))
	}
}

// isTerminal is a pure function over the step text: true iff it contains
// the configured sentinel, or the trimmed body is empty.
func (t *Thread) isTerminal(body string) bool {
	if strings.TrimSpace(body) == "" {
		return true
	}
	if t.config.TerminationMarker == "" {
		return false
	}
	return strings.Contains(body, t.config.TerminationMarker)
}

func lastUserMessage(messages []types.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == types.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
