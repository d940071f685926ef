// Package validator implements the per-step adversarial validation
// sub-pipeline: K counterexamples, V votes, and the tallying rule that
// turns them into a Verdict.
package validator

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/modelclient"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"
)

// Config configures the validator.
type Config struct {
	CounterexampleModel string
	VoteModel           string
	Counterexamples     int // K
	Votes               int // V
	MainKeywords        []string
	CounterKeywords      []string
}

// DefaultConfig returns the documented defaults: K=3, V=3.
func DefaultConfig() Config {
	return Config{
		CounterexampleModel: "counterexample",
		VoteModel:           "vote",
		Counterexamples:     3,
		Votes:               3,
		MainKeywords:        []string{"main", "correct", "valid"},
		CounterKeywords:     []string{"counter", "incorrect", "invalid", "flawed"},
	}
}

// Metrics is the subset of metrics.Metrics a Validator reports each
// verdict's outcome to. Declared here, not imported, to keep this package
// free of an internal/metrics dependency.
type Metrics interface {
	ObserveValidationVerdict(outcome string)
}

// Validator runs Phase 1 (counterexamples) and Phase 2 (voting) for a
// single step.
type Validator struct {
	client  modelclient.ModelClient
	config  Config
	metrics Metrics
}

// New builds a Validator against client.
func New(client modelclient.ModelClient, config Config) *Validator {
	return &Validator{client: client, config: config}
}

// WithMetrics attaches a Metrics recorder, reported to with every verdict
// outcome Validate produces. Optional.
func (v *Validator) WithMetrics(m Metrics) *Validator {
	v.metrics = m
	return v
}

// Validate implements the per-step adversarial sub-pipeline.
func (v *Validator) Validate(ctx context.Context, stepText, userQuestion string) (*types.ValidationVerdict, error) {
	counterexamples, ceErr := v.generateCounterexamples(ctx, stepText, userQuestion)
	if ceErr != nil {
		return v.observed(&types.ValidationVerdict{Outcome: types.VerdictSkipped}), nil
	}

	votes, voteErr := v.collectVotes(ctx, stepText, counterexamples, userQuestion)
	if voteErr != nil {
		return v.observed(&types.ValidationVerdict{Counterexamples: counterexamples, Outcome: types.VerdictSkipped}), nil
	}

	outcome := tally(votes)
	return v.observed(&types.ValidationVerdict{
		Counterexamples: counterexamples,
		Votes:           votes,
		Outcome:         outcome,
	}), nil
}

// observed reports verdict.Outcome to the attached Metrics, if any, and
// returns verdict unchanged.
func (v *Validator) observed(verdict *types.ValidationVerdict) *types.ValidationVerdict {
	if v.metrics != nil {
		v.metrics.ObserveValidationVerdict(string(verdict.Outcome))
	}
	return verdict
}

// generateCounterexamples dispatches K parallel calls. A per-call failure
// yields an empty-string counterexample that still counts as a ballot
// option; only an all-failed round is reported as an error (-> skipped).
func (v *Validator) generateCounterexamples(ctx context.Context, stepText, userQuestion string) ([]string, error) {
	k := v.config.Counterexamples
	results := make([]string, k)
	failures := make([]bool, k)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < k; i++ {
		idx := i
		g.Go(func() error {
			prompt := fmt.Sprintf("Find a flaw in this reasoning step, in answer to %q:\n\n%s", userQuestion, stepText)
			text, err := v.client.Invoke(gctx, v.config.CounterexampleModel, []types.Message{
				{Role: types.RoleUser, Content: prompt},
			}, types.InvokeOptions{})
			if err != nil {
				failures[idx] = true
				return nil
			}
			results[idx] = text
			return nil
		})
	}
	_ = g.Wait()

	allFailed := true
	for _, f := range failures {
		if !f {
			allFailed = false
			break
		}
	}
	if allFailed && k > 0 {
		return nil, fmt.Errorf("validator: all %d counterexample calls failed", k)
	}
	return results, nil
}

// collectVotes dispatches V parallel calls and parses each raw text into a
// Ballot. A per-call failure is coerced to abstain; an all-failed round is
// reported as an error (-> skipped).
func (v *Validator) collectVotes(ctx context.Context, stepText string, counterexamples []string, userQuestion string) ([]types.Ballot, error) {
	n := v.config.Votes
	ballots := make([]types.Ballot, n)
	failures := make([]bool, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		idx := i
		g.Go(func() error {
			prompt := votePrompt(stepText, counterexamples, userQuestion)
			text, err := v.client.Invoke(gctx, v.config.VoteModel, []types.Message{
				{Role: types.RoleUser, Content: prompt},
			}, types.InvokeOptions{})
			if err != nil {
				failures[idx] = true
				ballots[idx] = types.BallotAbstain
				return nil
			}
			ballots[idx] = v.parseVote(text)
			return nil
		})
	}
	_ = g.Wait()

	allFailed := true
	for _, f := range failures {
		if !f {
			allFailed = false
			break
		}
	}
	if allFailed && n > 0 {
		return nil, fmt.Errorf("validator: all %d vote calls failed", n)
	}
	return ballots, nil
}

func votePrompt(stepText string, counterexamples []string, userQuestion string) string {
	return fmt.Sprintf(
		"Question: %s\nStep: %s\nCounterexamples: %s\nVote main, counter, or abstain.",
		userQuestion, stepText, strings.Join(counterexamples, " | "),
	)
}

// parseVote classifies raw vote text into a Ballot using the configured
// keyword sets. Unparseable or empty text is coerced to abstain.
func (v *Validator) parseVote(raw string) types.Ballot {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return types.BallotAbstain
	}
	for _, kw := range v.config.CounterKeywords {
		if strings.Contains(lower, kw) {
			return types.BallotCounter
		}
	}
	for _, kw := range v.config.MainKeywords {
		if strings.Contains(lower, kw) {
			return types.BallotMain
		}
	}
	return types.BallotAbstain
}

// tally applies the outcome rule: accepted iff main-votes >= counter-votes.
// Abstentions do not count; an exact tie (including 0-0) favors accepted.
func tally(votes []types.Ballot) types.Verdict {
	var main, counter int
	for _, b := range votes {
		switch b {
		case types.BallotMain:
			main++
		case types.BallotCounter:
			counter++
		}
	}
	if main >= counter {
		return types.VerdictAccepted
	}
	return types.VerdictFlagged
}
