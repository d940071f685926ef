// Package orchestrator implements the fan-out/fan-in scheduler that drives
// N parallel ThinkingThreads for a request, collects partial failures, and
// hands the finished set to Fusion.
package orchestrator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/concurrency"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/contextbuilder"
	ssechunk "github.com/vasic-digital/reasoning-ensemble-gateway/internal/sse"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/modelclient"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/thinking"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/validator"
)

// Fuser is the subset of fusion.Fuser the orchestrator depends on.
type Fuser interface {
	Fuse(ctx context.Context, completed []*types.ThreadState, userMessages []types.Message, strategy types.FusionStrategy) (string, error)
}

// Config holds the orchestrator's effective, per-request configuration
// (already merged from process defaults and the request's x_* overrides).
type Config struct {
	Threads           int
	MaxSteps          int
	ValidateSteps     bool
	Fusion            types.FusionStrategy
	TerminationMarker string
	MainModel         string
	RequestDeadline   time.Duration
	ChunkSize         int
}

// Metrics is the union of the metrics the orchestrator's collaborators
// report to. metrics.Metrics satisfies this structurally; like Fuser
// above, it is declared here rather than imported.
type Metrics interface {
	ObserveThreadOutcome(status string)
	ObserveValidationVerdict(outcome string)
	IncInFlightModelCalls(role string)
	DecInFlightModelCalls(role string)
}

// Orchestrator wires the per-request collaborators and drives a request
// end to end.
type Orchestrator struct {
	client    modelclient.ModelClient
	limiter   *concurrency.Limiter
	fuser     Fuser
	cbConfig  contextbuilder.Config
	valConfig validator.Config
	logger    *logrus.Logger
	metrics   Metrics
}

// New builds an Orchestrator. client should already be wrapped in
// whatever retry/circuit-breaker decorators the deployment wants; the
// orchestrator only ever calls through the ModelClient interface.
func New(client modelclient.ModelClient, limiter *concurrency.Limiter, fuser Fuser, cbConfig contextbuilder.Config, valConfig validator.Config, logger *logrus.Logger) *Orchestrator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{client: client, limiter: limiter, fuser: fuser, cbConfig: cbConfig, valConfig: valConfig, logger: logger}
}

// WithMetrics attaches a Metrics recorder, passed down to every
// ThinkingThread and Validator the orchestrator constructs. Optional.
func (o *Orchestrator) WithMetrics(m Metrics) *Orchestrator {
	o.metrics = m
	return o
}

// limitedClient wraps the shared ModelClient so every call first acquires
// a permit from the process-wide concurrency limiter, and reports its
// in-flight span to Metrics, by model.
type limitedClient struct {
	inner   modelclient.ModelClient
	limiter *concurrency.Limiter
	metrics Metrics
}

func (l *limitedClient) Invoke(ctx context.Context, model string, messages []types.Message, opts types.InvokeOptions) (string, error) {
	if l.limiter != nil {
		if err := l.limiter.Acquire(ctx); err != nil {
			return "", err
		}
		defer l.limiter.Release()
	}
	if l.metrics != nil {
		l.metrics.IncInFlightModelCalls(model)
		defer l.metrics.DecInFlightModelCalls(model)
	}
	return l.inner.Invoke(ctx, model, messages, opts)
}

// Run executes the non-streaming contract: fan out, wait, fuse.
func (o *Orchestrator) Run(ctx context.Context, req *types.Request, cfg Config) (*types.FinalAnswer, error) {
	if cfg.RequestDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.RequestDeadline)
		defer cancel()
	}

	threadStates := o.runThreads(ctx, req, cfg)

	completed := make([]*types.ThreadState, 0, len(threadStates))
	failed := 0
	flagged := 0
	for _, st := range threadStates {
		if st.Status == types.ThreadCompleted {
			completed = append(completed, st)
			flagged += st.FlaggedStepCount()
		} else {
			failed++
			o.logger.WithFields(logrus.Fields{
				"request_id": req.ID,
				"thread_id":  st.ID,
				"reason":     st.FailureReason,
			}).Warn("thinking thread failed")
		}
	}

	if len(completed) == 0 {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, types.NewGatewayError(types.KindDeadlineExceeded, "request deadline exceeded with no completed threads", ctx.Err())
		}
		return nil, types.NewGatewayError(types.KindAllThreadsFailed, "no thinking thread completed", nil)
	}

	text, err := o.fuser.Fuse(ctx, completed, req.Messages, cfg.Fusion)
	if err != nil {
		return nil, err
	}

	return &types.FinalAnswer{
		Text:             text,
		ThreadsCompleted: len(completed),
		ThreadsFailed:    failed,
		FlaggedSteps:     flagged,
		FusionStrategy:   cfg.Fusion,
	}, nil
}

// RunStream executes the streaming contract: Run, then chunk the final
// text into StreamEvents followed by a terminal done event.
func (o *Orchestrator) RunStream(ctx context.Context, req *types.Request, cfg Config) (<-chan types.StreamEvent, error) {
	answer, err := o.Run(ctx, req, cfg)
	if err != nil {
		return nil, err
	}

	size := cfg.ChunkSize
	if size <= 0 {
		size = 50
	}

	events := make(chan types.StreamEvent)
	go func() {
		defer close(events)
		for _, chunk := range ssechunk.Chunk(answer.Text, size) {
			select {
			case events <- types.StreamEvent{Delta: chunk}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case events <- types.StreamEvent{Done: true}:
		case <-ctx.Done():
		}
	}()
	return events, nil
}

// runThreads fans out cfg.Threads ThinkingThreads via errgroup and
// collects every ThreadState once all have terminated, without ever
// blocking one thread on another. The ContextBuilder is constructed once
// per request and shared across threads: its memo is keyed on step
// indices and content, and access to the memo map is mutex-guarded.
func (o *Orchestrator) runThreads(ctx context.Context, req *types.Request, cfg Config) []*types.ThreadState {
	sharedClient := &limitedClient{inner: o.client, limiter: o.limiter, metrics: o.metrics}
	builder := contextbuilder.New(sharedClient, o.cbConfig)
	results := make([]*types.ThreadState, cfg.Threads)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.Threads; i++ {
		id := i
		g.Go(func() error {
			var val thinking.Validator
			if cfg.ValidateSteps {
				val = validator.New(sharedClient, o.valConfig).WithMetrics(o.metrics)
			}
			thread := thinking.New(sharedClient, builder, val, thinking.Config{
				MainModel:         cfg.MainModel,
				TerminationMarker: cfg.TerminationMarker,
				MaxSteps:          cfg.MaxSteps,
				ValidateSteps:     cfg.ValidateSteps,
			}).WithMetrics(o.metrics)
			results[id] = thread.Run(gctx, id, req.Messages)
			return nil
		})
	}
	_ = g.Wait()

	return results
}
