package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/config"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/metrics"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/orchestrator"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/sse"
)

// Handler wires the decoded-request/encoded-response translation around
// one orchestrator.Orchestrator. It owns no per-request state.
type Handler struct {
	orch    *orchestrator.Orchestrator
	cfg     *config.Config
	logger  *logrus.Logger
	metrics *metrics.Metrics
	ready   func() bool
}

// NewHandler builds a Handler. ready reports whether the process has
// finished startup (config loaded, shared ModelClient constructed) and
// gates /healthz.
func NewHandler(orch *orchestrator.Orchestrator, cfg *config.Config, logger *logrus.Logger, m *metrics.Metrics, ready func() bool) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Handler{orch: orch, cfg: cfg, logger: logger, metrics: m, ready: ready}
}

// ChatCompletions implements POST /v1/chat/completions.
func (h *Handler) ChatCompletions(c *gin.Context) {
	var body ChatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, types.NewGatewayError(types.KindBadRequest, "invalid request body", err))
		return
	}

	req, runCfg, err := h.buildRequest(&body)
	if err != nil {
		h.writeError(c, err)
		return
	}

	start := time.Now()
	ctx := c.Request.Context()

	if body.Stream {
		h.streamChatCompletions(c, req, runCfg, body.Model, start)
		return
	}

	answer, err := h.orch.Run(ctx, req, runCfg)
	if err != nil {
		if h.metrics != nil {
			h.metrics.ObserveRequest(string(types.KindOf(err)), time.Since(start))
		}
		h.writeError(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ObserveRequest("ok", time.Since(start))
		h.metrics.ObserveFusionStrategy(string(answer.FusionStrategy))
	}

	c.JSON(http.StatusOK, ChatResponse{
		ID:      "chatcmpl-" + req.ID,
		Object:  "chat.completion",
		Created: start.Unix(),
		Model:   body.Model,
		Choices: []ChatChoice{{
			Index:        0,
			Message:      ChatMessage{Role: "assistant", Content: answer.Text},
			FinishReason: "stop",
		}},
		UsageMeta: UsageMeta{
			ThreadsCompleted: answer.ThreadsCompleted,
			ThreadsFailed:    answer.ThreadsFailed,
			FlaggedSteps:     answer.FlaggedSteps,
			FusionStrategy:   string(answer.FusionStrategy),
		},
	})
}

// streamChatCompletions runs the request, then frames the fused answer as
// SSE chunks, mirroring the host project's write-then-flush streaming
// loop but driven by a pre-computed chunk sequence (internal/sse.Chunk)
// since the core only produces its final text once Fusion completes.
func (h *Handler) streamChatCompletions(c *gin.Context, req *types.Request, runCfg orchestrator.Config, model string, start time.Time) {
	events, err := h.orch.RunStream(c.Request.Context(), req, runCfg)
	if err != nil {
		if h.metrics != nil {
			h.metrics.ObserveRequest(string(types.KindOf(err)), time.Since(start))
		}
		h.writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		h.writeError(c, types.NewGatewayError(types.KindUpstreamUnavailable, "streaming not supported by this transport", nil))
		return
	}

	streamID := "chatcmpl-" + req.ID
	firstChunk := true

	for ev := range events {
		if ev.Done {
			break
		}
		delta := StreamDelta{Content: ev.Delta}
		if firstChunk {
			delta.Role = "assistant"
			firstChunk = false
		}
		chunk := StreamChunk{
			ID:      streamID,
			Object:  "chat.completion.chunk",
			Created: start.Unix(),
			Model:   model,
			Choices: []StreamChoice{{Index: 0, Delta: delta, FinishReason: nil}},
		}
		writeSSEChunk(c.Writer, chunk)
		flusher.Flush()

		select {
		case <-c.Request.Context().Done():
			return
		default:
		}
	}

	stop := "stop"
	final := StreamChunk{
		ID:      streamID,
		Object:  "chat.completion.chunk",
		Created: start.Unix(),
		Model:   model,
		Choices: []StreamChoice{{Index: 0, Delta: StreamDelta{}, FinishReason: &stop}},
	}
	writeSSEChunk(c.Writer, final)
	_ = sse.WriteDone(c.Writer)
	flusher.Flush()

	if h.metrics != nil {
		h.metrics.ObserveRequest("ok", time.Since(start))
	}
}

func writeSSEChunk(w http.ResponseWriter, chunk StreamChunk) {
	payload, err := marshalJSON(chunk)
	if err != nil {
		return
	}
	_ = sse.WriteEvent(w, payload)
}

// Healthz implements GET /healthz: liveness once config and the shared
// ModelClient have finished initializing.
func (h *Handler) Healthz(c *gin.Context) {
	if !h.ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// buildRequest validates the decoded body against the extension-field
// bounds in the external-interfaces contract and merges it with process
// defaults into a types.Request plus the orchestrator.Config to run it
// with.
func (h *Handler) buildRequest(body *ChatRequest) (*types.Request, orchestrator.Config, error) {
	threads := h.cfg.Thinking.Threads
	if body.Threads != nil {
		if *body.Threads < 1 || *body.Threads > 8 {
			return nil, orchestrator.Config{}, types.NewGatewayError(types.KindBadRequest, "x_threads must be in [1,8]", nil)
		}
		threads = *body.Threads
	}

	maxSteps := h.cfg.Thinking.MaxSteps
	if body.MaxSteps != nil {
		if *body.MaxSteps < 1 || *body.MaxSteps > 50 {
			return nil, orchestrator.Config{}, types.NewGatewayError(types.KindBadRequest, "x_max_steps must be in [1,50]", nil)
		}
		maxSteps = *body.MaxSteps
	}

	validate := h.cfg.Validation.Enabled
	if body.Validate != nil {
		validate = *body.Validate
	}

	strategy := types.FusionStrategy(h.cfg.Fusion.Strategy)
	if body.Fusion != nil {
		candidate := strings.ToLower(strings.TrimSpace(*body.Fusion))
		if candidate != string(types.FusionIntelligent) && candidate != string(types.FusionConcat) {
			return nil, orchestrator.Config{}, types.NewGatewayError(types.KindBadRequest, "x_fusion must be intelligent or concat", nil)
		}
		strategy = types.FusionStrategy(candidate)
	}

	req := &types.Request{
		ID:            uuid.NewString(),
		Messages:      toMessages(body.Messages),
		Stream:        body.Stream,
		Threads:       threads,
		ValidateSteps: validate,
		Fusion:        strategy,
		MaxSteps:      maxSteps,
		RequestedAt:   time.Now(),
	}

	runCfg := orchestrator.Config{
		Threads:           threads,
		MaxSteps:          maxSteps,
		ValidateSteps:     validate,
		Fusion:            strategy,
		TerminationMarker: h.cfg.Thinking.TerminationMarker,
		MainModel:         h.cfg.Models.Main.Name,
		RequestDeadline:   h.cfg.Server.RequestDeadline,
		ChunkSize:         sse.DefaultChunkSize,
	}

	return req, runCfg, nil
}

func (h *Handler) writeError(c *gin.Context, err error) {
	kind := types.KindOf(err)
	h.logger.WithFields(logrus.Fields{"error_type": kind}).Warn(err.Error())
	c.JSON(statusFor(kind), errorBody(err))
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("httpapi: marshal stream chunk: %w", err)
	}
	return string(b), nil
}
