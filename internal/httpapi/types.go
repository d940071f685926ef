// Package httpapi is the OpenAI-compatible chat-completions ingress:
// a Gin router that decodes requests into internal/reasoning/types.Request,
// drives an orchestrator.Orchestrator, and encodes the result back into
// OpenAI response or SSE-stream shape. Grounded on the host project's
// internal/handlers/openai_compatible.go.
package httpapi

import "github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"

// ChatMessage is one chat turn in OpenAI wire format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the decoded body of POST /v1/chat/completions. Only the
// fields the gateway's core understands are modeled; anything else an
// OpenAI client sends is accepted and ignored.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages" binding:"required,min=1"`
	Stream   bool          `json:"stream,omitempty"`

	Threads    *int    `json:"x_threads,omitempty"`
	Validate   *bool   `json:"x_validate,omitempty"`
	Fusion     *string `json:"x_fusion,omitempty"`
	MaxSteps   *int    `json:"x_max_steps,omitempty"`
}

// UsageMeta is the gateway's custom addition to the chat-completion
// response, reporting how the ensemble behaved.
type UsageMeta struct {
	ThreadsCompleted int    `json:"threads_completed"`
	ThreadsFailed    int    `json:"threads_failed"`
	FlaggedSteps     int    `json:"flagged_steps"`
	FusionStrategy   string `json:"fusion_strategy"`
}

// ChatChoice is one entry of ChatResponse.Choices. The gateway always
// returns exactly one.
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatResponse is the OpenAI-shaped non-streaming response body.
type ChatResponse struct {
	ID        string       `json:"id"`
	Object    string       `json:"object"`
	Created   int64        `json:"created"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	UsageMeta UsageMeta    `json:"usage_meta"`
}

// StreamDelta is the "delta" object of one streaming chunk.
type StreamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// StreamChoice is one entry of a streaming chunk's Choices.
type StreamChoice struct {
	Index        int         `json:"index"`
	Delta        StreamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

// StreamChunk is one OpenAI streaming-delta-shaped SSE frame payload.
type StreamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []StreamChoice `json:"choices"`
}

// ErrorBody is the OpenAI-compatible error envelope the gateway emits for
// every failure kind in internal/reasoning/types.ErrorKind.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the stable, client-visible error type string.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func toMessages(msgs []ChatMessage) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, types.Message{Role: types.Role(m.Role), Content: m.Content})
	}
	return out
}
