package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"
)

// chatCompletionRequest is the OpenAI-compatible wire request this client
// sends to an upstream model's /chat/completions endpoint.
type chatCompletionRequest struct {
	Model       string         `json:"model"`
	Messages    []wireMessage  `json:"messages"`
	Temperature *float64       `json:"temperature,omitempty"`
	MaxTokens   *int           `json:"max_tokens,omitempty"`
	Stream      bool           `json:"stream,omitempty"`
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
}

// Endpoint holds the upstream base URL and API key for one resolvable
// model name.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

// HTTPClient is the ModelClient implementation that actually talks to an
// upstream OpenAI-compatible endpoint. Grounded on the host project's
// generic Commons/http.Client: one shared *http.Client, constructed once
// at process startup and injected, never rebuilt per call or per request.
type HTTPClient struct {
	http      *http.Client
	endpoints map[string]Endpoint
}

// NewHTTPClient builds an HTTPClient over httpClient (the process-wide
// connection pool) with the given per-model-name endpoint table.
func NewHTTPClient(httpClient *http.Client, endpoints map[string]Endpoint) *HTTPClient {
	return &HTTPClient{http: httpClient, endpoints: endpoints}
}

// Invoke implements ModelClient by POSTing an OpenAI-compatible
// chat-completions request and returning the first choice's content.
func (c *HTTPClient) Invoke(ctx context.Context, model string, messages []types.Message, opts types.InvokeOptions) (string, error) {
	endpoint, ok := c.endpoints[model]
	if !ok {
		return "", fmt.Errorf("modelclient: no endpoint configured for model %q", model)
	}

	wire := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, wireMessage{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    wire,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("modelclient: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("modelclient: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if endpoint.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+endpoint.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("modelclient: request to %q: %w", model, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("modelclient: read response from %q: %w", model, err)
	}

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("modelclient: %q returned status %d: %s", model, resp.StatusCode, string(body))
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("modelclient: decode response from %q: %w", model, err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("modelclient: %q returned no choices", model)
	}

	return decoded.Choices[0].Message.Content, nil
}
