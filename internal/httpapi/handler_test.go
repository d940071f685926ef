package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/concurrency"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/config"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/contextbuilder"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/fusion"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/modelclient"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/orchestrator"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/validator"
)

func testRouter(t *testing.T, client modelclient.ModelClient) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Thinking.Threads = 1
	cfg.Thinking.TerminationMarker = "<END>"
	cfg.Validation.Enabled = false

	fuser := fusion.New(client, fusion.Config{ConcatDelimiter: cfg.Fusion.ConcatDelimiter, FusionModel: "fusion", FusionPrompt: fusion.DefaultConfig().FusionPrompt})
	orch := orchestrator.New(client, concurrency.NewLimiter(8), fuser, contextbuilder.DefaultConfig(), validator.DefaultConfig(), nil)

	return NewRouter(orch, cfg, nil, nil, func() bool { return true })
}

func TestChatCompletions_HappyPath(t *testing.T) {
	client := modelclient.NewMockClient().Script("main", modelclient.ScriptEntry{Text: "The answer is 42. <END>"})
	router := testRouter(t, client)

	body, _ := json.Marshal(ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "what is the answer?"}}})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ChatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "The answer is 42. <END>", resp.Choices[0].Message.Content)
	assert.Equal(t, 1, resp.UsageMeta.ThreadsCompleted)
}

func TestChatCompletions_EmptyMessagesIsBadRequest(t *testing.T) {
	router := testRouter(t, modelclient.NewMockClient())

	body, _ := json.Marshal(map[string]any{"messages": []ChatMessage{}})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var errBody ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "BadRequest", errBody.Error.Type)
}

func TestChatCompletions_ThreadsOutOfRangeIsBadRequest(t *testing.T) {
	router := testRouter(t, modelclient.NewMockClient())

	threads := 9
	body, _ := json.Marshal(ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
		Threads:  &threads,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatCompletions_AllThreadsFailedIsBadGateway(t *testing.T) {
	client := modelclient.NewMockClient().Script("main", modelclient.ScriptEntry{Err: assertError("boom")})
	router := testRouter(t, client)

	body, _ := json.Marshal(ChatRequest{Messages: []ChatMessage{{Role: "user", Content: "hi"}}})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var errBody ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	assert.Equal(t, "AllThreadsFailed", errBody.Error.Type)
}

func TestChatCompletions_StreamingChunksConcatenateToFinalAnswer(t *testing.T) {
	answer := strings.Repeat("a", 237) + "<END>"
	client := modelclient.NewMockClient().Script("main", modelclient.ScriptEntry{Text: answer})
	router := testRouter(t, client)

	body, _ := json.Marshal(ChatRequest{
		Messages: []ChatMessage{{Role: "user", Content: "hi"}},
		Stream:   true,
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	frames := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	require.NotEmpty(t, frames)
	assert.Equal(t, "data: [DONE]", frames[len(frames)-1])

	var rebuilt strings.Builder
	for _, f := range frames[:len(frames)-1] {
		payload := strings.TrimPrefix(f, "data: ")
		var chunk StreamChunk
		require.NoError(t, json.Unmarshal([]byte(payload), &chunk))
		rebuilt.WriteString(chunk.Choices[0].Delta.Content)
	}
	assert.Equal(t, answer, rebuilt.String())
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

func assertError(msg string) error { return assertErr(msg) }
