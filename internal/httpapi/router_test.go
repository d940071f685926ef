package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/concurrency"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/config"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/metrics"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/contextbuilder"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/fusion"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/modelclient"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/orchestrator"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/validator"
)

func TestHealthz_ReportsNotReadyUntilSignaled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ready := false
	router := NewRouter(nil, config.Default(), nil, nil, func() bool { return ready })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	ready = true
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// testRouterWithMetrics builds a router wired to a real, non-nil
// *metrics.Metrics, to exercise the /metrics route's registry wiring end
// to end (testRouter itself passes nil, since most tests don't care).
func testRouterWithMetrics(t *testing.T, client modelclient.ModelClient) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Thinking.Threads = 1
	cfg.Thinking.TerminationMarker = "<END>"
	cfg.Validation.Enabled = false

	m := metrics.New(prometheus.NewRegistry())
	fuser := fusion.New(client, fusion.Config{ConcatDelimiter: cfg.Fusion.ConcatDelimiter, FusionModel: "fusion", FusionPrompt: fusion.DefaultConfig().FusionPrompt})
	orch := orchestrator.New(client, concurrency.NewLimiter(8), fuser, contextbuilder.DefaultConfig(), validator.DefaultConfig(), nil).WithMetrics(m)

	return NewRouter(orch, cfg, nil, m, func() bool { return true })
}

func TestMetrics_ServesPrometheusExposition(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	router := NewRouter(nil, config.Default(), nil, m, func() bool { return true })

	// A CounterVec/HistogramVec family is absent from the exposition
	// until at least one label combination has been touched; record one
	// directly so this test proves the registry wiring in isolation from
	// whether any request has actually run through the orchestrator.
	m.ObserveRequest("ok", 0)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "reasoning_gateway_request_duration_seconds")
}

func TestMetrics_ExposesRequestSeriesAfterAChatCompletion(t *testing.T) {
	client := modelclient.NewMockClient().Script("main", modelclient.ScriptEntry{Text: "done. <END>"})
	router := testRouterWithMetrics(t, client)

	body, err := json.Marshal(map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "hi"}},
	})
	require.NoError(t, err)
	chatReq := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewReader(body))
	chatReq.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(httptest.NewRecorder(), chatReq)

	metricsReq := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, metricsReq)

	assert.Contains(t, rec.Body.String(), "reasoning_gateway_request_duration_seconds")
	assert.Contains(t, rec.Body.String(), "reasoning_gateway_fusion_strategy_total")
}
