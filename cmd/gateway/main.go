// Command gateway starts the reasoning-ensemble HTTP server: it loads
// configuration, builds the shared ModelClient (HTTP transport wrapped in
// a per-model circuit breaker and a retrying decorator), wires the
// orchestrator and its collaborators, and serves the OpenAI-compatible
// ingress until a shutdown signal arrives. Grounded on the host
// project's cmd/helixagent/main.go server-lifecycle shape.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/concurrency"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/config"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/httpapi"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/logging"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/metrics"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/contextbuilder"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/fusion"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/modelclient"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/orchestrator"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/types"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/validator"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewLoader(os.Getenv("GATEWAY_CONFIG")).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Logging)
	logger.WithField("address", cfg.Server.Address).Info("starting reasoning ensemble gateway")

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	client := buildModelClient(cfg, m)
	limiter := concurrency.NewLimiter(cfg.Concurrency.MaxInFlight)

	fuser := fusion.New(client, fusion.Config{
		FusionModel:     cfg.Models.Fusion.Name,
		ConcatDelimiter: cfg.Fusion.ConcatDelimiter,
		FusionPrompt:    fusion.DefaultConfig().FusionPrompt,
	})

	cbConfig := contextbuilder.Config{
		SummaryModel:  cfg.Models.Summary.Name,
		SummaryPrompt: contextbuilder.DefaultConfig().SummaryPrompt,
	}
	valConfig := validator.Config{
		CounterexampleModel: cfg.Models.Counterexample.Name,
		VoteModel:           cfg.Models.Vote.Name,
		Counterexamples:     cfg.Validation.Counterexamples,
		Votes:               cfg.Validation.Votes,
		MainKeywords:        cfg.Validation.VoteKeywords.Main,
		CounterKeywords:     cfg.Validation.VoteKeywords.Counter,
	}

	orch := orchestrator.New(client, limiter, fuser, cbConfig, valConfig, logger).WithMetrics(m)

	router := httpapi.NewRouter(orch, cfg, logger, m, func() bool { return true })

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // SSE streaming responses can run long
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("address", cfg.Server.Address).Info("listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// buildModelClient constructs the one shared ModelClient for the process
// lifetime: one HTTP transport with an endpoint per configured model role,
// a circuit breaker per model name that reports its trips to m, the whole
// thing wrapped once more in the retry decorator that every call site
// shares.
func buildModelClient(cfg *config.Config, m *metrics.Metrics) modelclient.ModelClient {
	transport := &http.Client{Timeout: 2 * time.Minute}

	roles := []config.ModelRoleConfig{
		cfg.Models.Main, cfg.Models.Fusion, cfg.Models.Summary,
		cfg.Models.Counterexample, cfg.Models.Vote,
	}
	endpoints := make(map[string]modelclient.Endpoint, len(roles))
	for _, role := range roles {
		endpoints[role.Name] = modelclient.Endpoint{
			BaseURL: role.BaseURL,
			APIKey:  os.Getenv("OPENAI_API_KEY"),
		}
	}

	base := modelclient.NewHTTPClient(transport, endpoints)

	breakerConfig := modelclient.CircuitBreakerConfig{
		FailureThreshold:    cfg.CircuitBreaker.FailureThreshold,
		SuccessThreshold:    2,
		Cooldown:            cfg.CircuitBreaker.Cooldown,
		HalfOpenMaxRequests: 3,
	}
	breakers := make(map[string]*modelclient.CircuitBreaker, len(endpoints))
	for name := range endpoints {
		breakers[name] = modelclient.NewCircuitBreaker(base, breakerConfig).WithMetrics(m)
	}
	perModel := modelclient.Func(func(ctx context.Context, model string, messages []types.Message, opts types.InvokeOptions) (string, error) {
		if b, ok := breakers[model]; ok {
			return b.Invoke(ctx, model, messages, opts)
		}
		return base.Invoke(ctx, model, messages, opts)
	})

	return modelclient.NewRetryingClient(perModel, modelclient.RetryConfig{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		BaseDelay:      cfg.Retry.BaseDelay,
		MaxDelay:       cfg.Retry.MaxDelay,
		PerCallTimeout: 60 * time.Second,
	})
}
