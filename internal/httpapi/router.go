package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/config"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/metrics"
	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/reasoning/orchestrator"

	"github.com/sirupsen/logrus"
)

// NewRouter builds the gateway's Gin engine: recovery and request-logging
// middleware, the OpenAI-compatible chat-completions endpoint, and the
// liveness and metrics endpoints. Grounded on the host project's
// cmd/api/main.go route-group layout.
func NewRouter(orch *orchestrator.Orchestrator, cfg *config.Config, logger *logrus.Logger, m *metrics.Metrics, ready func() bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger))

	h := NewHandler(orch, cfg, logger, m, ready)

	v1 := r.Group("/v1")
	{
		v1.POST("/chat/completions", h.ChatCompletions)
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", metricsHandler(m))

	return r
}

// metricsHandler serves the exposition format gathered from m's own
// registry. A nil m (a router built without metrics, as in some tests)
// falls back to the global DefaultGatherer rather than panicking.
func metricsHandler(m *metrics.Metrics) gin.HandlerFunc {
	if m == nil || m.Registry == nil {
		return gin.WrapH(promhttp.Handler())
	}
	return gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
}

// requestLogger logs one line per request at Info level, mirroring the
// teacher's logrus.WithFields usage throughout internal/services.
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if logger == nil {
			return
		}
		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}).Info("request handled")
	}
}
