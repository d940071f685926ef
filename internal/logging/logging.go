// Package logging builds the process-wide logrus.Logger and derives
// request-scoped child loggers carrying a request ID field.
package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/vasic-digital/reasoning-ensemble-gateway/internal/config"
)

// New builds a *logrus.Logger from a logging configuration. Format "json"
// selects logrus.JSONFormatter; anything else (including the empty
// string) falls back to a full-timestamp TextFormatter.
func New(cfg config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

// WithRequest returns a child entry carrying the request's ID, the form
// every handler and orchestrator log line should be built from.
func WithRequest(logger *logrus.Logger, requestID string) *logrus.Entry {
	return logger.WithField("request_id", requestID)
}
