package app

import (
	"log/slog"
	"os"
)

// serviceName tags every log line so aggregated streams can be filtered
// back to this service.
const serviceName = "praxis"

// NewLogger returns a configured slog.Logger based on configuration.
// Production deployments set LOG_FORMAT=json; the text handler is for
// local development.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler).With(slog.String("service", serviceName))
	if cfg != nil {
		logger = logger.With(slog.String("env", cfg.AppEnv))
	}
	return logger
}
