package handlers

import (
	"log/slog"
	"net/http"
)

// NewRouter mounts the telemetry and health routes. Any other path answers 404.
func NewRouter(telemetry *TelemetryHandler, health *HealthHandler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/telemetry", telemetry.HandleTelemetry)
	mux.HandleFunc("/health", health.HandleHealth)
	mux.HandleFunc("/", NotFound)

	return withMiddleware(logger, mux)
}

// withMiddleware wraps h so that requests recovered from a panic are still logged.
func withMiddleware(logger *slog.Logger, h http.Handler) http.Handler {
	return Logging(logger, Recover(logger, h))
}
