package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sat-telemetry/internal/auth"
	"sat-telemetry/internal/config"
	"sat-telemetry/internal/handlers"
	"sat-telemetry/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if cfg.APIKey == config.DefaultAPIKey {
		logger.Warn("API_KEY is the development default; set a real secret")
	}

	db, err := repository.ConnectWithRetry(cfg.DatabaseURL, cfg.AutoMigrate, cfg.DBConnectAttempts, cfg.DBConnectDelay)
	if err != nil {
		logger.Error("db connect error", "err", err)
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("db handle error", "err", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	repo := repository.NewTelemetryRepository(db)
	router := handlers.NewRouter(
		handlers.NewTelemetryHandler(auth.NewAPIKeyAuthenticator(cfg.APIKey), repo, logger, cfg.MaxBodyBytes),
		handlers.NewHealthHandler(repo, logger),
		logger,
	)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	go func() {
		logger.Info("listening", "addr", srv.Addr, "auto_migrate", cfg.AutoMigrate)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}
