package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/scaffyhq/scaffy/internal/api"
	"github.com/scaffyhq/scaffy/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx := context.Background()
	app, err := api.NewApp(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}
	defer app.Close()

	handler, err := api.NewRouter(app)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	// The consumer attaches generated tests to stored breakdowns.
	if app.Consumer != nil {
		consumerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := app.Consumer.Start(consumerCtx); err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
		logger.Info("test generation consumer started", "workers", cfg.QueueWorkers)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		logger.Info("received signal, shutting down", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	logger.Info("scaffyd listening",
		"port", cfg.Port,
		"storage", storageKind(cfg),
		"llm_provider", cfg.LLMProvider,
		"executor", cfg.Executor,
		"queue", cfg.UsesQueue(),
	)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	logger.Info("scaffyd stopped")
	return nil
}

func storageKind(cfg *config.Config) string {
	if cfg.UsesPostgres() {
		return "postgres"
	}
	return "sqlite"
}
