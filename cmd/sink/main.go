package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atakanatali/pipecheck/internal/config"
	"github.com/atakanatali/pipecheck/internal/sink"
)

var version = "dev" // set via ldflags at build time

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	slog.Info("starting pipecheck sink", "version", version)

	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("could not load .env", "error", err)
	}

	cfg, err := config.Load(os.Getenv("PIPECHECK_CONFIG"))
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.GitHub.WebhookSecret == "" {
		slog.Warn("GITHUB_WEBHOOK_SECRET not set, webhook signatures will not be verified")
	}

	metrics := sink.NewMetrics()
	router := sink.NewRouter(cfg.GitHub.WebhookSecret, metrics)

	addr := fmt.Sprintf("%s:%d", cfg.Sink.Host, cfg.Sink.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("pipecheck sink listening",
		"addr", addr,
		"events", "/events",
		"metrics", "/metrics",
		"health", "/health",
	)

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
