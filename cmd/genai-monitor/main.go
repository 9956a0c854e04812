package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/genai-monitor/internal/config"
	"github.com/tjfontaine/genai-monitor/internal/observability"
	"github.com/tjfontaine/genai-monitor/internal/server"
	"github.com/tjfontaine/genai-monitor/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level := slog.LevelInfo
	if cfg.Monitor.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.InitTracer("genai-monitor", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	obs, err := observability.New(cfg.Monitor, observability.WithLogger(logger))
	if err != nil {
		log.Fatalf("Invalid monitor configuration: %v", err)
	}

	srv := server.New(cfg.Server.Port, logger, obs)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, stopping monitor...")
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			exitCode = 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
		exitCode = 1
	}
	if err := obs.Close(shutdownCtx); err != nil {
		logger.Error("observability shutdown error", slog.String("error", err.Error()))
		exitCode = 1
	}

	logger.Info("Monitor shutdown complete")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
