package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	pkgconfig "github.com/gamehub/shop/pkg/config"
	"github.com/gamehub/shop/pkg/logger"
	"github.com/gamehub/shop/services/shop/internal/app"
	"github.com/gamehub/shop/services/shop/internal/config"
)

func main() {
	// A local .env file only fills variables the environment leaves unset.
	if err := pkgconfig.LoadDotenv(); err != nil {
		slog.Error("failed to read .env file", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Load configuration from environment variables.
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize structured logger.
	log := logger.New("shop", cfg.LogLevel)
	log.Info("starting shop",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.String("gateway", cfg.GatewayProvider),
	)

	// Create the application with all dependencies wired.
	application, err := app.NewApp(cfg, log)
	if err != nil {
		log.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Create a context that is canceled on SIGINT or SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Run the application. This blocks until shutdown.
	if err := application.Run(ctx); err != nil {
		log.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("shop stopped")
}
