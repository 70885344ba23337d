package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"identity-gate/internal/app"
	"identity-gate/internal/config"
	"identity-gate/internal/logger"
)

func main() {
	logger.Init()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", map[string]any{
			"error": err,
		})
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to initialize app", map[string]any{
			"error": err,
		})
	}

	logger.Info("identity-gate started", map[string]any{
		"port": cfg.AppPort,
	})

	if err := application.Run(ctx); err != nil {
		logger.Fatal("server stopped with error", map[string]any{
			"error": err,
		})
	}

	logger.Info("identity-gate stopped cleanly", nil)
}
