package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eslsoft/masteryctx/internal/app"
)

func main() {
	container, cleanup, err := app.Initialize()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer cleanup()

	cfg := container.Config
	container.Logger.Infof("Server will run on gRPC port %d and HTTP port %d", cfg.Server.GRPCPort, cfg.Server.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.Server.Run(ctx, 30*time.Second); err != nil {
		container.Logger.WithError(err).Error("server stopped")
		stop()
		cleanup()
		os.Exit(1)
	}
}
