package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/garyjia/billing-master/internal/config"
	"github.com/garyjia/billing-master/internal/container"
	"github.com/garyjia/billing-master/pkg/utils"
)

func main() {
	configPath := pflag.String("config", "configs/config.yaml", "config file")
	pflag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(cfg.Logger.Utils())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting billing console",
		zap.String("address", cfg.Server.Addr()),
		zap.String("output_dir", cfg.Workspace.OutputDir))

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server, err := c.Serve(ctx)
	if err != nil {
		c.Close()
		logger.Fatal("Failed to start console", zap.Error(err))
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
	case <-server.Done():
		logger.Error("Console stopped unexpectedly")
	}

	if err := c.Close(); err != nil {
		logger.Error("Shutdown incomplete", zap.Error(err))
	}
}
