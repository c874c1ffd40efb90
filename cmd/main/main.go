package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ir-stock-service/src/app"
	"ir-stock-service/src/config"
	"ir-stock-service/src/logger"
)

const shutdownTimeout = 30 * time.Second

// -----------------------------------------------------------------------------

func main() {

	// Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	flag.Parse()

	// Load config from YAML file
	config, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	appLogger := logger.NewLogger(config, config.Name)

	// Setup components
	service, err := app.New(config, appLogger)
	if err != nil {
		appLogger.Critical("Failed to initialize service: %v", err)
	}

	// Start scheduler
	if err := service.Cron.Start(); err != nil {
		appLogger.Critical("Failed to start scheduler: %v", err)
	}

	// Start server
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- service.Server.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		appLogger.Info("Received %s, shutting down...", sig)
	case err := <-serverErr:
		if err != nil {
			appLogger.Error("Server failed: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := service.Shutdown(ctx); err != nil {
		appLogger.Error("Shutdown error: %v", err)
	}
	appLogger.Info("Shutdown complete.")
}
