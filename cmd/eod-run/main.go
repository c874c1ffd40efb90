package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ir-stock-service/src/app"
	"ir-stock-service/src/config"
	"ir-stock-service/src/logger"
	"ir-stock-service/src/models"
)

// Runs the EOD email job once and prints the result as JSON.
func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "../../config/default.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "render and resolve subscribers without sending")
	testEmail := flag.String("test-email", "", "send a test campaign to this address only")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf, conf.Name+"-eod-run")

	// 4. Setup Components
	service, err := app.New(conf, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize service: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Run once
	result, err := service.Job.Run(ctx, models.MRunOptions{
		DryRun:    *dryRun || conf.Cron.DryRun,
		TestEmail: *testEmail,
	})
	if err != nil {
		appLogger.Error("EOD job failed: %v", err)
		stop()
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		appLogger.Error("Failed to encode result: %v", err)
		stop()
		os.Exit(1)
	}
	fmt.Println(string(out))
}
