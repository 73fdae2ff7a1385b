package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/ballotline/registry/config"
	"github.com/ballotline/registry/pkg/startup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger()
	app := startup.NewApp(cfg, logger)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start service")
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := app.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}

// newLogger writes one JSON log line per message to stdout.
func newLogger() ectologger.Logger {
	encoder := json.NewEncoder(os.Stdout)
	return ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		_ = encoder.Encode(msg)
	})
}
