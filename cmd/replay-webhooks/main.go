package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hudsor01/tenant-flow-sub011/internal/app"
	"github.com/hudsor01/tenant-flow-sub011/internal/config"
	"github.com/hudsor01/tenant-flow-sub011/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	olderThan := flag.Duration("older-than", 10*time.Minute, "only replay events received at least this long ago")
	limit := flag.Int("limit", 100, "maximum number of events to replay")
	dryRun := flag.Bool("dry-run", false, "list the events without replaying them")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer func() {
		if err := application.Close(); err != nil {
			zapLogger.Error("Failed to release resources", zap.Error(err))
		}
	}()

	cutoff := time.Now().UTC().Add(-*olderThan)
	summary, err := replayPending(ctx, application.Ledger, application.Processor, cutoff, *limit, *dryRun, zapLogger)
	if err != nil {
		zapLogger.Error("Replay aborted", zap.Error(err))
	}

	zapLogger.Info("Replay finished",
		zap.Time("cutoff", cutoff),
		zap.Bool("dry_run", *dryRun),
		zap.Int("found", summary.Found),
		zap.Int("processed", summary.Processed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))

	if err != nil || summary.Failed > 0 {
		// deferred cleanup would be skipped by os.Exit
		_ = application.Close()
		_ = zapLogger.Sync()
		os.Exit(1)
	}
}
