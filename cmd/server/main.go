package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "github.com/hudsor01/tenant-flow-sub011/internal/adapter/handler/http"
	"github.com/hudsor01/tenant-flow-sub011/internal/app"
	"github.com/hudsor01/tenant-flow-sub011/internal/config"
	grpcServer "github.com/hudsor01/tenant-flow-sub011/internal/infrastructure/grpc"
	httpServer "github.com/hudsor01/tenant-flow-sub011/internal/infrastructure/http"
	"github.com/hudsor01/tenant-flow-sub011/pkg/logger"
	"go.uber.org/zap"
)

const healthInterval = 15 * time.Second

func main() {
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
	zapLogger = zapLogger.With(
		zap.String("service", cfg.Service.Name),
		zap.String("environment", cfg.Service.Environment),
		zap.String("version", cfg.Service.Version),
	)

	// Create context for graceful shutdown
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

	// Initialize servers
	httpSrv := httpServer.NewServer(cfg, zapLogger, httpServer.Handlers{
		Webhook: handlers.NewWebhookHandler(application.Processor, cfg.Stripe.SignatureHeader, cfg.Webhook.MaxBodyBytes, zapLogger),
		Admin: handlers.NewAdminHandler(
			application.Processor,
			application.Machine,
			application.Ledger,
			application.Repos.FailedWebhookEvent,
			zapLogger,
		),
		Health: application.Ping,
	}, application.Registry)
	grpcSrv := grpcServer.NewServer(cfg, zapLogger, application.Ping)

	// Start servers
	errCh := make(chan error, 2)
	go func() { errCh <- httpSrv.Start() }()
	go func() { errCh <- grpcSrv.Start() }()
	go grpcSrv.Watch(ctx, healthInterval)

	select {
	case <-ctx.Done():
		zapLogger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			zapLogger.Error("Server stopped unexpectedly", zap.Error(err))
		}
	}

	stop()

	// Report not serving first so probes drain traffic away
	grpcSrv.SetServing(false)

	shutdownTimeout := cfg.Server.HTTP.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}
	if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Failed to shutdown gRPC server", zap.Error(err))
	}

	zapLogger.Info("Servers shut down successfully")
}
