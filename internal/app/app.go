// Package app assembles the webhook pipeline from configuration. Both the
// server and the replay tool build the same graph so a replayed event runs
// exactly the code a live delivery would.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hudsor01/tenant-flow-sub011/internal/config"
	"github.com/hudsor01/tenant-flow-sub011/internal/infrastructure/database"
	"github.com/hudsor01/tenant-flow-sub011/internal/infrastructure/metrics"
	stripeprovider "github.com/hudsor01/tenant-flow-sub011/internal/infrastructure/provider/stripe"
	"github.com/hudsor01/tenant-flow-sub011/internal/usecase"
	"github.com/hudsor01/tenant-flow-sub011/pkg/messaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds the long-lived dependencies of one process
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	DB        *gorm.DB
	Repos     *database.Repositories
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Publisher messaging.Publisher

	Ledger     *usecase.IdempotencyLedger
	Machine    *usecase.SubscriptionStateMachine
	Dispatcher *usecase.EventDispatcher
	Reporter   *usecase.ErrorReporter
	Processor  *usecase.WebhookProcessor
}

// New connects to storage and the message bus and wires the use cases
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	return Assemble(ctx, cfg, logger, db)
}

// Assemble wires the use cases on an already open database
func Assemble(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *gorm.DB) (*App, error) {
	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db, logger); err != nil {
			return nil, fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	publisher, err := newPublisher(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	repos := database.NewRepositories(db, logger)
	client := stripeprovider.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.RequestTimeout, logger)

	machine := usecase.NewSubscriptionStateMachine(usecase.StateMachineDeps{
		Subscriptions: repos.Subscription,
		Invoices:      repos.Invoice,
		Payments:      repos.Payment,
		Customers:     repos.CustomerMapping,
		Provider:      client,
		Retry:         usecase.NewRetryController(cfg.Webhook.Retry, m, logger),
		Publisher:     publisher,
		EventChannel:  cfg.Redis.EventChannel,
		OrderingGuard: cfg.Webhook.OrderingGuard,
		Metrics:       m,
		Logger:        logger,
	})

	dispatcher := usecase.NewEventDispatcher(logger)
	if err := machine.RegisterHandlers(dispatcher); err != nil {
		_ = publisher.Close()
		return nil, fmt.Errorf("failed to register event handlers: %w", err)
	}

	ledger := usecase.NewIdempotencyLedger(repos.WebhookEvent, cfg.Webhook.ClaimLease, logger)
	reporter := usecase.NewErrorReporter(repos.FailedWebhookEvent, publisher, cfg.Redis.AlertChannel, m, logger)

	processor := usecase.NewWebhookProcessor(usecase.ProcessorDeps{
		Verifier:          stripeprovider.NewVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.SignatureTolerance, logger),
		Ledger:            ledger,
		Dispatcher:        dispatcher,
		Reporter:          reporter,
		Metrics:           m,
		ProcessingTimeout: cfg.Webhook.ProcessingTimeout,
		Logger:            logger,
	})

	logger.Info("Webhook pipeline ready",
		zap.Strings("event_types", dispatcher.EventTypes()),
		zap.Bool("ordering_guard", cfg.Webhook.OrderingGuard),
		zap.Bool("redis", cfg.Redis.Enabled),
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		DB:         db,
		Repos:      repos,
		Registry:   registry,
		Metrics:    m,
		Publisher:  publisher,
		Ledger:     ledger,
		Machine:    machine,
		Dispatcher: dispatcher,
		Reporter:   reporter,
		Processor:  processor,
	}, nil
}

func newPublisher(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (messaging.Publisher, error) {
	if !cfg.Enabled {
		logger.Info("Redis disabled, change notifications are dropped")
		return messaging.NewNoopPublisher(), nil
	}

	publisher, err := messaging.NewRedisPublisher(ctx, messaging.RedisOptions{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return publisher, nil
}

// Ping reports whether the database answers
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the message bus and the database handle
func (a *App) Close() error {
	return errors.Join(
		a.Publisher.Close(),
		database.Close(a.DB, a.Logger),
	)
}
