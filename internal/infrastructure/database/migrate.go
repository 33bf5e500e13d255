package database

import (
	"fmt"
	"strings"

	"github.com/hudsor01/tenant-flow-sub011/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table owned by this service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&model.StripeWebhookEvent{},
		&model.FailedWebhookEvent{},
		&model.CustomerMapping{},
		&model.Subscription{},
		&model.Invoice{},
		&model.Payment{},
	}
}

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if db.Dialector.Name() == "postgres" {
		if err := createCustomTypes(db, logger); err != nil {
			logger.Error("Failed to create custom types", zap.Error(err))
			return err
		}
	}

	if err := db.AutoMigrate(Models()...); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return fmt.Errorf("auto-migrate: %w", err)
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return fmt.Errorf("custom indexes: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createCustomIndexes creates partial indexes GORM doesn't handle
func createCustomIndexes(db *gorm.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_stripe_webhook_events_unprocessed ON stripe_webhook_events (received_at) WHERE processed = false`,
		`CREATE INDEX IF NOT EXISTS idx_failed_webhook_events_open ON failed_webhook_events (last_failed_at) WHERE resolved_at IS NULL`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// createCustomTypes creates the subscription_status enum and adds any missing labels
func createCustomTypes(db *gorm.DB, logger *zap.Logger) error {
	labels := make([]string, 0, len(model.SubscriptionStatuses))
	for _, s := range model.SubscriptionStatuses {
		labels = append(labels, "'"+string(s)+"'")
	}

	var exists bool
	if err := db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'subscription_status')`).Scan(&exists).Error; err != nil {
		return err
	}
	if !exists {
		return db.Exec(`CREATE TYPE subscription_status AS ENUM (` + strings.Join(labels, ", ") + `)`).Error
	}

	for _, s := range model.SubscriptionStatuses {
		// ADD VALUE cannot run inside a transaction block; AutoMigrate has not started one yet.
		if err := db.Exec(`ALTER TYPE subscription_status ADD VALUE IF NOT EXISTS '` + string(s) + `'`).Error; err != nil {
			logger.Warn("Failed to add subscription_status label", zap.String("label", string(s)), zap.Error(err))
		}
	}
	return nil
}
