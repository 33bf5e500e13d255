package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hudsor01/tenant-flow-sub011/internal/domain/model"
	"github.com/hudsor01/tenant-flow-sub011/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type subscriptionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB, logger *zap.Logger) repository.SubscriptionRepository {
	return &subscriptionRepository{db: db, logger: logger}
}

// GetByStripeID retrieves a subscription by provider subscription id
func (r *subscriptionRepository) GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error) {
	var sub model.Subscription

	err := r.db.WithContext(ctx).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription",
			zap.String("stripe_subscription_id", stripeSubscriptionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// Upsert writes the provider snapshot keyed by stripe_subscription_id in one
// statement. The conflict branch never touches a canceled row and, with guard
// set, only applies when the stored last_event_at is not newer.
// user_id and created_at keep their first-written values.
func (r *subscriptionRepository) Upsert(ctx context.Context, sub *model.Subscription, guard bool) (bool, error) {
	updates := clause.AssignmentColumns([]string{
		"stripe_customer_id",
		"plan_id",
		"billing_period",
		"status",
		"current_period_start",
		"current_period_end",
		"cancel_at_period_end",
		"last_event_at",
		"last_event_id",
		"provider_snapshot",
		"updated_at",
	})
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "cancelled_at"},
		Value:  gorm.Expr("COALESCE(subscriptions.cancelled_at, excluded.cancelled_at)"),
	})

	conds := []clause.Expression{
		clause.Expr{SQL: "subscriptions.status <> ?", Vars: []interface{}{string(model.SubscriptionStatusCanceled)}},
	}
	if guard {
		conds = append(conds, clause.Expr{
			SQL: "(subscriptions.last_event_at IS NULL OR subscriptions.last_event_at <= excluded.last_event_at)",
		})
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_subscription_id"}},
			DoUpdates: updates,
			Where:     clause.Where{Exprs: conds},
		}).
		Create(sub)
	if result.Error != nil {
		r.logger.Error("Failed to upsert subscription",
			zap.String("stripe_subscription_id", sub.StripeSubscriptionID),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to upsert subscription: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// UpdateStatus applies an invoice-driven transition to an existing row
func (r *subscriptionRepository) UpdateStatus(ctx context.Context, update repository.StatusUpdate, guard bool) (bool, error) {
	values := map[string]interface{}{
		"status":        update.Status,
		"last_event_at": update.EventAt.UTC(),
		"last_event_id": update.EventID,
	}
	if update.PeriodStart != nil {
		values["current_period_start"] = update.PeriodStart.UTC()
	}
	if update.PeriodEnd != nil {
		values["current_period_end"] = update.PeriodEnd.UTC()
	}

	query := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("stripe_subscription_id = ?", update.StripeSubscriptionID).
		Where("status <> ?", model.SubscriptionStatusCanceled)
	if guard {
		query = query.Where("(last_event_at IS NULL OR last_event_at <= ?)", update.EventAt.UTC())
	}

	result := query.Updates(values)
	if result.Error != nil {
		r.logger.Error("Failed to update subscription status",
			zap.String("stripe_subscription_id", update.StripeSubscriptionID),
			zap.String("status", string(update.Status)),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to update subscription status: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// MarkCanceled moves any non-terminal row to canceled. An already set
// cancelled_at is preserved so redelivery does not move it.
func (r *subscriptionRepository) MarkCanceled(ctx context.Context, stripeSubscriptionID string, at time.Time, eventAt time.Time, eventID string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.Subscription{}).
		Where("stripe_subscription_id = ?", stripeSubscriptionID).
		Where("(status <> ? OR cancelled_at IS NULL)", model.SubscriptionStatusCanceled).
		Updates(map[string]interface{}{
			"status":               model.SubscriptionStatusCanceled,
			"cancel_at_period_end": true,
			"cancelled_at":         gorm.Expr("COALESCE(cancelled_at, ?)", at.UTC()),
			"last_event_at":        eventAt.UTC(),
			"last_event_id":        eventID,
		})
	if result.Error != nil {
		r.logger.Error("Failed to cancel subscription",
			zap.String("stripe_subscription_id", stripeSubscriptionID),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to cancel subscription: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}
