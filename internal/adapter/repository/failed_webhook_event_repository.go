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

type failedWebhookEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewFailedWebhookEventRepository creates a new failed event repository
func NewFailedWebhookEventRepository(db *gorm.DB, logger *zap.Logger) repository.FailedWebhookEventRepository {
	return &failedWebhookEventRepository{db: db, logger: logger}
}

// Record upserts by event id. A new failure reopens a resolved row.
func (r *failedWebhookEventRepository) Record(ctx context.Context, failure *model.FailedWebhookEvent) error {
	if failure.FirstFailedAt.IsZero() {
		failure.FirstFailedAt = failure.LastFailedAt
	}

	updates := clause.AssignmentColumns([]string{
		"event_type",
		"provider_request_id",
		"error_class",
		"error_code",
		"error_message",
		"attempt_count",
		"last_failed_at",
	})
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "resolved_at"},
		Value:  gorm.Expr("NULL"),
	})

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_event_id"}},
			DoUpdates: updates,
		}).
		Create(failure).Error
	if err != nil {
		r.logger.Error("Failed to record failed webhook event",
			zap.String("event_id", failure.StripeEventID),
			zap.Error(err))
		return fmt.Errorf("failed to record failed webhook event: %w", err)
	}

	return nil
}

// Resolve closes an open failure record. It reports whether a row changed.
func (r *failedWebhookEventRepository) Resolve(ctx context.Context, eventID string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&model.FailedWebhookEvent{}).
		Where("stripe_event_id = ? AND resolved_at IS NULL", eventID).
		Update("resolved_at", at.UTC())
	if result.Error != nil {
		return false, fmt.Errorf("failed to resolve failed webhook event: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *failedWebhookEventRepository) Get(ctx context.Context, eventID string) (*model.FailedWebhookEvent, error) {
	var failure model.FailedWebhookEvent
	err := r.db.WithContext(ctx).Where("stripe_event_id = ?", eventID).First(&failure).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get failed webhook event: %w", err)
	}
	return &failure, nil
}

// ListUnresolved returns open failures, most recent first
func (r *failedWebhookEventRepository) ListUnresolved(ctx context.Context, limit int) ([]*model.FailedWebhookEvent, error) {
	var failures []*model.FailedWebhookEvent

	query := r.db.WithContext(ctx).
		Where("resolved_at IS NULL").
		Order("last_failed_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&failures).Error; err != nil {
		return nil, fmt.Errorf("failed to list failed webhook events: %w", err)
	}
	return failures, nil
}
