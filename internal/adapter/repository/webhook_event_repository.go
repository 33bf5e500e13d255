package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/hudsor01/tenant-flow-sub011/internal/domain/errors"
	"github.com/hudsor01/tenant-flow-sub011/internal/domain/model"
	"github.com/hudsor01/tenant-flow-sub011/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type webhookEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewWebhookEventRepository creates the gorm-backed idempotency ledger
func NewWebhookEventRepository(db *gorm.DB, logger *zap.Logger) repository.WebhookEventRepository {
	return &webhookEventRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Admit records the first sighting of an event. The unique index on
// stripe_event_id decides between concurrent deliveries; a losing delivery
// may still take over an unprocessed row whose claim has expired.
func (r *webhookEventRepository) Admit(ctx context.Context, event *model.StripeWebhookEvent, lease time.Duration) (*repository.AdmitResult, error) {
	now := r.now()
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = now
	}
	event.Processed = false
	event.ClaimedAt = &now

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "stripe_event_id"}},
			DoNothing: true,
		}).
		Create(event)
	if result.Error != nil {
		r.logger.Error("Failed to insert webhook event",
			zap.String("event_id", event.StripeEventID),
			zap.String("event_type", event.EventType),
			zap.Error(result.Error))
		return nil, fmt.Errorf("failed to insert webhook event: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return &repository.AdmitResult{Status: repository.AdmitNew, Event: event}, nil
	}

	claimed, err := r.Claim(ctx, event.StripeEventID, lease)
	if err != nil {
		return nil, err
	}

	stored, err := r.Get(ctx, event.StripeEventID)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: %s vanished after conflict", domainErrors.ErrEventNotFound, event.StripeEventID)
	}

	switch {
	case claimed:
		return &repository.AdmitResult{Status: repository.AdmitRetry, Event: stored}, nil
	case stored.Processed:
		return &repository.AdmitResult{Status: repository.AdmitDuplicate, Event: stored}, nil
	default:
		return &repository.AdmitResult{Status: repository.AdmitInFlight, Event: stored}, nil
	}
}

// Claim takes ownership of an unprocessed event whose previous claim is absent
// or older than lease. It is a single conditional UPDATE.
func (r *webhookEventRepository) Claim(ctx context.Context, eventID string, lease time.Duration) (bool, error) {
	now := r.now()

	result := r.db.WithContext(ctx).
		Model(&model.StripeWebhookEvent{}).
		Where("stripe_event_id = ? AND processed = ?", eventID, false).
		Where("(claimed_at IS NULL OR claimed_at < ?)", now.Add(-lease)).
		Updates(map[string]interface{}{
			"claimed_at":  now,
			"retry_count": gorm.Expr("retry_count + 1"),
		})
	if result.Error != nil {
		r.logger.Error("Failed to claim webhook event",
			zap.String("event_id", eventID),
			zap.Error(result.Error))
		return false, fmt.Errorf("failed to claim webhook event: %w", result.Error)
	}

	return result.RowsAffected == 1, nil
}

// MarkProcessed marks a webhook event as processed and releases its claim
func (r *webhookEventRepository) MarkProcessed(ctx context.Context, eventID string, took time.Duration) error {
	now := r.now()

	result := r.db.WithContext(ctx).
		Model(&model.StripeWebhookEvent{}).
		Where("stripe_event_id = ?", eventID).
		Updates(map[string]interface{}{
			"processed":          true,
			"processed_at":       now,
			"processing_time_ms": took.Milliseconds(),
			"error_message":      nil,
			"claimed_at":         nil,
		})
	if result.Error != nil {
		r.logger.Error("Failed to mark webhook as processed",
			zap.String("event_id", eventID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark webhook as processed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", domainErrors.ErrEventNotFound, eventID)
	}

	return nil
}

// MarkFailed stores the failure and releases the claim so the next delivery
// can take the event over immediately. A processed row is never reverted.
func (r *webhookEventRepository) MarkFailed(ctx context.Context, eventID string, took time.Duration, errMsg string) error {
	result := r.db.WithContext(ctx).
		Model(&model.StripeWebhookEvent{}).
		Where("stripe_event_id = ? AND processed = ?", eventID, false).
		Updates(map[string]interface{}{
			"processing_time_ms": took.Milliseconds(),
			"error_message":      errMsg,
			"claimed_at":         nil,
		})
	if result.Error != nil {
		r.logger.Error("Failed to mark webhook as failed",
			zap.String("event_id", eventID),
			zap.Error(result.Error))
		return fmt.Errorf("failed to mark webhook as failed: %w", result.Error)
	}

	return nil
}

// Get retrieves a webhook event by provider id. A missing row is (nil, nil).
func (r *webhookEventRepository) Get(ctx context.Context, eventID string) (*model.StripeWebhookEvent, error) {
	var event model.StripeWebhookEvent

	err := r.db.WithContext(ctx).
		Where("stripe_event_id = ?", eventID).
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get webhook event",
			zap.String("event_id", eventID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}

	return &event, nil
}

// ListUnprocessed returns events that never completed, oldest first
func (r *webhookEventRepository) ListUnprocessed(ctx context.Context, receivedBefore time.Time, limit int) ([]*model.StripeWebhookEvent, error) {
	var events []*model.StripeWebhookEvent

	query := r.db.WithContext(ctx).
		Where("processed = ? AND received_at < ?", false, receivedBefore.UTC()).
		Order("received_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	if err := query.Find(&events).Error; err != nil {
		r.logger.Error("Failed to list unprocessed webhook events", zap.Error(err))
		return nil, fmt.Errorf("failed to list unprocessed webhook events: %w", err)
	}

	return events, nil
}
