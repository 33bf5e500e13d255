package usecase

import (
	"context"
	"time"

	"github.com/hudsor01/tenant-flow-sub011/internal/domain/model"
	domainRepo "github.com/hudsor01/tenant-flow-sub011/internal/domain/repository"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// IdempotencyLedger turns at-least-once delivery into a single application
// of side effects per event id. The storage layer's unique index is the
// only concurrency primitive.
type IdempotencyLedger struct {
	repo   domainRepo.WebhookEventRepository
	lease  time.Duration
	logger *zap.Logger
}

// NewIdempotencyLedger creates a ledger. lease bounds how long an admitted
// delivery may hold an event before another delivery can take it over.
func NewIdempotencyLedger(repo domainRepo.WebhookEventRepository, lease time.Duration, logger *zap.Logger) *IdempotencyLedger {
	return &IdempotencyLedger{repo: repo, lease: lease, logger: logger}
}

// Admit records the first sighting of an event or reports why the caller
// must not apply it.
func (l *IdempotencyLedger) Admit(ctx context.Context, event *stripe.Event, payload []byte) (*domainRepo.AdmitResult, error) {
	row := &model.StripeWebhookEvent{
		StripeEventID: event.ID,
		EventType:     string(event.Type),
		APIVersion:    event.APIVersion,
		Livemode:      event.Livemode,
		Payload:       datatypes.JSON(payload),
	}
	if event.Created > 0 {
		created := time.Unix(event.Created, 0).UTC()
		row.EventCreatedAt = &created
	}

	result, err := l.repo.Admit(ctx, row, l.lease)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("Webhook event admitted",
		zap.String("event_id", event.ID),
		zap.String("status", string(result.Status)))
	return result, nil
}

// Claim takes over a stored, unprocessed event for replay.
func (l *IdempotencyLedger) Claim(ctx context.Context, eventID string) (bool, error) {
	return l.repo.Claim(ctx, eventID, l.lease)
}

// Record stores the outcome of a handler run. A failure releases the claim
// so the next delivery is admitted as a retry.
func (l *IdempotencyLedger) Record(ctx context.Context, eventID string, took time.Duration, handlerErr error) error {
	if handlerErr == nil {
		return l.repo.MarkProcessed(ctx, eventID, took)
	}
	return l.repo.MarkFailed(ctx, eventID, took, truncate(Sanitize(handlerErr.Error()), maxErrorMessageLength))
}

func (l *IdempotencyLedger) Get(ctx context.Context, eventID string) (*model.StripeWebhookEvent, error) {
	return l.repo.Get(ctx, eventID)
}

// ListUnprocessed returns events received before the cutoff that never completed.
func (l *IdempotencyLedger) ListUnprocessed(ctx context.Context, receivedBefore time.Time, limit int) ([]*model.StripeWebhookEvent, error) {
	return l.repo.ListUnprocessed(ctx, receivedBefore, limit)
}
