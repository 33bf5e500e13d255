package repository

import (
	"context"
	"time"

	"github.com/hudsor01/tenant-flow-sub011/internal/domain/model"
)

// AdmitStatus is the ledger verdict for one delivery of an event.
type AdmitStatus string

const (
	// AdmitNew: first sighting, the caller owns processing.
	AdmitNew AdmitStatus = "new"
	// AdmitRetry: a previous attempt failed or its claim expired, the caller owns processing.
	AdmitRetry AdmitStatus = "retry"
	// AdmitDuplicate: already processed, acknowledge without side effects.
	AdmitDuplicate AdmitStatus = "duplicate"
	// AdmitInFlight: another delivery holds a live claim on the event.
	AdmitInFlight AdmitStatus = "in_flight"
)

// Owns reports whether the caller may apply side effects.
func (s AdmitStatus) Owns() bool {
	return s == AdmitNew || s == AdmitRetry
}

type AdmitResult struct {
	Status AdmitStatus
	Event  *model.StripeWebhookEvent
}

// WebhookEventRepository is the idempotency ledger. Admit and Claim must be
// atomic at the storage layer.
type WebhookEventRepository interface {
	Admit(ctx context.Context, event *model.StripeWebhookEvent, lease time.Duration) (*AdmitResult, error)
	Claim(ctx context.Context, eventID string, lease time.Duration) (bool, error)
	MarkProcessed(ctx context.Context, eventID string, took time.Duration) error
	MarkFailed(ctx context.Context, eventID string, took time.Duration, errMsg string) error
	Get(ctx context.Context, eventID string) (*model.StripeWebhookEvent, error)
	ListUnprocessed(ctx context.Context, receivedBefore time.Time, limit int) ([]*model.StripeWebhookEvent, error)
}

type FailedWebhookEventRepository interface {
	// Record inserts the failure or bumps the attempt count of an existing one.
	Record(ctx context.Context, failure *model.FailedWebhookEvent) error
	Resolve(ctx context.Context, eventID string, at time.Time) (bool, error)
	Get(ctx context.Context, eventID string) (*model.FailedWebhookEvent, error)
	ListUnresolved(ctx context.Context, limit int) ([]*model.FailedWebhookEvent, error)
}
