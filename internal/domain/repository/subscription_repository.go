package repository

import (
	"context"
	"time"

	"github.com/hudsor01/tenant-flow-sub011/internal/domain/model"
)

// StatusUpdate is a partial transition driven by an invoice event.
// Nil period fields are left untouched.
type StatusUpdate struct {
	StripeSubscriptionID string
	Status               model.SubscriptionStatus
	PeriodStart          *time.Time
	PeriodEnd            *time.Time
	EventAt              time.Time
	EventID              string
}

// SubscriptionRepository writes are compare-and-set at the storage layer:
// the returned bool is false when the row was left untouched because it is
// canceled or, with guard set, because the stored state is newer than EventAt.
type SubscriptionRepository interface {
	GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*model.Subscription, error)
	Upsert(ctx context.Context, sub *model.Subscription, guard bool) (bool, error)
	UpdateStatus(ctx context.Context, update StatusUpdate, guard bool) (bool, error)
	MarkCanceled(ctx context.Context, stripeSubscriptionID string, at time.Time, eventAt time.Time, eventID string) (bool, error)
}

type InvoiceRepository interface {
	Upsert(ctx context.Context, invoice *model.Invoice) (bool, error)
	GetByStripeID(ctx context.Context, stripeInvoiceID string) (*model.Invoice, error)
}

type PaymentRepository interface {
	// Upsert never moves a succeeded payment back to failed.
	Upsert(ctx context.Context, payment *model.Payment) (bool, error)
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*model.Payment, error)
}

type CustomerMappingRepository interface {
	GetByProviderCustomerID(ctx context.Context, providerCustomerID string) (*model.CustomerMapping, error)
}
