package usecase

import (
	"context"
	"errors"
	"testing"

	domainErrors "github.com/hudsor01/tenant-flow-sub011/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

func TestEventDispatcher_Routing(t *testing.T) {
	d := NewEventDispatcher(zap.NewNop())

	var seen []string
	require.NoError(t, d.Register(stripe.EventTypeInvoicePaymentFailed, func(ctx context.Context, e *stripe.Event) error {
		seen = append(seen, e.ID)
		return nil
	}))

	assert.True(t, d.Handles(stripe.EventTypeInvoicePaymentFailed))
	assert.False(t, d.Handles("invoice.voided"))

	require.NoError(t, d.Dispatch(context.Background(), &stripe.Event{ID: "evt_1", Type: stripe.EventTypeInvoicePaymentFailed}))
	assert.Equal(t, []string{"evt_1"}, seen)

	// a type nobody registered for is acknowledged
	require.NoError(t, d.Dispatch(context.Background(), &stripe.Event{ID: "evt_2", Type: "billing_portal.session.created"}))
	assert.Equal(t, []string{"evt_1"}, seen)
}

func TestEventDispatcher_RejectsDuplicateRegistration(t *testing.T) {
	d := NewEventDispatcher(zap.NewNop())
	noop := func(context.Context, *stripe.Event) error { return nil }

	require.NoError(t, d.Register(stripe.EventTypeCustomerSubscriptionDeleted, noop))
	err := d.Register(stripe.EventTypeCustomerSubscriptionDeleted, noop)
	assert.ErrorIs(t, err, domainErrors.ErrHandlerAlreadyRegistered)

	assert.Error(t, d.Register(stripe.EventTypeCustomerSubscriptionUpdated, nil))
	assert.Equal(t, []string{"customer.subscription.deleted"}, d.EventTypes())
}

func TestEventDispatcher_PropagatesHandlerFailure(t *testing.T) {
	d := NewEventDispatcher(zap.NewNop())
	boom := errors.New("database unavailable")

	require.NoError(t, d.Register(stripe.EventTypeCustomerSubscriptionUpdated, func(context.Context, *stripe.Event) error {
		return boom
	}))

	err := d.Dispatch(context.Background(), &stripe.Event{ID: "evt_9", Type: stripe.EventTypeCustomerSubscriptionUpdated})

	var handlerErr *domainErrors.HandlerError
	require.True(t, errors.As(err, &handlerErr))
	assert.Equal(t, "evt_9", handlerErr.EventID)
	assert.Equal(t, "customer.subscription.updated", handlerErr.EventType)
	assert.ErrorIs(t, err, boom)
}
