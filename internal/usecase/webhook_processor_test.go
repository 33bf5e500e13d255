package usecase_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	domainErrors "github.com/hudsor01/tenant-flow-sub011/internal/domain/errors"
	"github.com/hudsor01/tenant-flow-sub011/internal/domain/model"
	"github.com/hudsor01/tenant-flow-sub011/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

func TestOutcome_HTTPStatus(t *testing.T) {
	tests := []struct {
		outcome usecase.Outcome
		status  int
	}{
		{usecase.OutcomeProcessed, http.StatusOK},
		{usecase.OutcomeDuplicate, http.StatusOK},
		{usecase.OutcomeInFlight, http.StatusConflict},
		{usecase.OutcomeAuthFailure, http.StatusBadRequest},
		{usecase.OutcomeBadRequest, http.StatusBadRequest},
		{usecase.OutcomeHandlerFailure, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			assert.Equal(t, tt.status, tt.outcome.HTTPStatus())
		})
	}
}

func TestWebhookProcessor_DuplicateDeliveryAppliesOnce(t *testing.T) {
	h := newHarness(t)
	h.seedSubscription(t, "sub_1", model.SubscriptionStatusActive, 0)

	payload := eventJSON("evt_1", stripe.EventTypeCustomerSubscriptionDeleted, time.Minute,
		subscriptionObject("sub_1", "canceled", baseTime, baseTime.Add(30*24*time.Hour)))

	first := h.deliver(payload)
	require.Equal(t, usecase.OutcomeProcessed, first.Outcome, "first delivery: %v", first.Err)

	sub := h.subscription(t, "sub_1")
	require.NotNil(t, sub.CancelledAt)
	cancelledAt := *sub.CancelledAt

	second := h.deliver(payload)
	assert.Equal(t, usecase.OutcomeDuplicate, second.Outcome)
	assert.Equal(t, http.StatusOK, second.Outcome.HTTPStatus())

	var rows int64
	require.NoError(t, h.db.Model(&model.StripeWebhookEvent{}).Where("stripe_event_id = ?", "evt_1").Count(&rows).Error)
	assert.EqualValues(t, 1, rows)

	row := h.ledgerRow(t, "evt_1")
	require.NotNil(t, row)
	assert.True(t, row.Processed)
	assert.NotNil(t, row.ProcessedAt)

	sub = h.subscription(t, "sub_1")
	assert.Equal(t, model.SubscriptionStatusCanceled, sub.Status)
	assert.True(t, sub.CancelledAt.Equal(cancelledAt))

	published := h.publisher.on(eventChannel)
	require.Len(t, published, 1)
	assert.Equal(t, usecase.SubscriptionChangedType, published[0].Type)
	changed, ok := published[0].Data.(usecase.SubscriptionChanged)
	require.True(t, ok)
	assert.Equal(t, model.SubscriptionStatusCanceled, changed.Status)
	assert.Equal(t, "evt_1", changed.EventID)
}

func TestWebhookProcessor_ConcurrentDeliveriesApplyOnce(t *testing.T) {
	h := newHarness(t)
	h.seedSubscription(t, "sub_1", model.SubscriptionStatusActive, 0)

	payload := eventJSON("evt_race", stripe.EventTypeCustomerSubscriptionDeleted, time.Minute,
		subscriptionObject("sub_1", "canceled", baseTime, baseTime.Add(30*24*time.Hour)))
	header := signed(payload)

	const deliveries = 8
	results := make([]usecase.Result, deliveries)
	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = h.processor.Process(context.Background(), payload, header)
		}(i)
	}
	wg.Wait()

	processed := 0
	for _, r := range results {
		switch r.Outcome {
		case usecase.OutcomeProcessed:
			processed++
		case usecase.OutcomeDuplicate, usecase.OutcomeInFlight:
		default:
			t.Fatalf("unexpected outcome %s: %v", r.Outcome, r.Err)
		}
	}
	assert.Equal(t, 1, processed)
	assert.Len(t, h.publisher.on(eventChannel), 1)
}

func TestWebhookProcessor_RejectsUnauthenticatedDelivery(t *testing.T) {
	h := newHarness(t)
	h.seedSubscription(t, "sub_1", model.SubscriptionStatusActive, 0)

	payload := eventJSON("evt_forged", stripe.EventTypeCustomerSubscriptionDeleted, time.Minute,
		subscriptionObject("sub_1", "canceled", baseTime, baseTime.Add(30*24*time.Hour)))

	tests := []struct {
		name   string
		header string
		reason domainErrors.SignatureReason
	}{
		{"missing header", "", domainErrors.SignatureMissingHeader},
		{"malformed header", "not-a-signature", domainErrors.SignatureMalformedHeader},
		{
			name: "wrong secret",
			header: webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
				Payload: payload,
				Secret:  "whsec_someone_else",
			}).Header,
			reason: domainErrors.SignatureNoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := h.processor.Process(context.Background(), payload, tt.header)
			assert.Equal(t, usecase.OutcomeAuthFailure, result.Outcome)
			assert.Equal(t, http.StatusBadRequest, result.Outcome.HTTPStatus())

			var sigErr *domainErrors.SignatureError
			require.ErrorAs(t, result.Err, &sigErr)
			assert.Equal(t, tt.reason, sigErr.Reason)
		})
	}

	assert.Nil(t, h.ledgerRow(t, "evt_forged"))
	assert.Equal(t, model.SubscriptionStatusActive, h.subscription(t, "sub_1").Status)
}

func TestWebhookProcessor_RejectsUnparseablePayload(t *testing.T) {
	h := newHarness(t)

	result := h.deliver([]byte(`{"id": "evt_broken", "type": `))
	assert.Equal(t, usecase.OutcomeBadRequest, result.Outcome)

	noID := h.deliver([]byte(`{"object":"event","type":"customer.subscription.updated","data":{"object":{}}}`))
	assert.Equal(t, usecase.OutcomeBadRequest, noID.Outcome)
	assert.ErrorIs(t, noID.Err, domainErrors.ErrMalformedEvent)
}

func TestWebhookProcessor_FailureThenRedelivery(t *testing.T) {
	h := newHarness(t)
	periodStart := baseTime
	periodEnd := baseTime.Add(30 * 24 * time.Hour)
	h.provider.put(&stripe.Subscription{
		ID:                 "sub_9",
		Status:             stripe.SubscriptionStatusActive,
		Customer:           &stripe.Customer{ID: "cus_1"},
		CurrentPeriodStart: periodStart.Unix(),
		CurrentPeriodEnd:   periodEnd.Unix(),
		Metadata:           map[string]string{"user_id": userID.String()},
	})
	h.provider.failNext(100)

	payload := eventJSON("evt_fail", stripe.EventTypeInvoicePaymentSucceeded, time.Minute,
		invoiceObject("in_9", "sub_9", "paid", periodStart, periodEnd))

	first := h.deliver(payload)
	require.Equal(t, usecase.OutcomeHandlerFailure, first.Outcome)
	assert.Equal(t, http.StatusInternalServerError, first.Outcome.HTTPStatus())

	var pe *domainErrors.ProviderError
	require.ErrorAs(t, first.Err, &pe)
	assert.Equal(t, domainErrors.ClassTransient, pe.Class)
	assert.Equal(t, 3, pe.Attempts)

	row := h.ledgerRow(t, "evt_fail")
	require.NotNil(t, row)
	assert.False(t, row.Processed)
	require.NotNil(t, row.ErrorMessage)
	assert.Nil(t, row.ClaimedAt)

	failure, err := h.repos.FailedWebhookEvent.Get(context.Background(), "evt_fail")
	require.NoError(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, string(domainErrors.ClassTransient), failure.ErrorClass)
	assert.Equal(t, 1, failure.AttemptCount)
	require.NotNil(t, failure.ProviderRequestID)
	assert.Equal(t, "req_outage", *failure.ProviderRequestID)
	assert.Nil(t, failure.ResolvedAt)
	assert.Len(t, h.publisher.on(alertChannel), 1)

	h.provider.failNext(0)

	second := h.deliver(payload)
	require.Equal(t, usecase.OutcomeProcessed, second.Outcome, "redelivery: %v", second.Err)

	row = h.ledgerRow(t, "evt_fail")
	assert.True(t, row.Processed)
	assert.Nil(t, row.ErrorMessage)
	assert.Equal(t, 1, row.RetryCount)

	failure, err = h.repos.FailedWebhookEvent.Get(context.Background(), "evt_fail")
	require.NoError(t, err)
	assert.NotNil(t, failure.ResolvedAt)

	var invoices int64
	require.NoError(t, h.db.Model(&model.Invoice{}).Where("stripe_invoice_id = ?", "in_9").Count(&invoices).Error)
	assert.EqualValues(t, 1, invoices)

	sub := h.subscription(t, "sub_9")
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, userID, sub.UserID)

	third := h.deliver(payload)
	assert.Equal(t, usecase.OutcomeDuplicate, third.Outcome)
}

func TestWebhookProcessor_InFlightDeliveryIsRejected(t *testing.T) {
	h := newHarness(t)

	payload := eventJSON("evt_busy", stripe.EventTypeCustomerSubscriptionTrialWillEnd, time.Minute,
		subscriptionObject("sub_1", "trialing", baseTime, baseTime.Add(7*24*time.Hour)))

	// another delivery holds the claim
	_, err := h.repos.WebhookEvent.Admit(context.Background(), &model.StripeWebhookEvent{
		StripeEventID: "evt_busy",
		EventType:     string(stripe.EventTypeCustomerSubscriptionTrialWillEnd),
	}, time.Minute)
	require.NoError(t, err)

	result := h.deliver(payload)
	assert.Equal(t, usecase.OutcomeInFlight, result.Outcome)
	assert.Equal(t, http.StatusConflict, result.Outcome.HTTPStatus())
}

func TestWebhookProcessor_UnknownEventTypeIsAcknowledged(t *testing.T) {
	h := newHarness(t)

	result := h.deliver(eventJSON("evt_customer", "customer.created", 0, `{"id":"cus_1","object":"customer"}`))
	assert.Equal(t, usecase.OutcomeProcessed, result.Outcome)

	row := h.ledgerRow(t, "evt_customer")
	require.NotNil(t, row)
	assert.True(t, row.Processed)
	assert.Equal(t, "customer.created", row.EventType)
}

func TestWebhookProcessor_MissingUserLinkIsPermanent(t *testing.T) {
	h := newHarness(t)

	payload := eventJSON("evt_orphan", stripe.EventTypeCustomerSubscriptionCreated, 0,
		`{"id":"sub_orphan","object":"subscription","customer":"cus_nobody","status":"active"}`)

	result := h.deliver(payload)
	require.Equal(t, usecase.OutcomeHandlerFailure, result.Outcome)
	assert.ErrorIs(t, result.Err, domainErrors.ErrCustomerLinkMissing)

	var handlerErr *domainErrors.HandlerError
	require.ErrorAs(t, result.Err, &handlerErr)
	assert.Equal(t, "evt_orphan", handlerErr.EventID)

	failure, err := h.repos.FailedWebhookEvent.Get(context.Background(), "evt_orphan")
	require.NoError(t, err)
	require.NotNil(t, failure)
	assert.Equal(t, string(domainErrors.ClassPermanent), failure.ErrorClass)
}

func TestWebhookProcessor_Replay(t *testing.T) {
	h := newHarness(t)
	periodStart := baseTime
	periodEnd := baseTime.Add(30 * 24 * time.Hour)
	h.provider.put(&stripe.Subscription{
		ID:                 "sub_r",
		Status:             stripe.SubscriptionStatusPastDue,
		Customer:           &stripe.Customer{ID: "cus_1"},
		CurrentPeriodStart: periodStart.Unix(),
		CurrentPeriodEnd:   periodEnd.Unix(),
		Metadata:           map[string]string{"user_id": userID.String()},
	})
	h.provider.failNext(100)

	payload := eventJSON("evt_replay", stripe.EventTypeInvoicePaymentSucceeded, time.Minute,
		invoiceObject("in_r", "sub_r", "paid", periodStart, periodEnd))
	require.Equal(t, usecase.OutcomeHandlerFailure, h.deliver(payload).Outcome)

	h.provider.failNext(0)
	ctx := context.Background()

	replayed := h.processor.Replay(ctx, "evt_replay")
	require.Equal(t, usecase.OutcomeProcessed, replayed.Outcome, "replay: %v", replayed.Err)
	assert.Equal(t, string(stripe.EventTypeInvoicePaymentSucceeded), replayed.EventType)
	assert.Equal(t, model.SubscriptionStatusActive, h.subscription(t, "sub_r").Status)

	failure, err := h.repos.FailedWebhookEvent.Get(ctx, "evt_replay")
	require.NoError(t, err)
	assert.NotNil(t, failure.ResolvedAt)

	again := h.processor.Replay(ctx, "evt_replay")
	assert.Equal(t, usecase.OutcomeDuplicate, again.Outcome)
	assert.ErrorIs(t, again.Err, domainErrors.ErrEventAlreadyProcessed)

	missing := h.processor.Replay(ctx, "evt_never_seen")
	assert.Equal(t, usecase.OutcomeBadRequest, missing.Outcome)
	assert.ErrorIs(t, missing.Err, domainErrors.ErrEventNotFound)
}
