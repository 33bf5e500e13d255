package usecase_test

import (
	"context"
	"math/rand/v2"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/hudsor01/tenant-flow-sub011/internal/domain/errors"
	"github.com/hudsor01/tenant-flow-sub011/internal/domain/model"
	"github.com/hudsor01/tenant-flow-sub011/internal/usecase"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"gopkg.in/yaml.v3"
)

type transitionCase struct {
	Name   string `yaml:"name"`
	Guard  *bool  `yaml:"guard"`
	Seed   string `yaml:"seed"`
	SeedAt int    `yaml:"seed_at"`
	Events []struct {
		ID     string `yaml:"id"`
		Type   string `yaml:"type"`
		At     int    `yaml:"at"`
		Object string `yaml:"object"`
	} `yaml:"events"`
	Expect struct {
		Status      string `yaml:"status"`
		Cancelled   bool   `yaml:"cancelled"`
		LastEventID string `yaml:"last_event_id"`
	} `yaml:"expect"`
}

func loadTransitions(t *testing.T) []transitionCase {
	t.Helper()
	raw, err := os.ReadFile("testdata/transitions.yaml")
	require.NoError(t, err)

	var cases []transitionCase
	require.NoError(t, yaml.Unmarshal(raw, &cases))
	require.NotEmpty(t, cases)
	return cases
}

func TestSubscriptionStateMachine_Transitions(t *testing.T) {
	for _, tc := range loadTransitions(t) {
		t.Run(tc.Name, func(t *testing.T) {
			var opts []harnessOption
			if tc.Guard != nil && !*tc.Guard {
				opts = append(opts, withoutOrderingGuard())
			}
			h := newHarness(t, opts...)

			if tc.Seed != "" {
				h.seedSubscription(t, "sub_1", model.SubscriptionStatus(tc.Seed), time.Duration(tc.SeedAt)*time.Second)
			}

			for _, ev := range tc.Events {
				payload := eventJSON(ev.ID, stripe.EventType(ev.Type), time.Duration(ev.At)*time.Second, ev.Object)
				result := h.deliver(payload)
				require.Equal(t, usecase.OutcomeProcessed, result.Outcome, "%s: %v", ev.ID, result.Err)
			}

			sub := h.subscription(t, "sub_1")
			assert.Equal(t, model.SubscriptionStatus(tc.Expect.Status), sub.Status)
			if tc.Expect.Cancelled {
				assert.NotNil(t, sub.CancelledAt)
			}
			if tc.Expect.LastEventID != "" {
				assert.Equal(t, tc.Expect.LastEventID, sub.LastEventID)
			}
		})
	}
}

func TestSubscriptionStateMachine_OrderingConverges(t *testing.T) {
	statuses := []string{"trialing", "active", "past_due", "active", "unpaid"}
	rng := rand.New(rand.NewPCG(7, 11))

	for round := 0; round < 6; round++ {
		order := rng.Perm(len(statuses))

		t.Run("guarded", func(t *testing.T) {
			h := newHarness(t)
			for _, i := range order {
				h.deliverUpdate(t, i, statuses[i])
			}

			newest := len(statuses) - 1
			sub := h.subscription(t, "sub_1")
			assert.Equal(t, model.SubscriptionStatus(statuses[newest]), sub.Status, "order %v", order)
			require.NotNil(t, sub.CurrentPeriodEnd)
			assert.True(t, sub.CurrentPeriodEnd.Equal(updatePeriodEnd(newest)), "order %v", order)
		})

		t.Run("unguarded", func(t *testing.T) {
			h := newHarness(t, withoutOrderingGuard())
			for _, i := range order {
				h.deliverUpdate(t, i, statuses[i])
			}

			last := order[len(order)-1]
			assert.Equal(t, model.SubscriptionStatus(statuses[last]), h.subscription(t, "sub_1").Status, "order %v", order)
		})
	}
}

func updatePeriodEnd(i int) time.Time {
	return baseTime.Add(time.Duration(i+1) * 24 * time.Hour)
}

func (h *harness) deliverUpdate(t *testing.T, i int, status string) {
	t.Helper()
	payload := eventJSON("evt_upd_"+string(rune('a'+i)), stripe.EventTypeCustomerSubscriptionUpdated,
		time.Duration(i+1)*10*time.Second,
		subscriptionObject("sub_1", status, baseTime, updatePeriodEnd(i)))
	result := h.deliver(payload)
	require.Equal(t, usecase.OutcomeProcessed, result.Outcome, "%v", result.Err)
}

func TestSubscriptionStateMachine_InvoicePaidRefreshesPeriod(t *testing.T) {
	h := newHarness(t)
	h.seedSubscription(t, "sub_2", model.SubscriptionStatusPastDue, 0)

	periodStart := baseTime.Add(15 * 24 * time.Hour)
	periodEnd := periodStart.Add(30 * 24 * time.Hour)
	payload := eventJSON("evt_inv_sub2", stripe.EventTypeInvoicePaymentSucceeded, time.Minute,
		invoiceObject("in_sub2", "sub_2", "paid", periodStart, periodEnd))

	result := h.deliver(payload)
	require.Equal(t, usecase.OutcomeProcessed, result.Outcome, "%v", result.Err)

	sub := h.subscription(t, "sub_2")
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.CurrentPeriodStart)
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, sub.CurrentPeriodStart.Equal(periodStart))
	assert.True(t, sub.CurrentPeriodEnd.Equal(periodEnd))
	assert.Equal(t, "evt_inv_sub2", sub.LastEventID)

	invoice, err := h.repos.Invoice.GetByStripeID(context.Background(), "in_sub2")
	require.NoError(t, err)
	require.NotNil(t, invoice)
	assert.Equal(t, "paid", invoice.Status)
	assert.EqualValues(t, 2000, invoice.AmountPaidCents)
	assert.True(t, decimal.NewFromInt(20).Equal(invoice.AmountPaid))
	require.NotNil(t, invoice.StripeSubscriptionID)
	assert.Equal(t, "sub_2", *invoice.StripeSubscriptionID)

	assert.Equal(t, 0, h.provider.calls)
}

func TestSubscriptionStateMachine_InvoiceBeforeSubscription(t *testing.T) {
	h := newHarness(t)
	h.provider.put(&stripe.Subscription{
		ID:                 "sub_early",
		Status:             stripe.SubscriptionStatusIncomplete,
		Customer:           &stripe.Customer{ID: "cus_1"},
		CurrentPeriodStart: baseTime.Unix(),
		CurrentPeriodEnd:   baseTime.Add(30 * 24 * time.Hour).Unix(),
	})

	// attribution through the customer mapping table
	require.NoError(t, h.db.Create(&model.CustomerMapping{
		UserID:             userID,
		ProviderCustomerID: "cus_1",
	}).Error)

	payload := eventJSON("evt_inv_early", stripe.EventTypeInvoicePaymentSucceeded, time.Minute,
		invoiceObject("in_early", "sub_early", "paid", baseTime, baseTime.Add(30*24*time.Hour)))
	result := h.deliver(payload)
	require.Equal(t, usecase.OutcomeProcessed, result.Outcome, "%v", result.Err)

	sub := h.subscription(t, "sub_early")
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	assert.Equal(t, userID, sub.UserID)
	assert.Equal(t, 1, h.provider.calls)
}

func TestSubscriptionStateMachine_CheckoutCompleted(t *testing.T) {
	h := newHarness(t)
	h.provider.put(&stripe.Subscription{
		ID:                 "sub_co",
		Status:             stripe.SubscriptionStatusTrialing,
		Customer:           &stripe.Customer{ID: "cus_co"},
		CurrentPeriodStart: baseTime.Unix(),
		CurrentPeriodEnd:   baseTime.Add(14 * 24 * time.Hour).Unix(),
	})

	session := `{"id":"cs_1","object":"checkout.session","mode":"subscription","subscription":"sub_co","customer":"cus_co","client_reference_id":"` + userID.String() + `"}`
	result := h.deliver(eventJSON("evt_checkout", stripe.EventTypeCheckoutSessionCompleted, 0, session))
	require.Equal(t, usecase.OutcomeProcessed, result.Outcome, "%v", result.Err)

	sub := h.subscription(t, "sub_co")
	assert.Equal(t, model.SubscriptionStatusTrialing, sub.Status)
	assert.Equal(t, userID, sub.UserID)
	assert.Equal(t, "cus_co", sub.StripeCustomerID)
	assert.NotEmpty(t, sub.ProviderSnapshot)

	published := h.publisher.on(eventChannel)
	require.Len(t, published, 1)
	assert.Equal(t, "evt_checkout", published[0].Data.(usecase.SubscriptionChanged).EventID)

	payment := `{"id":"cs_2","object":"checkout.session","mode":"payment","customer":"cus_co"}`
	result = h.deliver(eventJSON("evt_checkout_payment", stripe.EventTypeCheckoutSessionCompleted, 0, payment))
	assert.Equal(t, usecase.OutcomeProcessed, result.Outcome)
	assert.Equal(t, 1, h.provider.calls)
}

func TestSubscriptionStateMachine_CheckoutWithExpandedSubscription(t *testing.T) {
	h := newHarness(t)

	expanded := subscriptionObject("sub_exp", "active", baseTime, baseTime.Add(30*24*time.Hour))
	session := `{"id":"cs_exp","object":"checkout.session","mode":"subscription","customer":"cus_1","subscription":` + expanded + `}`
	result := h.deliver(eventJSON("evt_checkout_expanded", stripe.EventTypeCheckoutSessionCompleted, 0, session))
	require.Equal(t, usecase.OutcomeProcessed, result.Outcome, "%v", result.Err)

	sub := h.subscription(t, "sub_exp")
	assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
	assert.NotEmpty(t, sub.ProviderSnapshot)
	assert.Contains(t, string(sub.ProviderSnapshot), `"sub_exp"`)
	assert.Equal(t, 0, h.provider.calls)
}

func TestSubscriptionStateMachine_DeletedUnknownSubscription(t *testing.T) {
	h := newHarness(t)

	unattributed := h.deliver(eventJSON("evt_del_unknown", stripe.EventTypeCustomerSubscriptionDeleted, 0,
		`{"id":"sub_ghost","object":"subscription","customer":"cus_ghost","status":"canceled"}`))
	assert.Equal(t, usecase.OutcomeProcessed, unattributed.Outcome)

	ghost, err := h.repos.Subscription.GetByStripeID(context.Background(), "sub_ghost")
	require.NoError(t, err)
	assert.Nil(t, ghost)

	attributed := h.deliver(eventJSON("evt_del_known_user", stripe.EventTypeCustomerSubscriptionDeleted, 0,
		subscriptionObject("sub_late", "canceled", baseTime, baseTime.Add(30*24*time.Hour))))
	require.Equal(t, usecase.OutcomeProcessed, attributed.Outcome, "%v", attributed.Err)

	sub := h.subscription(t, "sub_late")
	assert.Equal(t, model.SubscriptionStatusCanceled, sub.Status)
	assert.NotNil(t, sub.CancelledAt)
}

func TestSubscriptionStateMachine_LeasePayments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	leaseID := uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7")
	tenantID := uuid.MustParse("16fd2706-8baf-433b-82eb-8c7fada847da")

	succeeded := `{"id":"pi_rent","object":"payment_intent","amount":150000,"currency":"usd","customer":"cus_1","status":"succeeded",` +
		`"metadata":{"lease_id":"` + leaseID.String() + `","tenant_id":"` + tenantID.String() + `"}}`
	result := h.deliver(eventJSON("evt_pi_ok", stripe.EventTypePaymentIntentSucceeded, time.Minute, succeeded))
	require.Equal(t, usecase.OutcomeProcessed, result.Outcome, "%v", result.Err)
	assert.Equal(t, usecase.OutcomeDuplicate, h.deliver(eventJSON("evt_pi_ok", stripe.EventTypePaymentIntentSucceeded, time.Minute, succeeded)).Outcome)

	payment, err := h.repos.Payment.GetByPaymentIntentID(ctx, "pi_rent")
	require.NoError(t, err)
	require.NotNil(t, payment)
	assert.Equal(t, model.PaymentStatusSucceeded, payment.Status)
	assert.Equal(t, "rent", payment.PaymentType)
	assert.True(t, decimal.NewFromInt(1500).Equal(payment.Amount))
	require.NotNil(t, payment.LeaseID)
	assert.Equal(t, leaseID, *payment.LeaseID)
	require.NotNil(t, payment.TenantID)
	assert.Equal(t, tenantID, *payment.TenantID)
	assert.NotNil(t, payment.PaidAt)

	// a failure reported for an already settled intent does not revert it
	lateFailure := `{"id":"pi_rent","object":"payment_intent","amount":150000,"currency":"usd","status":"requires_payment_method",` +
		`"metadata":{"lease_id":"` + leaseID.String() + `"},"last_payment_error":{"type":"card_error","code":"card_declined","message":"declined"}}`
	result = h.deliver(eventJSON("evt_pi_late_fail", stripe.EventTypePaymentIntentPaymentFailed, 2*time.Minute, lateFailure))
	require.Equal(t, usecase.OutcomeProcessed, result.Outcome, "%v", result.Err)

	payment, err = h.repos.Payment.GetByPaymentIntentID(ctx, "pi_rent")
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusSucceeded, payment.Status)

	var count int64
	require.NoError(t, h.db.Model(&model.Payment{}).Where("provider_payment_intent_id = ?", "pi_rent").Count(&count).Error)
	assert.EqualValues(t, 1, count)

	failed := `{"id":"pi_declined","object":"payment_intent","amount":99000,"currency":"usd","status":"requires_payment_method",` +
		`"metadata":{"lease_id":"` + leaseID.String() + `","payment_type":"deposit"},` +
		`"last_payment_error":{"type":"card_error","code":"card_declined","message":"Card 4242 4242 4242 4242 was declined"}}`
	result = h.deliver(eventJSON("evt_pi_fail", stripe.EventTypePaymentIntentPaymentFailed, time.Minute, failed))
	require.Equal(t, usecase.OutcomeProcessed, result.Outcome, "%v", result.Err)

	declined, err := h.repos.Payment.GetByPaymentIntentID(ctx, "pi_declined")
	require.NoError(t, err)
	require.NotNil(t, declined)
	assert.Equal(t, model.PaymentStatusFailed, declined.Status)
	assert.Equal(t, "deposit", declined.PaymentType)
	require.NotNil(t, declined.FailureCode)
	assert.Equal(t, "card_declined", *declined.FailureCode)
	require.NotNil(t, declined.FailureMessage)
	assert.NotContains(t, *declined.FailureMessage, "4242")
	assert.Nil(t, declined.PaidAt)

	subscriptionCharge := `{"id":"pi_invoice","object":"payment_intent","amount":2000,"currency":"usd","status":"succeeded","metadata":{}}`
	result = h.deliver(eventJSON("evt_pi_invoice", stripe.EventTypePaymentIntentSucceeded, time.Minute, subscriptionCharge))
	assert.Equal(t, usecase.OutcomeProcessed, result.Outcome)
	none, err := h.repos.Payment.GetByPaymentIntentID(ctx, "pi_invoice")
	require.NoError(t, err)
	assert.Nil(t, none)

	malformed := `{"id":"pi_bad","object":"payment_intent","amount":100,"currency":"usd","status":"succeeded","metadata":{"lease_id":"not-a-uuid"}}`
	result = h.deliver(eventJSON("evt_pi_bad", stripe.EventTypePaymentIntentSucceeded, time.Minute, malformed))
	assert.Equal(t, usecase.OutcomeHandlerFailure, result.Outcome)
	assert.ErrorIs(t, result.Err, domainErrors.ErrMalformedEvent)
}

func TestSubscriptionStateMachine_Reconcile(t *testing.T) {
	ctx := context.Background()
	periodEnd := baseTime.Add(60 * 24 * time.Hour)

	t.Run("overwrites stored state", func(t *testing.T) {
		h := newHarness(t)
		h.seedSubscription(t, "sub_rec", model.SubscriptionStatusPastDue, time.Hour)
		h.provider.put(&stripe.Subscription{
			ID:                 "sub_rec",
			Status:             stripe.SubscriptionStatusActive,
			Customer:           &stripe.Customer{ID: "cus_1"},
			CurrentPeriodStart: baseTime.Unix(),
			CurrentPeriodEnd:   periodEnd.Unix(),
		})

		sub, err := h.machine.Reconcile(ctx, "sub_rec")
		require.NoError(t, err)
		require.NotNil(t, sub)
		assert.Equal(t, model.SubscriptionStatusActive, sub.Status)
		assert.Equal(t, "reconcile", sub.LastEventID)
		assert.Equal(t, userID, sub.UserID)
		require.NotNil(t, sub.CurrentPeriodEnd)
		assert.True(t, sub.CurrentPeriodEnd.Equal(periodEnd))
		assert.Len(t, h.publisher.on(eventChannel), 1)
	})

	t.Run("canceled stays canceled", func(t *testing.T) {
		h := newHarness(t)
		h.seedSubscription(t, "sub_rec", model.SubscriptionStatusCanceled, 0)
		h.provider.put(&stripe.Subscription{
			ID:       "sub_rec",
			Status:   stripe.SubscriptionStatusActive,
			Customer: &stripe.Customer{ID: "cus_1"},
		})

		sub, err := h.machine.Reconcile(ctx, "sub_rec")
		require.NoError(t, err)
		assert.Equal(t, model.SubscriptionStatusCanceled, sub.Status)
		assert.Empty(t, h.publisher.on(eventChannel))
	})

	t.Run("same-second event after reconcile still applies", func(t *testing.T) {
		h := newHarness(t)
		h.seedSubscription(t, "sub_r", model.SubscriptionStatusActive, 0)
		h.provider.put(&stripe.Subscription{
			ID:                 "sub_r",
			Status:             stripe.SubscriptionStatusActive,
			Customer:           &stripe.Customer{ID: "cus_1"},
			CurrentPeriodStart: baseTime.Unix(),
			CurrentPeriodEnd:   periodEnd.Unix(),
		})

		reconciled, err := h.machine.Reconcile(ctx, "sub_r")
		require.NoError(t, err)
		require.NotNil(t, reconciled.LastEventAt)
		assert.False(t, reconciled.LastEventAt.After(time.Now()))

		createdOffset := time.Now().Truncate(time.Second).Sub(baseTime)
		payload := eventJSON("evt_fail_after_reconcile", stripe.EventTypeInvoicePaymentFailed, createdOffset,
			invoiceObject("in_r", "sub_r", "open", baseTime, periodEnd))

		result := h.deliver(payload)
		require.Equal(t, usecase.OutcomeProcessed, result.Outcome, "%v", result.Err)

		sub := h.subscription(t, "sub_r")
		assert.Equal(t, model.SubscriptionStatusPastDue, sub.Status)
		assert.Equal(t, "evt_fail_after_reconcile", sub.LastEventID)
	})

	t.Run("unknown at provider", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.machine.Reconcile(ctx, "sub_missing")
		var pe *domainErrors.ProviderError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, domainErrors.ClassPermanent, pe.Class)
		assert.Equal(t, 1, pe.Attempts)
		assert.Equal(t, "resource_missing", pe.Code)
	})
}

func TestSubscriptionStateMachine_StaleEventsAreCounted(t *testing.T) {
	h := newHarness(t)
	h.seedSubscription(t, "sub_1", model.SubscriptionStatusActive, 10*time.Minute)

	result := h.deliver(eventJSON("evt_old", stripe.EventTypeCustomerSubscriptionUpdated, time.Minute,
		subscriptionObject("sub_1", "past_due", baseTime, baseTime.Add(30*24*time.Hour))))
	require.Equal(t, usecase.OutcomeProcessed, result.Outcome, "%v", result.Err)

	stale := h.metrics.StaleEvents.WithLabelValues(string(stripe.EventTypeCustomerSubscriptionUpdated))
	assert.Equal(t, float64(1), promtestutil.ToFloat64(stale))
	assert.Empty(t, h.publisher.on(eventChannel))
}
