package usecase_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hudsor01/tenant-flow-sub011/internal/config"
	"github.com/hudsor01/tenant-flow-sub011/internal/domain/model"
	"github.com/hudsor01/tenant-flow-sub011/internal/infrastructure/database"
	"github.com/hudsor01/tenant-flow-sub011/internal/infrastructure/metrics"
	stripeprovider "github.com/hudsor01/tenant-flow-sub011/internal/infrastructure/provider/stripe"
	"github.com/hudsor01/tenant-flow-sub011/internal/testutil"
	"github.com/hudsor01/tenant-flow-sub011/internal/usecase"
	"github.com/hudsor01/tenant-flow-sub011/pkg/messaging"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	webhookSecret = "whsec_usecase_test"
	eventChannel  = "billing.subscription.changed"
	alertChannel  = "billing.webhook.failed"
)

var (
	baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	userID   = uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
)

// fakeProvider serves subscription snapshots and can simulate an outage.
type fakeProvider struct {
	mu       sync.Mutex
	subs     map[string]*stripe.Subscription
	failures int
	calls    int
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{subs: make(map[string]*stripe.Subscription)}
}

func (f *fakeProvider) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, &stripe.Error{Type: stripe.ErrorTypeAPI, HTTPStatusCode: http.StatusServiceUnavailable, RequestID: "req_outage"}
	}
	sub, ok := f.subs[id]
	if !ok {
		return nil, &stripe.Error{
			Type:           stripe.ErrorTypeInvalidRequest,
			Code:           stripe.ErrorCodeResourceMissing,
			HTTPStatusCode: http.StatusNotFound,
			RequestID:      "req_missing",
		}
	}
	clone := *sub
	return &clone, nil
}

func (f *fakeProvider) put(sub *stripe.Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[sub.ID] = sub
}

func (f *fakeProvider) failNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
}

// recordingPublisher keeps every published envelope per channel.
type recordingPublisher struct {
	mu       sync.Mutex
	messages map[string][]messaging.Envelope
}

func (p *recordingPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = make(map[string][]messaging.Envelope)
	}
	p.messages[channel] = append(p.messages[channel], message.(messaging.Envelope))
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) on(channel string) []messaging.Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]messaging.Envelope(nil), p.messages[channel]...)
}

type harness struct {
	db         *gorm.DB
	repos      *database.Repositories
	provider   *fakeProvider
	publisher  *recordingPublisher
	metrics    *metrics.Metrics
	machine    *usecase.SubscriptionStateMachine
	dispatcher *usecase.EventDispatcher
	processor  *usecase.WebhookProcessor
}

type harnessOption func(*usecase.StateMachineDeps)

func withoutOrderingGuard() harnessOption {
	return func(d *usecase.StateMachineDeps) { d.OrderingGuard = false }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	logger := zap.NewNop()
	db, repos := testutil.NewTestRepositories(t)
	m := metrics.NewNop()
	fake := newFakeProvider()
	pub := &recordingPublisher{}

	retry := usecase.NewRetryController(config.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
		Multiplier:  2,
	}, m, logger)

	deps := usecase.StateMachineDeps{
		Subscriptions: repos.Subscription,
		Invoices:      repos.Invoice,
		Payments:      repos.Payment,
		Customers:     repos.CustomerMapping,
		Provider:      fake,
		Retry:         retry,
		Publisher:     pub,
		EventChannel:  eventChannel,
		OrderingGuard: true,
		Metrics:       m,
		Logger:        logger,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	machine := usecase.NewSubscriptionStateMachine(deps)
	dispatcher := usecase.NewEventDispatcher(logger)
	require.NoError(t, machine.RegisterHandlers(dispatcher))

	processor := usecase.NewWebhookProcessor(usecase.ProcessorDeps{
		Verifier:          stripeprovider.NewVerifier(webhookSecret, 5*time.Minute, logger),
		Ledger:            usecase.NewIdempotencyLedger(repos.WebhookEvent, time.Minute, logger),
		Dispatcher:        dispatcher,
		Reporter:          usecase.NewErrorReporter(repos.FailedWebhookEvent, pub, alertChannel, m, logger),
		Metrics:           m,
		ProcessingTimeout: 5 * time.Second,
		Logger:            logger,
	})

	return &harness{
		db:         db,
		repos:      repos,
		provider:   fake,
		publisher:  pub,
		metrics:    m,
		machine:    machine,
		dispatcher: dispatcher,
		processor:  processor,
	}
}

// eventJSON builds a provider event envelope around object.
func eventJSON(id string, eventType stripe.EventType, createdOffset time.Duration, object string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"object":"event","type":%q,"created":%d,"livemode":false,"api_version":"2024-06-20","data":{"object":%s}}`,
		id, eventType, baseTime.Add(createdOffset).Unix(), object))
}

func signed(payload []byte) string {
	return webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: payload,
		Secret:  webhookSecret,
	}).Header
}

func (h *harness) deliver(payload []byte) usecase.Result {
	return h.processor.Process(context.Background(), payload, signed(payload))
}

func (h *harness) seedSubscription(t *testing.T, id string, status model.SubscriptionStatus, lastEventOffset time.Duration) {
	t.Helper()
	eventAt := baseTime.Add(lastEventOffset)
	start := baseTime.Add(-15 * 24 * time.Hour)
	end := baseTime.Add(15 * 24 * time.Hour)
	_, err := h.repos.Subscription.Upsert(context.Background(), &model.Subscription{
		UserID:               userID,
		StripeSubscriptionID: id,
		StripeCustomerID:     "cus_1",
		PlanID:               "price_basic",
		BillingPeriod:        "month",
		Status:               status,
		CurrentPeriodStart:   &start,
		CurrentPeriodEnd:     &end,
		LastEventAt:          &eventAt,
		LastEventID:          "evt_seed",
	}, false)
	require.NoError(t, err)
}

func (h *harness) subscription(t *testing.T, id string) *model.Subscription {
	t.Helper()
	sub, err := h.repos.Subscription.GetByStripeID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, sub, "subscription %s not stored", id)
	return sub
}

func (h *harness) ledgerRow(t *testing.T, eventID string) *model.StripeWebhookEvent {
	t.Helper()
	row, err := h.repos.WebhookEvent.Get(context.Background(), eventID)
	require.NoError(t, err)
	return row
}

func subscriptionObject(id, status string, periodStart, periodEnd time.Time) string {
	obj := map[string]interface{}{
		"id":                   id,
		"object":               "subscription",
		"customer":             "cus_1",
		"status":               status,
		"cancel_at_period_end": false,
		"current_period_start": periodStart.Unix(),
		"current_period_end":   periodEnd.Unix(),
		"metadata":             map[string]string{"user_id": userID.String()},
		"items": map[string]interface{}{
			"object": "list",
			"data": []interface{}{
				map[string]interface{}{
					"id":     "si_1",
					"object": "subscription_item",
					"price": map[string]interface{}{
						"id":        "price_basic",
						"object":    "price",
						"recurring": map[string]interface{}{"interval": "month", "interval_count": 1},
					},
				},
			},
		},
	}
	raw, _ := json.Marshal(obj)
	return string(raw)
}

func invoiceObject(id, subscriptionID, status string, periodStart, periodEnd time.Time) string {
	obj := map[string]interface{}{
		"id":            id,
		"object":        "invoice",
		"customer":      "cus_1",
		"subscription":  subscriptionID,
		"status":        status,
		"currency":      "usd",
		"amount_due":    2000,
		"amount_paid":   2000,
		"attempt_count": 1,
		"period_start":  periodStart.Add(-30 * 24 * time.Hour).Unix(),
		"period_end":    periodStart.Unix(),
		"lines": map[string]interface{}{
			"object": "list",
			"data": []interface{}{
				map[string]interface{}{
					"id":           "il_1",
					"object":       "line_item",
					"type":         "subscription",
					"subscription": subscriptionID,
					"period":       map[string]interface{}{"start": periodStart.Unix(), "end": periodEnd.Unix()},
				},
			},
		},
	}
	if status != "paid" {
		obj["amount_paid"] = 0
	}
	raw, _ := json.Marshal(obj)
	return string(raw)
}
