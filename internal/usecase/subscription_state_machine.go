package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	domainErrors "github.com/hudsor01/tenant-flow-sub011/internal/domain/errors"
	"github.com/hudsor01/tenant-flow-sub011/internal/domain/model"
	"github.com/hudsor01/tenant-flow-sub011/internal/domain/provider"
	domainRepo "github.com/hudsor01/tenant-flow-sub011/internal/domain/repository"
	"github.com/hudsor01/tenant-flow-sub011/internal/infrastructure/metrics"
	"github.com/hudsor01/tenant-flow-sub011/pkg/messaging"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	// SubscriptionChangedType is the envelope type published after a transition
	SubscriptionChangedType = "subscription.changed"

	reconcileEventID = "reconcile"
	messageSource    = "billing"
)

// SubscriptionChanged is published (best effort) whenever a stored subscription changes.
type SubscriptionChanged struct {
	StripeSubscriptionID string                   `json:"stripe_subscription_id"`
	UserID               string                   `json:"user_id"`
	Status               model.SubscriptionStatus `json:"status"`
	CurrentPeriodEnd     *time.Time               `json:"current_period_end,omitempty"`
	EventID              string                   `json:"event_id"`
	EventType            string                   `json:"event_type"`
}

// StateMachineDeps wires the subscription state machine.
type StateMachineDeps struct {
	Subscriptions domainRepo.SubscriptionRepository
	Invoices      domainRepo.InvoiceRepository
	Payments      domainRepo.PaymentRepository
	Customers     domainRepo.CustomerMappingRepository
	Provider      provider.BillingProvider
	Retry         *RetryController
	Publisher     messaging.Publisher
	EventChannel  string
	OrderingGuard bool
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

// SubscriptionStateMachine applies billing events to the local subscription,
// invoice and payment records. Every write is a keyed upsert whose conflict
// branch enforces the terminal state and, when enabled, event ordering.
type SubscriptionStateMachine struct {
	subscriptions domainRepo.SubscriptionRepository
	invoices      domainRepo.InvoiceRepository
	payments      domainRepo.PaymentRepository
	customers     domainRepo.CustomerMappingRepository
	provider      provider.BillingProvider
	retry         *RetryController
	publisher     messaging.Publisher
	eventChannel  string
	orderingGuard bool
	metrics       *metrics.Metrics
	logger        *zap.Logger
	now           func() time.Time
}

// NewSubscriptionStateMachine creates the state machine
func NewSubscriptionStateMachine(deps StateMachineDeps) *SubscriptionStateMachine {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = messaging.NewNoopPublisher()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NewNop()
	}

	return &SubscriptionStateMachine{
		subscriptions: deps.Subscriptions,
		invoices:      deps.Invoices,
		payments:      deps.Payments,
		customers:     deps.Customers,
		provider:      deps.Provider,
		retry:         deps.Retry,
		publisher:     publisher,
		eventChannel:  deps.EventChannel,
		orderingGuard: deps.OrderingGuard,
		metrics:       m,
		logger:        deps.Logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RegisterHandlers binds every event type the state machine understands.
func (s *SubscriptionStateMachine) RegisterHandlers(d *EventDispatcher) error {
	handlers := map[stripe.EventType]EventHandlerFunc{
		stripe.EventTypeCheckoutSessionCompleted:         s.handleCheckoutCompleted,
		stripe.EventTypeCustomerSubscriptionCreated:      s.handleSubscriptionSnapshot,
		stripe.EventTypeCustomerSubscriptionUpdated:      s.handleSubscriptionSnapshot,
		stripe.EventTypeCustomerSubscriptionDeleted:      s.handleSubscriptionDeleted,
		stripe.EventTypeCustomerSubscriptionTrialWillEnd: s.handleTrialWillEnd,
		stripe.EventTypeInvoicePaymentSucceeded:          s.handleInvoicePaymentSucceeded,
		stripe.EventTypeInvoicePaymentFailed:             s.handleInvoicePaymentFailed,
		stripe.EventTypePaymentIntentSucceeded:           s.handlePaymentIntent,
		stripe.EventTypePaymentIntentPaymentFailed:       s.handlePaymentIntent,
	}

	for eventType, handler := range handlers {
		if err := d.Register(eventType, handler); err != nil {
			return err
		}
	}
	return nil
}

// linkHints carries user attribution found outside the subscription object.
type linkHints struct {
	metadata          map[string]string
	clientReferenceID string
}

func (s *SubscriptionStateMachine) handleCheckoutCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := decodeObject(event, &session); err != nil {
		return err
	}

	if session.Mode != stripe.CheckoutSessionModeSubscription || session.Subscription == nil || session.Subscription.ID == "" {
		s.logger.Debug("Checkout session has no subscription",
			zap.String("event_id", event.ID),
			zap.String("session_id", session.ID),
			zap.String("mode", string(session.Mode)))
		return nil
	}

	// the session usually carries only the subscription id
	sub := session.Subscription
	if sub.Status == "" {
		fetched, err := s.fetchSubscription(ctx, sub.ID)
		if err != nil {
			return err
		}
		sub = fetched
	}
	raw := marshalSnapshot(sub)
	if sub.Customer == nil && session.Customer != nil {
		sub.Customer = session.Customer
	}

	applied, err := s.applySnapshot(ctx, event, sub, raw, linkHints{
		metadata:          session.Metadata,
		clientReferenceID: session.ClientReferenceID,
	})
	if err != nil {
		return err
	}
	if applied {
		s.notify(ctx, event, sub.ID)
	}
	return nil
}

func (s *SubscriptionStateMachine) handleSubscriptionSnapshot(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := decodeObject(event, &sub); err != nil {
		return err
	}

	applied, err := s.applySnapshot(ctx, event, &sub, event.Data.Raw, linkHints{})
	if err != nil {
		return err
	}
	if applied {
		s.notify(ctx, event, sub.ID)
	}
	return nil
}

// handleSubscriptionDeleted cancels regardless of prior status and of event
// ordering. A redelivery keeps the first cancellation time.
func (s *SubscriptionStateMachine) handleSubscriptionDeleted(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := decodeObject(event, &sub); err != nil {
		return err
	}

	changed, err := s.subscriptions.MarkCanceled(ctx, sub.ID, s.now(), eventTime(event), event.ID)
	if err != nil {
		return err
	}
	if changed {
		s.logger.Info("Subscription canceled",
			zap.String("event_id", event.ID),
			zap.String("subscription_id", sub.ID))
		s.notify(ctx, event, sub.ID)
		return nil
	}

	existing, err := s.subscriptions.GetByStripeID(ctx, sub.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		s.logger.Debug("Subscription already canceled",
			zap.String("event_id", event.ID),
			zap.String("subscription_id", sub.ID))
		return nil
	}

	// never stored locally: keep a canceled record when it can be attributed
	sub.Status = stripe.SubscriptionStatusCanceled
	sub.CancelAtPeriodEnd = true
	applied, err := s.applySnapshot(ctx, event, &sub, event.Data.Raw, linkHints{})
	if errors.Is(err, domainErrors.ErrCustomerLinkMissing) {
		s.logger.Warn("Deleted subscription is unknown and unattributed",
			zap.String("event_id", event.ID),
			zap.String("subscription_id", sub.ID))
		return nil
	}
	if err != nil {
		return err
	}
	if applied {
		s.notify(ctx, event, sub.ID)
	}
	return nil
}

func (s *SubscriptionStateMachine) handleTrialWillEnd(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := decodeObject(event, &sub); err != nil {
		return err
	}

	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("subscription_id", sub.ID),
	}
	if sub.TrialEnd > 0 {
		fields = append(fields, zap.Time("trial_end", time.Unix(sub.TrialEnd, 0).UTC()))
	}
	s.logger.Info("Subscription trial ending soon", fields...)
	return nil
}

func (s *SubscriptionStateMachine) handleInvoicePaymentSucceeded(ctx context.Context, event *stripe.Event) error {
	return s.applyInvoice(ctx, event, model.SubscriptionStatusActive)
}

func (s *SubscriptionStateMachine) handleInvoicePaymentFailed(ctx context.Context, event *stripe.Event) error {
	return s.applyInvoice(ctx, event, model.SubscriptionStatusPastDue)
}

func (s *SubscriptionStateMachine) applyInvoice(ctx context.Context, event *stripe.Event, target model.SubscriptionStatus) error {
	var inv stripe.Invoice
	if err := decodeObject(event, &inv); err != nil {
		return err
	}

	eventAt := eventTime(event)
	subID := invoiceSubscriptionID(&inv)

	if _, err := s.invoices.Upsert(ctx, buildInvoice(&inv, subID, eventAt)); err != nil {
		return err
	}

	if subID == "" {
		s.logger.Debug("Invoice is not tied to a subscription",
			zap.String("event_id", event.ID),
			zap.String("invoice_id", inv.ID))
		return nil
	}

	existing, err := s.subscriptions.GetByStripeID(ctx, subID)
	if err != nil {
		return err
	}
	if existing == nil {
		// invoice arrived before the subscription events
		fetched, err := s.fetchSubscription(ctx, subID)
		if err != nil {
			return err
		}
		if _, err := s.applySnapshot(ctx, event, fetched, marshalSnapshot(fetched), linkHints{metadata: inv.Metadata}); err != nil {
			return err
		}
	}

	update := domainRepo.StatusUpdate{
		StripeSubscriptionID: subID,
		Status:               target,
		EventAt:              eventAt,
		EventID:              event.ID,
	}
	if target == model.SubscriptionStatusActive {
		update.PeriodStart, update.PeriodEnd = invoicePeriod(&inv, subID)
	}

	updated, err := s.subscriptions.UpdateStatus(ctx, update, s.orderingGuard)
	if err != nil {
		return err
	}
	if !updated {
		s.skipped(ctx, event, subID)
		return nil
	}

	s.logger.Info("Subscription status updated from invoice",
		zap.String("event_id", event.ID),
		zap.String("subscription_id", subID),
		zap.String("invoice_id", inv.ID),
		zap.String("status", string(target)))
	s.notify(ctx, event, subID)
	return nil
}

// handlePaymentIntent records one-off charges keyed by lease metadata.
// Intents without a lease belong to subscription invoices and are ignored.
func (s *SubscriptionStateMachine) handlePaymentIntent(ctx context.Context, event *stripe.Event) error {
	var pi stripe.PaymentIntent
	if err := decodeObject(event, &pi); err != nil {
		return err
	}

	leaseRaw := pi.Metadata["lease_id"]
	if leaseRaw == "" {
		s.logger.Debug("Payment intent is not a lease payment",
			zap.String("event_id", event.ID),
			zap.String("payment_intent_id", pi.ID))
		return nil
	}

	leaseID, err := uuid.Parse(leaseRaw)
	if err != nil {
		return fmt.Errorf("%w: lease_id %q: %v", domainErrors.ErrMalformedEvent, leaseRaw, err)
	}

	payment := &model.Payment{
		ProviderPaymentIntentID: pi.ID,
		LeaseID:                 &leaseID,
		StripeCustomerID:        customerID(pi.Customer),
		PaymentType:             pi.Metadata["payment_type"],
		AmountCents:             pi.Amount,
		Amount:                  toMajorUnits(pi.Amount, pi.Currency),
		Currency:                string(pi.Currency),
		Metadata:                marshalSnapshot(pi.Metadata),
	}
	if payment.PaymentType == "" {
		payment.PaymentType = "rent"
	}
	if tenantRaw := pi.Metadata["tenant_id"]; tenantRaw != "" {
		tenantID, err := uuid.Parse(tenantRaw)
		if err != nil {
			return fmt.Errorf("%w: tenant_id %q: %v", domainErrors.ErrMalformedEvent, tenantRaw, err)
		}
		payment.TenantID = &tenantID
	}

	if event.Type == stripe.EventTypePaymentIntentSucceeded {
		paidAt := eventTime(event)
		payment.Status = model.PaymentStatusSucceeded
		payment.PaidAt = &paidAt
	} else {
		payment.Status = model.PaymentStatusFailed
		if pi.LastPaymentError != nil {
			if pi.LastPaymentError.Code != "" {
				code := string(pi.LastPaymentError.Code)
				payment.FailureCode = &code
			}
			if pi.LastPaymentError.Msg != "" {
				msg := Sanitize(pi.LastPaymentError.Msg)
				payment.FailureMessage = &msg
			}
		}
	}

	changed, err := s.payments.Upsert(ctx, payment)
	if err != nil {
		return err
	}

	s.logger.Info("Lease payment recorded",
		zap.String("event_id", event.ID),
		zap.String("payment_intent_id", pi.ID),
		zap.String("lease_id", leaseID.String()),
		zap.String("status", payment.Status),
		zap.Bool("changed", changed))
	return nil
}

// Reconcile overwrites the stored subscription with the provider's current
// snapshot, bypassing event ordering. A canceled row stays canceled.
func (s *SubscriptionStateMachine) Reconcile(ctx context.Context, subscriptionID string) (*model.Subscription, error) {
	fetched, err := s.fetchSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	status, err := normalizeStatus(fetched.Status)
	if err != nil {
		return nil, err
	}

	existing, err := s.subscriptions.GetByStripeID(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	var userID uuid.UUID
	if existing != nil {
		userID = existing.UserID
	} else if userID, err = s.resolveUser(ctx, fetched, linkHints{}); err != nil {
		return nil, err
	}

	now := s.now()
	row := buildSubscription(fetched, status, userID, reconcileStamp(existing, now), reconcileEventID, marshalSnapshot(fetched), now)
	applied, err := s.subscriptions.Upsert(ctx, row, false)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Subscription reconciled from provider",
		zap.String("subscription_id", subscriptionID),
		zap.String("provider_status", string(fetched.Status)),
		zap.Bool("applied", applied))

	if applied {
		s.publish(ctx, row, reconcileEventID, reconcileEventID)
	}
	return s.subscriptions.GetByStripeID(ctx, subscriptionID)
}

// applySnapshot upserts a provider subscription object. It returns false
// when the stored row is terminal or newer than the event.
func (s *SubscriptionStateMachine) applySnapshot(ctx context.Context, event *stripe.Event, sub *stripe.Subscription, raw []byte, hints linkHints) (bool, error) {
	if sub.ID == "" {
		return false, fmt.Errorf("%w: subscription without id", domainErrors.ErrMalformedEvent)
	}

	status, err := normalizeStatus(sub.Status)
	if err != nil {
		return false, err
	}

	existing, err := s.subscriptions.GetByStripeID(ctx, sub.ID)
	if err != nil {
		return false, err
	}

	var userID uuid.UUID
	if existing != nil {
		userID = existing.UserID
	} else if userID, err = s.resolveUser(ctx, sub, hints); err != nil {
		return false, err
	}

	row := buildSubscription(sub, status, userID, eventTime(event), event.ID, raw, s.now())
	applied, err := s.subscriptions.Upsert(ctx, row, s.orderingGuard)
	if err != nil {
		return false, err
	}
	if !applied {
		s.skipped(ctx, event, sub.ID)
		return false, nil
	}

	s.logger.Info("Subscription snapshot applied",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("subscription_id", sub.ID),
		zap.String("provider_status", string(sub.Status)),
		zap.String("status", string(status)))
	return true, nil
}

// resolveUser attributes a subscription to a user: subscription metadata,
// then checkout metadata, then the checkout client reference, then the
// customer mapping table.
func (s *SubscriptionStateMachine) resolveUser(ctx context.Context, sub *stripe.Subscription, hints linkHints) (uuid.UUID, error) {
	candidates := []struct {
		source string
		value  string
	}{
		{"subscription_metadata", sub.Metadata["user_id"]},
		{"checkout_metadata", hints.metadata["user_id"]},
		{"client_reference_id", hints.clientReferenceID},
	}
	for _, c := range candidates {
		if c.value == "" {
			continue
		}
		id, err := uuid.Parse(c.value)
		if err != nil {
			s.logger.Warn("Ignoring malformed user reference",
				zap.String("subscription_id", sub.ID),
				zap.String("source", c.source),
				zap.Error(err))
			continue
		}
		return id, nil
	}

	custID := customerID(sub.Customer)
	if custID != "" {
		mapping, err := s.customers.GetByProviderCustomerID(ctx, custID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to look up customer mapping: %w", err)
		}
		if mapping != nil {
			return mapping.UserID, nil
		}
	}

	return uuid.Nil, fmt.Errorf("%w: subscription=%s customer=%s", domainErrors.ErrCustomerLinkMissing, sub.ID, custID)
}

func (s *SubscriptionStateMachine) fetchSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	var sub *stripe.Subscription
	err := s.retry.Do(ctx, "subscriptions.get", func(ctx context.Context) error {
		var err error
		sub, err = s.provider.GetSubscription(ctx, subscriptionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// skipped logs why a write left the row untouched.
func (s *SubscriptionStateMachine) skipped(ctx context.Context, event *stripe.Event, subscriptionID string) {
	cause := domainErrors.ErrStaleEvent
	if current, err := s.subscriptions.GetByStripeID(ctx, subscriptionID); err == nil {
		switch {
		case current == nil:
			cause = domainErrors.ErrSubscriptionNotFound
		case current.Status.IsTerminal():
			cause = domainErrors.ErrSubscriptionTerminal
		}
	}
	if cause == domainErrors.ErrStaleEvent {
		s.metrics.StaleEvents.WithLabelValues(string(event.Type)).Inc()
	}

	s.logger.Info("Event left subscription unchanged",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("subscription_id", subscriptionID),
		zap.NamedError("reason", cause),
		zap.Time("event_created", eventTime(event)))
}

func (s *SubscriptionStateMachine) notify(ctx context.Context, event *stripe.Event, subscriptionID string) {
	current, err := s.subscriptions.GetByStripeID(ctx, subscriptionID)
	if err != nil || current == nil {
		return
	}
	s.publish(ctx, current, event.ID, string(event.Type))
}

func (s *SubscriptionStateMachine) publish(ctx context.Context, sub *model.Subscription, eventID, eventType string) {
	msg := messaging.Envelope{
		Type:      SubscriptionChangedType,
		Source:    messageSource,
		Timestamp: s.now(),
		Data: SubscriptionChanged{
			StripeSubscriptionID: sub.StripeSubscriptionID,
			UserID:               sub.UserID.String(),
			Status:               sub.Status,
			CurrentPeriodEnd:     sub.CurrentPeriodEnd,
			EventID:              eventID,
			EventType:            eventType,
		},
	}
	if err := s.publisher.Publish(ctx, s.eventChannel, msg); err != nil {
		s.logger.Warn("Failed to publish subscription change",
			zap.String("subscription_id", sub.StripeSubscriptionID),
			zap.Error(err))
	}
}

// normalizeStatus folds provider statuses into the five stored states.
func normalizeStatus(status stripe.SubscriptionStatus) (model.SubscriptionStatus, error) {
	switch status {
	case stripe.SubscriptionStatusTrialing:
		return model.SubscriptionStatusTrialing, nil
	case stripe.SubscriptionStatusActive:
		return model.SubscriptionStatusActive, nil
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusIncomplete:
		return model.SubscriptionStatusPastDue, nil
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return model.SubscriptionStatusCanceled, nil
	case stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusPaused:
		return model.SubscriptionStatusUnpaid, nil
	default:
		return "", fmt.Errorf("%w: unknown subscription status %q", domainErrors.ErrMalformedEvent, status)
	}
}

// reconcileStamp keeps the ordering mark at or behind provider time. Event
// timestamps have whole-second resolution, so a stamp taken from the local
// clock would shadow events created in the same second.
func reconcileStamp(existing *model.Subscription, now time.Time) time.Time {
	stamp := now.Truncate(time.Second).Add(-time.Second)
	if existing != nil && existing.LastEventAt != nil && existing.LastEventAt.After(stamp) {
		return *existing.LastEventAt
	}
	return stamp
}

func buildSubscription(sub *stripe.Subscription, status model.SubscriptionStatus, userID uuid.UUID, eventAt time.Time, eventID string, raw []byte, now time.Time) *model.Subscription {
	row := &model.Subscription{
		UserID:               userID,
		StripeSubscriptionID: sub.ID,
		StripeCustomerID:     customerID(sub.Customer),
		Status:               status,
		CurrentPeriodStart:   unixPtr(sub.CurrentPeriodStart),
		CurrentPeriodEnd:     unixPtr(sub.CurrentPeriodEnd),
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
		LastEventAt:          &eventAt,
		LastEventID:          eventID,
		ProviderSnapshot:     datatypes.JSON(raw),
	}

	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		row.PlanID = price.ID
		if price.Recurring != nil {
			row.BillingPeriod = string(price.Recurring.Interval)
		}
	}

	if status == model.SubscriptionStatusCanceled {
		cancelledAt := now
		row.CancelledAt = &cancelledAt
	}
	return row
}

func buildInvoice(inv *stripe.Invoice, subscriptionID string, eventAt time.Time) *model.Invoice {
	row := &model.Invoice{
		StripeInvoiceID:  inv.ID,
		StripeCustomerID: customerID(inv.Customer),
		Status:           string(inv.Status),
		Currency:         string(inv.Currency),
		AmountDueCents:   inv.AmountDue,
		AmountPaidCents:  inv.AmountPaid,
		AmountPaid:       toMajorUnits(inv.AmountPaid, inv.Currency),
		AttemptCount:     inv.AttemptCount,
		PeriodStart:      unixPtr(inv.PeriodStart),
		PeriodEnd:        unixPtr(inv.PeriodEnd),
		HostedInvoiceURL: inv.HostedInvoiceURL,
		LastEventAt:      &eventAt,
	}
	if subscriptionID != "" {
		row.StripeSubscriptionID = &subscriptionID
	}
	if inv.StatusTransitions != nil {
		row.PaidAt = unixPtr(inv.StatusTransitions.PaidAt)
	}
	return row
}

func invoiceSubscriptionID(inv *stripe.Invoice) string {
	if inv.Subscription != nil {
		return inv.Subscription.ID
	}
	return ""
}

// invoicePeriod prefers the subscription line item period, which is the
// period the payment covers, and falls back to the invoice's own fields.
func invoicePeriod(inv *stripe.Invoice, subscriptionID string) (*time.Time, *time.Time) {
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line == nil || line.Period == nil || line.Type != stripe.InvoiceLineItemTypeSubscription {
				continue
			}
			if line.Subscription != nil && line.Subscription.ID != "" && line.Subscription.ID != subscriptionID {
				continue
			}
			return unixPtr(line.Period.Start), unixPtr(line.Period.End)
		}
	}
	return unixPtr(inv.PeriodStart), unixPtr(inv.PeriodEnd)
}

var zeroDecimalCurrencies = map[stripe.Currency]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true, "krw": true, "mga": true,
	"pyg": true, "rwf": true, "ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// toMajorUnits converts a provider minor-unit amount to a decimal amount.
func toMajorUnits(amount int64, currency stripe.Currency) decimal.Decimal {
	if zeroDecimalCurrencies[currency] {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}

func decodeObject(event *stripe.Event, v interface{}) error {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return fmt.Errorf("%w: %s has no data object", domainErrors.ErrMalformedEvent, event.Type)
	}
	if err := json.Unmarshal(event.Data.Raw, v); err != nil {
		return fmt.Errorf("%w: %s: %v", domainErrors.ErrMalformedEvent, event.Type, err)
	}
	return nil
}

// eventTime is the provider creation time of the event, used for ordering.
func eventTime(event *stripe.Event) time.Time {
	if event.Created > 0 {
		return time.Unix(event.Created, 0).UTC()
	}
	return time.Now().UTC()
}

func customerID(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func marshalSnapshot(v interface{}) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
