package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	domainErrors "github.com/hudsor01/tenant-flow-sub011/internal/domain/errors"
	"github.com/hudsor01/tenant-flow-sub011/internal/domain/provider"
	domainRepo "github.com/hudsor01/tenant-flow-sub011/internal/domain/repository"
	"github.com/hudsor01/tenant-flow-sub011/internal/infrastructure/metrics"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

// Outcome is the terminal result of one delivery.
type Outcome string

const (
	OutcomeProcessed      Outcome = "processed"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeInFlight       Outcome = "in_flight"
	OutcomeAuthFailure    Outcome = "auth_failure"
	OutcomeBadRequest     Outcome = "bad_request"
	OutcomeHandlerFailure Outcome = "handler_failure"
)

// HTTPStatus maps an outcome to the response the provider sees. Only a
// non-2xx answer makes the provider redeliver.
func (o Outcome) HTTPStatus() int {
	switch o {
	case OutcomeProcessed, OutcomeDuplicate:
		return http.StatusOK
	case OutcomeInFlight:
		return http.StatusConflict
	case OutcomeAuthFailure, OutcomeBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Result is returned by Process and Replay instead of an error.
type Result struct {
	Outcome   Outcome
	EventID   string
	EventType string
	Err       error
}

const bookkeepingTimeout = 5 * time.Second

// ProcessorDeps wires the webhook processor.
type ProcessorDeps struct {
	Verifier          provider.EventVerifier
	Ledger            *IdempotencyLedger
	Dispatcher        *EventDispatcher
	Reporter          *ErrorReporter
	Metrics           *metrics.Metrics
	ProcessingTimeout time.Duration
	Logger            *zap.Logger
}

// WebhookProcessor runs one delivery through verify, admit, dispatch and record.
type WebhookProcessor struct {
	verifier   provider.EventVerifier
	ledger     *IdempotencyLedger
	dispatcher *EventDispatcher
	reporter   *ErrorReporter
	metrics    *metrics.Metrics
	timeout    time.Duration
	logger     *zap.Logger
}

// NewWebhookProcessor creates a webhook processor
func NewWebhookProcessor(deps ProcessorDeps) *WebhookProcessor {
	m := deps.Metrics
	if m == nil {
		m = metrics.NewNop()
	}
	timeout := deps.ProcessingTimeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}

	return &WebhookProcessor{
		verifier:   deps.Verifier,
		ledger:     deps.Ledger,
		dispatcher: deps.Dispatcher,
		reporter:   deps.Reporter,
		metrics:    m,
		timeout:    timeout,
		logger:     deps.Logger,
	}
}

// Process authenticates payload and applies it at most once.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, signatureHeader string) Result {
	event, err := p.verifier.Verify(payload, signatureHeader)
	if err != nil {
		outcome := OutcomeAuthFailure
		var sigErr *domainErrors.SignatureError
		if errors.As(err, &sigErr) && sigErr.Reason == domainErrors.SignatureInvalidPayload {
			outcome = OutcomeBadRequest
		}
		return p.finish(Result{Outcome: outcome, Err: err}, 0)
	}

	if event.ID == "" || event.Type == "" {
		return p.finish(Result{
			Outcome: OutcomeBadRequest,
			Err:     fmt.Errorf("%w: event without id or type", domainErrors.ErrMalformedEvent),
		}, 0)
	}

	p.logger.Info("Webhook event received",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Time("created", time.Unix(event.Created, 0).UTC()),
		zap.Bool("livemode", event.Livemode))

	admitted, err := p.ledger.Admit(ctx, event, payload)
	if err != nil {
		p.logger.Error("Failed to admit webhook event",
			zap.String("event_id", event.ID),
			zap.Error(err))
		return p.finish(Result{
			Outcome:   OutcomeHandlerFailure,
			EventID:   event.ID,
			EventType: string(event.Type),
			Err:       err,
		}, 0)
	}

	switch admitted.Status {
	case domainRepo.AdmitDuplicate:
		p.logger.Info("Duplicate webhook event acknowledged", zap.String("event_id", event.ID))
		return p.finish(Result{Outcome: OutcomeDuplicate, EventID: event.ID, EventType: string(event.Type)}, 0)
	case domainRepo.AdmitInFlight:
		p.logger.Info("Webhook event is being processed by another delivery", zap.String("event_id", event.ID))
		return p.finish(Result{Outcome: OutcomeInFlight, EventID: event.ID, EventType: string(event.Type)}, 0)
	}

	return p.execute(ctx, event, admitted.Event.RetryCount+1)
}

// Replay re-dispatches a stored, unprocessed event. The stored payload was
// verified when it was first received.
func (p *WebhookProcessor) Replay(ctx context.Context, eventID string) Result {
	row, err := p.ledger.Get(ctx, eventID)
	if err != nil {
		return Result{Outcome: OutcomeHandlerFailure, EventID: eventID, Err: err}
	}
	if row == nil {
		return Result{Outcome: OutcomeBadRequest, EventID: eventID, Err: domainErrors.ErrEventNotFound}
	}
	if row.Processed {
		return Result{Outcome: OutcomeDuplicate, EventID: eventID, EventType: row.EventType, Err: domainErrors.ErrEventAlreadyProcessed}
	}

	claimed, err := p.ledger.Claim(ctx, eventID)
	if err != nil {
		return Result{Outcome: OutcomeHandlerFailure, EventID: eventID, EventType: row.EventType, Err: err}
	}
	if !claimed {
		return Result{Outcome: OutcomeInFlight, EventID: eventID, EventType: row.EventType}
	}

	var event stripe.Event
	if err := json.Unmarshal(row.Payload, &event); err != nil {
		err = fmt.Errorf("%w: stored payload: %v", domainErrors.ErrMalformedEvent, err)
		if recErr := p.ledger.Record(context.WithoutCancel(ctx), eventID, 0, err); recErr != nil {
			p.logger.Error("Failed to release replay claim", zap.String("event_id", eventID), zap.Error(recErr))
		}
		return Result{Outcome: OutcomeBadRequest, EventID: eventID, EventType: row.EventType, Err: err}
	}

	p.logger.Info("Replaying webhook event",
		zap.String("event_id", eventID),
		zap.String("event_type", row.EventType),
		zap.Int("previous_attempts", row.RetryCount+1))

	// the claim above bumped the stored retry count
	return p.execute(ctx, &event, row.RetryCount+2)
}

func (p *WebhookProcessor) execute(ctx context.Context, event *stripe.Event, attempt int) Result {
	result := Result{EventID: event.ID, EventType: string(event.Type)}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	started := time.Now()
	err := p.dispatcher.Dispatch(runCtx, event)
	took := time.Since(started)
	cancel()

	// outcomes are recorded even if the caller has gone away
	bookCtx, cancelBook := context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
	defer cancelBook()

	if err != nil {
		if recErr := p.ledger.Record(bookCtx, event.ID, took, err); recErr != nil {
			p.logger.Error("Failed to record webhook failure",
				zap.String("event_id", event.ID),
				zap.Error(recErr))
		}
		if repErr := p.reporter.Report(bookCtx, FailureReport{
			EventID:   event.ID,
			EventType: string(event.Type),
			Attempt:   attempt,
			Err:       err,
		}); repErr != nil {
			p.logger.Error("Failed to report webhook failure",
				zap.String("event_id", event.ID),
				zap.Error(repErr))
		}

		result.Outcome = OutcomeHandlerFailure
		result.Err = err
		return p.finish(result, took)
	}

	if err := p.ledger.Record(bookCtx, event.ID, took, nil); err != nil {
		p.logger.Error("Failed to mark webhook event processed",
			zap.String("event_id", event.ID),
			zap.Error(err))
		result.Outcome = OutcomeHandlerFailure
		result.Err = err
		return p.finish(result, took)
	}

	if attempt > 1 {
		if err := p.reporter.Resolve(bookCtx, event.ID); err != nil {
			p.logger.Warn("Failed to resolve webhook failure",
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}

	p.logger.Info("Webhook event processed",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Int("attempt", attempt),
		zap.Duration("took", took))

	result.Outcome = OutcomeProcessed
	return p.finish(result, took)
}

func (p *WebhookProcessor) finish(result Result, took time.Duration) Result {
	p.metrics.ObserveWebhook(string(result.Outcome), result.EventType, took)
	return result
}
