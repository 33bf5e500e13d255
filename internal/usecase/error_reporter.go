package usecase

import (
	"context"
	"errors"
	"regexp"
	"time"

	domainErrors "github.com/hudsor01/tenant-flow-sub011/internal/domain/errors"
	"github.com/hudsor01/tenant-flow-sub011/internal/domain/model"
	domainRepo "github.com/hudsor01/tenant-flow-sub011/internal/domain/repository"
	"github.com/hudsor01/tenant-flow-sub011/internal/infrastructure/metrics"
	"github.com/hudsor01/tenant-flow-sub011/pkg/messaging"
	"go.uber.org/zap"
)

const (
	// WebhookFailedType is the envelope type of failure alerts
	WebhookFailedType = "webhook.failed"

	maxErrorMessageLength = 1000
)

var redactions = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`\b(?:sk|rk|pk)_(?:live|test)_[0-9A-Za-z]+`), "[redacted_key]"},
	{regexp.MustCompile(`\bwhsec_[0-9A-Za-z]+`), "[redacted_secret]"},
	{regexp.MustCompile(`(?i)\bbearer\s+[0-9A-Za-z._\-]+`), "Bearer [redacted]"},
	{regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`), "[redacted_pan]"},
}

// Sanitize strips credentials and card numbers from text bound for storage or alerts.
func Sanitize(msg string) string {
	for _, r := range redactions {
		msg = r.pattern.ReplaceAllString(msg, r.replacement)
	}
	return msg
}

func truncate(msg string, limit int) string {
	runes := []rune(msg)
	if len(runes) <= limit {
		return msg
	}
	return string(runes[:limit-3]) + "..."
}

// FailureReport describes one failed attempt at handling an event.
type FailureReport struct {
	EventID   string
	EventType string
	Attempt   int
	Err       error
}

// ErrorReporter persists handler failures for manual review and raises an alert.
type ErrorReporter struct {
	failed       domainRepo.FailedWebhookEventRepository
	publisher    messaging.Publisher
	alertChannel string
	metrics      *metrics.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewErrorReporter creates an error reporter. A nil publisher disables alerts.
func NewErrorReporter(failed domainRepo.FailedWebhookEventRepository, publisher messaging.Publisher, alertChannel string, m *metrics.Metrics, logger *zap.Logger) *ErrorReporter {
	if publisher == nil {
		publisher = messaging.NewNoopPublisher()
	}
	if m == nil {
		m = metrics.NewNop()
	}

	return &ErrorReporter{
		failed:       failed,
		publisher:    publisher,
		alertChannel: alertChannel,
		metrics:      m,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Report upserts the failed event row, logs the full context and publishes an alert.
func (r *ErrorReporter) Report(ctx context.Context, report FailureReport) error {
	now := r.now()
	class := classifyFailure(report.Err)

	attempt := report.Attempt
	if attempt < 1 {
		attempt = 1
	}

	record := &model.FailedWebhookEvent{
		StripeEventID: report.EventID,
		EventType:     report.EventType,
		ErrorClass:    string(class),
		ErrorMessage:  truncate(Sanitize(report.Err.Error()), maxErrorMessageLength),
		AttemptCount:  attempt,
		FirstFailedAt: now,
		LastFailedAt:  now,
	}

	fields := []zap.Field{
		zap.String("event_id", report.EventID),
		zap.String("event_type", report.EventType),
		zap.String("error_class", string(class)),
		zap.Int("attempt", attempt),
		zap.String("error", record.ErrorMessage),
	}

	var pe *domainErrors.ProviderError
	if errors.As(report.Err, &pe) {
		if pe.RequestID != "" {
			record.ProviderRequestID = &pe.RequestID
			fields = append(fields, zap.String("provider_request_id", pe.RequestID))
		}
		if pe.Code != "" {
			record.ErrorCode = &pe.Code
			fields = append(fields, zap.String("provider_code", pe.Code))
		}
		fields = append(fields, zap.Int("provider_attempts", pe.Attempts))
	}

	r.logger.Error("Webhook handler failed", fields...)

	if err := r.failed.Record(ctx, record); err != nil {
		return err
	}
	r.metrics.FailedEventAlerts.Inc()

	alert := messaging.Envelope{
		Type:      WebhookFailedType,
		Source:    messageSource,
		Timestamp: now,
		Data:      record,
	}
	if err := r.publisher.Publish(ctx, r.alertChannel, alert); err != nil {
		r.logger.Warn("Failed to publish webhook failure alert",
			zap.String("event_id", report.EventID),
			zap.Error(err))
	}
	return nil
}

// Resolve closes an open failure after a later attempt succeeded.
func (r *ErrorReporter) Resolve(ctx context.Context, eventID string) error {
	resolved, err := r.failed.Resolve(ctx, eventID, r.now())
	if err != nil {
		return err
	}
	if resolved {
		r.logger.Info("Webhook failure resolved", zap.String("event_id", eventID))
	}
	return nil
}

// classifyFailure decides whether redelivery can help. Data problems in the
// event itself never improve on retry.
func classifyFailure(err error) domainErrors.ErrorClass {
	var pe *domainErrors.ProviderError
	switch {
	case errors.As(err, &pe):
		return pe.Class
	case errors.Is(err, domainErrors.ErrCustomerLinkMissing),
		errors.Is(err, domainErrors.ErrMalformedEvent):
		return domainErrors.ClassPermanent
	default:
		return domainErrors.ClassTransient
	}
}
