package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hudsor01/tenant-flow-sub011/internal/config"
	domainErrors "github.com/hudsor01/tenant-flow-sub011/internal/domain/errors"
	"github.com/hudsor01/tenant-flow-sub011/internal/infrastructure/metrics"
	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"
)

// RetryController wraps outbound provider calls made while an event is being
// handled. Permanent failures surface on the first attempt; transient ones
// are retried with full-jitter exponential backoff inside the caller's deadline.
type RetryController struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	multiplier  float64
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewRetryController creates a retry controller
func NewRetryController(cfg config.RetryConfig, m *metrics.Metrics, logger *zap.Logger) *RetryController {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if m == nil {
		m = metrics.NewNop()
	}

	return &RetryController{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		multiplier:  cfg.Multiplier,
		metrics:     m,
		logger:      logger,
	}
}

// Do runs fn until it succeeds, fails permanently, runs out of attempts or
// the context is done. Any failure is returned as a *ProviderError.
func (r *RetryController) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := 0
	var last error

	operation := func() error {
		attempts++
		r.metrics.ProviderAttempts.WithLabelValues(op).Inc()

		err := fn(ctx)
		if err == nil {
			return nil
		}
		last = err

		if ctx.Err() != nil || Classify(err) == domainErrors.ClassPermanent {
			return backoff.Permanent(err)
		}
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(r.newBackOff(ctx), uint64(r.maxAttempts-1)),
		ctx,
	)

	notify := func(err error, next time.Duration) {
		r.logger.Warn("Provider call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempts),
			zap.Duration("backoff", next),
			zap.Error(err))
	}

	err := backoff.RetryNotify(operation, policy, notify)
	if err == nil {
		return nil
	}
	if last == nil {
		last = err
	}

	class := Classify(last)
	r.metrics.ProviderFailures.WithLabelValues(op, string(class)).Inc()

	return newProviderError(op, class, attempts, last)
}

func (r *RetryController) newBackOff(ctx context.Context) *fullJitterBackOff {
	b := &fullJitterBackOff{
		base:       r.baseDelay,
		max:        r.maxDelay,
		multiplier: r.multiplier,
		random:     rand.Float64,
	}
	if deadline, ok := ctx.Deadline(); ok {
		b.deadline = deadline
	}
	return b
}

// fullJitterBackOff draws each delay uniformly from [0, min(max, base*multiplier^n)).
// It stops early when the next sleep would outlive the deadline.
type fullJitterBackOff struct {
	base       time.Duration
	max        time.Duration
	multiplier float64
	attempt    int
	deadline   time.Time
	random     func() float64
}

func (b *fullJitterBackOff) NextBackOff() time.Duration {
	ceiling := float64(b.base) * math.Pow(b.multiplier, float64(b.attempt))
	if ceiling > float64(b.max) {
		ceiling = float64(b.max)
	}
	b.attempt++

	delay := time.Duration(b.random() * ceiling)
	if !b.deadline.IsZero() && time.Until(b.deadline) <= delay {
		return backoff.Stop
	}
	return delay
}

func (b *fullJitterBackOff) Reset() {
	b.attempt = 0
}

// Classify decides whether a failed provider call may succeed when retried.
// Unrecognised failures, network errors included, are transient.
func Classify(err error) domainErrors.ErrorClass {
	if err == nil {
		return ""
	}

	var pe *domainErrors.ProviderError
	if errors.As(err, &pe) && pe.Class != "" {
		return pe.Class
	}

	switch {
	case errors.Is(err, context.Canceled):
		return domainErrors.ClassPermanent
	case errors.Is(err, context.DeadlineExceeded):
		return domainErrors.ClassTransient
	}

	var se *stripe.Error
	if errors.As(err, &se) {
		return classifyStripeError(se)
	}

	return domainErrors.ClassTransient
}

func classifyStripeError(se *stripe.Error) domainErrors.ErrorClass {
	switch {
	case se.HTTPStatusCode == http.StatusTooManyRequests,
		se.Code == stripe.ErrorCodeRateLimit,
		se.Code == stripe.ErrorCodeLockTimeout:
		return domainErrors.ClassTransient
	case se.Type == stripe.ErrorTypeCard,
		se.Type == stripe.ErrorTypeInvalidRequest,
		se.Type == stripe.ErrorTypeIdempotency:
		return domainErrors.ClassPermanent
	case se.Type == stripe.ErrorTypeAPI, se.HTTPStatusCode >= http.StatusInternalServerError:
		return domainErrors.ClassTransient
	case se.HTTPStatusCode >= http.StatusBadRequest:
		return domainErrors.ClassPermanent
	}
	return domainErrors.ClassTransient
}

func newProviderError(op string, class domainErrors.ErrorClass, attempts int, err error) *domainErrors.ProviderError {
	pe := &domainErrors.ProviderError{
		Op:       op,
		Class:    class,
		Attempts: attempts,
		Err:      err,
	}

	var se *stripe.Error
	if errors.As(err, &se) {
		pe.Code = string(se.Code)
		pe.RequestID = se.RequestID
		pe.HTTPStatus = se.HTTPStatusCode
	}
	return pe
}
