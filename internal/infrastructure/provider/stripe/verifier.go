package stripe

import (
	"errors"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/hudsor01/tenant-flow-sub011/internal/domain/errors"
	"github.com/hudsor01/tenant-flow-sub011/internal/domain/provider"
	pkglogger "github.com/hudsor01/tenant-flow-sub011/pkg/logger"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
)

// Verifier authenticates webhook deliveries with the endpoint signing secret.
type Verifier struct {
	secret    string
	tolerance time.Duration
	logger    *zap.Logger
}

var _ provider.EventVerifier = (*Verifier)(nil)

// NewVerifier creates a verifier. A non-positive tolerance falls back to the
// provider default of five minutes.
func NewVerifier(secret string, tolerance time.Duration, logger *zap.Logger) *Verifier {
	if tolerance <= 0 {
		tolerance = webhook.DefaultTolerance
	}

	logger.Info("Webhook signature verifier configured",
		zap.String("secret", pkglogger.MaskSecret(secret)),
		zap.Duration("tolerance", tolerance))

	return &Verifier{
		secret:    secret,
		tolerance: tolerance,
		logger:    logger,
	}
}

// Verify checks the signature header against the exact payload bytes and only
// then decodes the event. Every failure is a *SignatureError.
func (v *Verifier) Verify(payload []byte, signatureHeader string) (*stripe.Event, error) {
	if strings.TrimSpace(signatureHeader) == "" {
		return nil, &domainErrors.SignatureError{Reason: domainErrors.SignatureMissingHeader}
	}
	if v.secret == "" {
		return nil, &domainErrors.SignatureError{Reason: domainErrors.SignatureSecretUnconfigured}
	}

	// the library only bounds the past side of the window
	if ts, ok := headerTimestamp(signatureHeader); ok && ts.Sub(time.Now()) > v.tolerance {
		return nil, &domainErrors.SignatureError{Reason: domainErrors.SignatureOutsideTolerance}
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.secret, webhook.ConstructEventOptions{
		Tolerance:                v.tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		sigErr := &domainErrors.SignatureError{Reason: signatureReason(err), Err: err}
		v.logger.Warn("Webhook signature verification failed",
			zap.String("reason", string(sigErr.Reason)),
			zap.Int("payload_bytes", len(payload)))
		return nil, sigErr
	}

	return &event, nil
}

func signatureReason(err error) domainErrors.SignatureReason {
	switch {
	case errors.Is(err, webhook.ErrNotSigned):
		return domainErrors.SignatureMissingHeader
	case errors.Is(err, webhook.ErrInvalidHeader):
		return domainErrors.SignatureMalformedHeader
	case errors.Is(err, webhook.ErrTooOld):
		return domainErrors.SignatureOutsideTolerance
	case errors.Is(err, webhook.ErrNoValidSignature):
		return domainErrors.SignatureNoMatch
	default:
		return domainErrors.SignatureInvalidPayload
	}
}

func headerTimestamp(header string) (time.Time, bool) {
	for _, pair := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(pair), "=")
		if !found || key != "t" {
			continue
		}
		unix, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(unix, 0), true
	}
	return time.Time{}, false
}
