package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrSubscriptionNotFound indicates that no local row exists for a provider subscription id
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// ErrCustomerLinkMissing indicates that a subscription cannot be attributed to a user
	ErrCustomerLinkMissing = errors.New("no user linked to provider customer")

	// ErrEventNotFound indicates that the ledger has no row for an event id
	ErrEventNotFound = errors.New("webhook event not found")

	// ErrEventAlreadyProcessed is returned when replaying an event that already succeeded
	ErrEventAlreadyProcessed = errors.New("webhook event already processed")

	// ErrHandlerAlreadyRegistered is returned by the dispatcher on duplicate registration
	ErrHandlerAlreadyRegistered = errors.New("handler already registered for event type")

	// ErrStaleEvent means an event is older than the state already stored
	ErrStaleEvent = errors.New("event older than stored state")

	// ErrSubscriptionTerminal means the stored subscription is canceled and accepts no transition
	ErrSubscriptionTerminal = errors.New("subscription is in a terminal state")

	// ErrMalformedEvent means a verified event carries an object that cannot be applied
	ErrMalformedEvent = errors.New("malformed event object")
)

// BodyReadError means the request body could not be obtained byte-exact.
type BodyReadError struct {
	Err error
}

func (e *BodyReadError) Error() string {
	if e.Err == nil {
		return "failed to read request body"
	}
	return fmt.Sprintf("failed to read request body: %v", e.Err)
}

func (e *BodyReadError) Unwrap() error { return e.Err }

// SignatureReason narrows down why an inbound event was rejected.
type SignatureReason string

const (
	SignatureMissingHeader      SignatureReason = "missing_header"
	SignatureSecretUnconfigured SignatureReason = "secret_unconfigured"
	SignatureMalformedHeader    SignatureReason = "malformed_header"
	SignatureNoMatch            SignatureReason = "no_valid_signature"
	SignatureOutsideTolerance   SignatureReason = "timestamp_out_of_tolerance"
	SignatureInvalidPayload     SignatureReason = "invalid_payload"
)

// SignatureError is an authenticity failure. It is never retried.
type SignatureError struct {
	Reason SignatureReason
	Err    error
}

func (e *SignatureError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("webhook signature rejected: %s", e.Reason)
	}
	return fmt.Sprintf("webhook signature rejected: %s: %v", e.Reason, e.Err)
}

func (e *SignatureError) Unwrap() error { return e.Err }

// ErrorClass tells the retry controller whether an outbound failure may succeed on retry.
type ErrorClass string

const (
	ClassPermanent ErrorClass = "permanent"
	ClassTransient ErrorClass = "transient"
)

// ProviderError wraps a failed call to the billing provider.
type ProviderError struct {
	Op         string
	Class      ErrorClass
	Code       string
	RequestID  string
	HTTPStatus int
	Attempts   int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider call %s failed (%s", e.Op, e.Class)
	if e.HTTPStatus != 0 {
		msg += fmt.Sprintf(", status=%d", e.HTTPStatus)
	}
	if e.Code != "" {
		msg += ", code=" + e.Code
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(", attempts=%d", e.Attempts)
	}
	msg += ")"
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsPermanent reports whether err carries a permanent provider classification.
func IsPermanent(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Class == ClassPermanent
}

// HandlerError is a failure raised while applying an event's side effects.
type HandlerError struct {
	EventID   string
	EventType string
	Err       error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler for %s (%s) failed: %v", e.EventType, e.EventID, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
