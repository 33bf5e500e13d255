package provider

import (
	"context"

	"github.com/stripe/stripe-go/v79"
)

// BillingProvider is the outbound surface of the billing provider used while
// handling events. Implementations return the provider's own error values so
// the retry controller can classify them.
type BillingProvider interface {
	// GetSubscription retrieves the authoritative subscription snapshot
	GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error)
}

// EventVerifier authenticates a raw delivery and returns the parsed event.
type EventVerifier interface {
	Verify(payload []byte, signatureHeader string) (*stripe.Event, error)
}
