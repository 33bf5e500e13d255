package stripe

import (
	"context"
	"net/http"
	"time"

	"github.com/hudsor01/tenant-flow-sub011/internal/domain/provider"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"
)

// Client is the process-wide provider API client. It is built once at
// startup and shared by reference.
type Client struct {
	api    *client.API
	logger *zap.Logger
}

var _ provider.BillingProvider = (*Client)(nil)

// NewClient creates a provider client. The library's own network retries are
// disabled so that the retry controller is the single place attempts are counted.
func NewClient(secretKey string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	backends := stripe.NewBackendsWithConfig(&stripe.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		LeveledLogger:     logger.Named("stripe").Sugar(),
		MaxNetworkRetries: stripe.Int64(0),
	})

	return &Client{
		api:    client.New(secretKey, backends),
		logger: logger,
	}
}

// GetSubscription retrieves a subscription with its items and prices.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	}

	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		c.logger.Debug("Subscription retrieve failed",
			zap.String("subscription_id", subscriptionID),
			zap.Error(err))
		return nil, err
	}

	return sub, nil
}
