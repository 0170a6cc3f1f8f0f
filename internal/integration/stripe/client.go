package stripe

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// Client wraps the Stripe SDK with the calls the reconciler needs.
type Client struct {
	api *client.API
	log *logger.Logger
}

// NewClient creates a Stripe client bound to the given secret API key.
func NewClient(apiKey string, log *logger.Logger) *Client {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &Client{api: api, log: log}
}

// GetCustomerEmail fetches the email on file for a Stripe customer. Used by
// the reconciler's link-repair step when a webhook names an unknown
// customer id.
func (c *Client) GetCustomerEmail(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cus, err := c.api.Customers.Get(customerID, params)
	if err != nil {
		c.log.Errorw("Failed to fetch Stripe customer", "customerID", customerID, "error", err)
		return "", fmt.Errorf("stripe: failed to fetch customer %s: %w", customerID, err)
	}
	if cus.Deleted {
		return "", fmt.Errorf("stripe: customer %s is deleted", customerID)
	}
	return cus.Email, nil
}
