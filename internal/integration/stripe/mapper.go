package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v78"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
)

// MapEvent translates a verified Stripe event into domain billing terms.
// Event types outside the reconciler's switch map through with a nil payload
// so the service can log and ignore them.
func MapEvent(event stripe.Event) (domain.BillingEvent, error) {
	mapped := domain.BillingEvent{
		ID:   event.ID,
		Type: domain.BillingEventType(event.Type),
	}

	switch mapped.Type {
	case domain.BillingSubscriptionCreated, domain.BillingSubscriptionUpdated, domain.BillingSubscriptionDeleted:
		sub, err := mapSubscription(event.Data.Raw)
		if err != nil {
			return domain.BillingEvent{}, err
		}
		mapped.Subscription = sub
	case domain.BillingInvoicePaid, domain.BillingInvoiceFailed:
		invoice, err := mapInvoice(event.Data.Raw)
		if err != nil {
			return domain.BillingEvent{}, err
		}
		mapped.Invoice = invoice
	}

	return mapped, nil
}

func mapSubscription(raw json.RawMessage) (*domain.BillingSubscription, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, fmt.Errorf("failed to parse subscription payload: %w", err)
	}

	mapped := &domain.BillingSubscription{
		ID:     sub.ID,
		Status: string(sub.Status),
	}
	if sub.Customer != nil {
		mapped.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		mapped.PriceID = sub.Items.Data[0].Price.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		mapped.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	return mapped, nil
}

func mapInvoice(raw json.RawMessage) (*domain.BillingInvoice, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(raw, &invoice); err != nil {
		return nil, fmt.Errorf("failed to parse invoice payload: %w", err)
	}

	mapped := &domain.BillingInvoice{
		ID: invoice.ID,
	}
	if invoice.Customer != nil {
		mapped.CustomerID = invoice.Customer.ID
	}
	if invoice.Subscription != nil {
		mapped.SubscriptionID = invoice.Subscription.ID
	}
	if invoice.Lines != nil {
		for _, line := range invoice.Lines.Data {
			if line.Price != nil && line.Price.ID != "" {
				mapped.PriceID = line.Price.ID
				break
			}
		}
	}
	return mapped, nil
}
