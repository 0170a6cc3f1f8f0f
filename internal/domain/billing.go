package domain

import "time"

// BillingEventType enumerates the payment-processor events the reconciler
// understands. Anything else is a logged no-op.
type BillingEventType string

const (
	BillingSubscriptionCreated BillingEventType = "customer.subscription.created"
	BillingSubscriptionUpdated BillingEventType = "customer.subscription.updated"
	BillingSubscriptionDeleted BillingEventType = "customer.subscription.deleted"
	BillingInvoicePaid         BillingEventType = "invoice.payment_succeeded"
	BillingInvoiceFailed       BillingEventType = "invoice.payment_failed"
)

// BillingSubscription is the subset of the processor's subscription object
// the reconciler needs.
type BillingSubscription struct {
	ID               string
	CustomerID       string
	PriceID          string
	Status           string
	CurrentPeriodEnd time.Time
}

// BillingInvoice is the subset of the processor's invoice object the
// reconciler needs.
type BillingInvoice struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	PriceID        string
}

// BillingEvent is a processor webhook event mapped into domain terms.
// Exactly one of Subscription or Invoice is set depending on Type.
type BillingEvent struct {
	ID           string
	Type         BillingEventType
	Subscription *BillingSubscription
	Invoice      *BillingInvoice
}
