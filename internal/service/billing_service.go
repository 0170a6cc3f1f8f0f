package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/metrics"
	"github.com/neuroleaf/neuroleaf-api/internal/repository"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// BillingClient is the slice of the payment processor's API the reconciler
// needs: resolving a customer's email for link repair.
type BillingClient interface {
	GetCustomerEmail(ctx context.Context, customerID string) (string, error)
}

// TierChangeEvent is published whenever the reconciler moves an account to a
// different tier.
type TierChangeEvent struct {
	AccountID string      `json:"account_id"`
	FromTier  domain.Tier `json:"from_tier"`
	ToTier    domain.Tier `json:"to_tier"`
	EventID   string      `json:"event_id"`
	OccurTime time.Time   `json:"occur_time"`
}

// TierChangePublisher delivers tier-change events to downstream consumers.
type TierChangePublisher interface {
	PublishTierChange(ctx context.Context, event TierChangeEvent) error
}

// BillingService reconciles payment-processor webhook events into the local
// account record. Every event handler is idempotent: at-least-once delivery
// means replays must not double-apply.
type BillingService interface {
	ProcessEvent(ctx context.Context, event domain.BillingEvent) error

	// DowngradeExpired sweeps paid accounts whose subscription expired
	// before now back to the free tier.
	DowngradeExpired(ctx context.Context, now time.Time) error
}

type billingService struct {
	accounts    repository.AccountRepository
	billing     BillingClient
	publisher   TierChangePublisher
	proPriceIDs map[string]struct{}
	metrics     *metrics.Metrics
	log         *logger.Logger
}

// NewBillingService creates the billing event reconciler. proPriceIDs is the
// allow-list of processor price identifiers that map to the pro tier; any
// unmatched price defaults to free.
func NewBillingService(
	accounts repository.AccountRepository,
	billing BillingClient,
	publisher TierChangePublisher,
	proPriceIDs []string,
	m *metrics.Metrics,
	log *logger.Logger,
) BillingService {
	priceSet := make(map[string]struct{}, len(proPriceIDs))
	for _, id := range proPriceIDs {
		if id != "" {
			priceSet[id] = struct{}{}
		}
	}
	return &billingService{
		accounts:    accounts,
		billing:     billing,
		publisher:   publisher,
		proPriceIDs: priceSet,
		metrics:     m,
		log:         log,
	}
}

// errAccountUnresolved marks the non-fatal "no account matches this
// customer" condition. The webhook must still succeed: the processor's
// retries cannot fix a missing account.
var errAccountUnresolved = errors.New("billing customer could not be matched to an account")

func (s *billingService) tierForPrice(priceID string) domain.Tier {
	if _, ok := s.proPriceIDs[priceID]; ok {
		return domain.TierPro
	}
	return domain.TierFree
}

func mapSubscriptionStatus(status string) domain.SubscriptionStatus {
	switch status {
	case "active", "trialing":
		return domain.SubscriptionStatusActive
	case "past_due", "unpaid":
		return domain.SubscriptionStatusPastDue
	case "canceled", "incomplete_expired":
		return domain.SubscriptionStatusCanceled
	default:
		// Unknown processor statuses (incomplete, paused, future additions)
		// must not grant access; past_due keeps the subscription linked
		// without treating it as paid up.
		return domain.SubscriptionStatusPastDue
	}
}

// ProcessEvent dispatches one webhook event
func (s *billingService) ProcessEvent(ctx context.Context, event domain.BillingEvent) error {
	var err error
	switch event.Type {
	case domain.BillingSubscriptionCreated, domain.BillingSubscriptionUpdated:
		err = s.handleSubscriptionChange(ctx, event)
	case domain.BillingSubscriptionDeleted:
		err = s.handleSubscriptionDeleted(ctx, event)
	case domain.BillingInvoicePaid:
		err = s.handleInvoicePaid(ctx, event)
	case domain.BillingInvoiceFailed:
		err = s.handleInvoiceFailed(ctx, event)
	default:
		s.log.Infow("Ignored billing event type", "type", event.Type, "eventID", event.ID)
		s.metrics.IncWebhookEvent(string(event.Type), "ignored")
		return nil
	}

	if errors.Is(err, errAccountUnresolved) {
		s.log.Warnw("Billing event skipped: account unresolved",
			"type", event.Type, "eventID", event.ID)
		s.metrics.IncWebhookEvent(string(event.Type), "unresolved")
		return nil
	}
	if err != nil {
		s.metrics.IncWebhookEvent(string(event.Type), "error")
		return err
	}
	s.metrics.IncWebhookEvent(string(event.Type), "applied")
	return nil
}

// resolveAccount finds the account for a billing customer id. When
// allowRecovery is set and the stored mapping is missing, it falls back to
// matching the customer's email and persists the repaired link.
func (s *billingService) resolveAccount(ctx context.Context, customerID string, allowRecovery bool) (domain.Account, error) {
	account, err := s.accounts.GetByStripeCustomerID(ctx, customerID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("failed to look up account by customer id: %w", err)
	}
	if !allowRecovery {
		return domain.Account{}, errAccountUnresolved
	}

	email, err := s.billing.GetCustomerEmail(ctx, customerID)
	if err != nil || email == "" {
		s.log.Errorw("Customer email lookup failed during link repair",
			"customerID", customerID, "error", err)
		return domain.Account{}, errAccountUnresolved
	}

	account, err = s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, errAccountUnresolved
		}
		return domain.Account{}, fmt.Errorf("failed to look up account by email: %w", err)
	}

	// Persist the repaired link so later events resolve directly.
	if err := s.accounts.SetStripeCustomerID(ctx, account.ID, customerID); err != nil {
		return domain.Account{}, fmt.Errorf("failed to persist repaired customer link: %w", err)
	}
	account.StripeCustomerID = customerID

	s.log.Infow("Repaired billing customer link via email match",
		"accountID", account.ID, "customerID", customerID)
	return account, nil
}

func (s *billingService) applyTier(ctx context.Context, account domain.Account, update domain.SubscriptionUpdate, eventID string) error {
	if err := s.accounts.UpdateSubscription(ctx, account.ID, update); err != nil {
		// Write failures are fatal for the event so the processor redelivers.
		return fmt.Errorf("failed to update account subscription: %w", err)
	}

	if account.SubscriptionTier != update.Tier {
		s.metrics.IncTierChange(string(account.SubscriptionTier), string(update.Tier))
		if s.publisher != nil {
			event := TierChangeEvent{
				AccountID: account.ID.String(),
				FromTier:  account.SubscriptionTier,
				ToTier:    update.Tier,
				EventID:   eventID,
				OccurTime: time.Now().UTC(),
			}
			if err := s.publisher.PublishTierChange(ctx, event); err != nil {
				// Event publishing is best-effort; the account row is the
				// source of truth.
				s.log.Warnw("Failed to publish tier change event",
					"accountID", account.ID, "error", err)
			}
		}
	}
	return nil
}

func (s *billingService) handleSubscriptionChange(ctx context.Context, event domain.BillingEvent) error {
	sub := event.Subscription
	if sub == nil {
		return fmt.Errorf("%w: subscription payload missing", domain.ErrInvalidInput)
	}

	account, err := s.resolveAccount(ctx, sub.CustomerID, true)
	if err != nil {
		return err
	}

	tier := s.tierForPrice(sub.PriceID)
	limits := LimitsForTier(tier)

	var expiresAt *time.Time
	if !sub.CurrentPeriodEnd.IsZero() {
		end := sub.CurrentPeriodEnd
		expiresAt = &end
	}

	update := domain.SubscriptionUpdate{
		Tier:                  tier,
		DeckLimit:             limits.DeckLimit,
		FlashcardLimitPerDeck: limits.FlashcardsPerDeck,
		StripeSubscriptionID:  sub.ID,
		Status:                mapSubscriptionStatus(sub.Status),
		ExpiresAt:             expiresAt,
	}

	s.log.Infow("Applying subscription change",
		"accountID", account.ID, "tier", tier, "subscriptionID", sub.ID, "status", update.Status)
	return s.applyTier(ctx, account, update, event.ID)
}

func (s *billingService) handleSubscriptionDeleted(ctx context.Context, event domain.BillingEvent) error {
	sub := event.Subscription
	if sub == nil {
		return fmt.Errorf("%w: subscription payload missing", domain.ErrInvalidInput)
	}

	// No email recovery on deletion: if the link never existed there is
	// nothing to downgrade.
	account, err := s.resolveAccount(ctx, sub.CustomerID, false)
	if err != nil {
		return err
	}

	limits := LimitsForTier(domain.TierFree)
	update := domain.SubscriptionUpdate{
		Tier:                  domain.TierFree,
		DeckLimit:             limits.DeckLimit,
		FlashcardLimitPerDeck: limits.FlashcardsPerDeck,
		StripeSubscriptionID:  "",
		Status:                domain.SubscriptionStatusCanceled,
		ExpiresAt:             nil,
	}

	s.log.Infow("Downgrading account after subscription deletion",
		"accountID", account.ID, "subscriptionID", sub.ID)
	return s.applyTier(ctx, account, update, event.ID)
}

func (s *billingService) handleInvoicePaid(ctx context.Context, event domain.BillingEvent) error {
	invoice := event.Invoice
	if invoice == nil {
		return fmt.Errorf("%w: invoice payload missing", domain.ErrInvalidInput)
	}

	account, err := s.resolveAccount(ctx, invoice.CustomerID, false)
	if err != nil {
		return err
	}

	// A first invoice can arrive before or independent of the
	// subscription.updated event, so re-apply the price mapping here.
	tier := account.SubscriptionTier
	limits := LimitsForTier(tier)
	if invoice.PriceID != "" {
		tier = s.tierForPrice(invoice.PriceID)
		limits = LimitsForTier(tier)
	}

	subscriptionID := account.StripeSubscriptionID
	if invoice.SubscriptionID != "" {
		subscriptionID = invoice.SubscriptionID
	}

	update := domain.SubscriptionUpdate{
		Tier:                  tier,
		DeckLimit:             limits.DeckLimit,
		FlashcardLimitPerDeck: limits.FlashcardsPerDeck,
		StripeSubscriptionID:  subscriptionID,
		Status:                domain.SubscriptionStatusActive,
		ExpiresAt:             account.SubscriptionExpiresAt,
	}

	s.log.Infow("Marking subscription active after paid invoice",
		"accountID", account.ID, "invoiceID", invoice.ID, "tier", tier)
	return s.applyTier(ctx, account, update, event.ID)
}

func (s *billingService) handleInvoiceFailed(ctx context.Context, event domain.BillingEvent) error {
	invoice := event.Invoice
	if invoice == nil {
		return fmt.Errorf("%w: invoice payload missing", domain.ErrInvalidInput)
	}

	account, err := s.resolveAccount(ctx, invoice.CustomerID, false)
	if err != nil {
		return err
	}

	// Payment failure never changes the tier, only the status.
	update := domain.SubscriptionUpdate{
		Tier:                  account.SubscriptionTier,
		DeckLimit:             account.DeckLimit,
		FlashcardLimitPerDeck: account.FlashcardLimitPerDeck,
		StripeSubscriptionID:  account.StripeSubscriptionID,
		Status:                domain.SubscriptionStatusPastDue,
		ExpiresAt:             account.SubscriptionExpiresAt,
	}

	s.log.Infow("Marking subscription past due after failed invoice",
		"accountID", account.ID, "invoiceID", invoice.ID)
	return s.applyTier(ctx, account, update, event.ID)
}

// DowngradeExpired sweeps expired paid subscriptions back to free
func (s *billingService) DowngradeExpired(ctx context.Context, now time.Time) error {
	expired, err := s.accounts.ListExpired(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list expired subscriptions: %w", err)
	}

	limits := LimitsForTier(domain.TierFree)
	for _, account := range expired {
		update := domain.SubscriptionUpdate{
			Tier:                  domain.TierFree,
			DeckLimit:             limits.DeckLimit,
			FlashcardLimitPerDeck: limits.FlashcardsPerDeck,
			StripeSubscriptionID:  "",
			Status:                domain.SubscriptionStatusCanceled,
			ExpiresAt:             nil,
		}
		if err := s.applyTier(ctx, account, update, "expiry-sweep"); err != nil {
			s.log.Errorw("Failed to downgrade expired account",
				"accountID", account.ID, "error", err)
			continue
		}
		s.log.Infow("Downgraded expired subscription", "accountID", account.ID)
	}
	return nil
}
