package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/metrics"
	"github.com/neuroleaf/neuroleaf-api/internal/repository"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

type fakeBillingClient struct {
	emails map[string]string
	calls  int
	err    error
}

func (f *fakeBillingClient) GetCustomerEmail(_ context.Context, customerID string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.emails[customerID], nil
}

type fakePublisher struct {
	events []TierChangeEvent
}

func (f *fakePublisher) PublishTierChange(_ context.Context, event TierChangeEvent) error {
	f.events = append(f.events, event)
	return nil
}

type billingFixture struct {
	accounts  *repository.InMemoryAccountRepository
	client    *fakeBillingClient
	publisher *fakePublisher
	svc       BillingService
}

func newBillingFixture(t *testing.T) *billingFixture {
	t.Helper()
	log := logger.New(logger.ERROR)
	accounts := repository.NewInMemoryAccountRepository()
	client := &fakeBillingClient{emails: make(map[string]string)}
	publisher := &fakePublisher{}
	m := metrics.New(prometheus.NewRegistry(), log)
	return &billingFixture{
		accounts:  accounts,
		client:    client,
		publisher: publisher,
		svc:       NewBillingService(accounts, client, publisher, []string{"price_pro"}, m, log),
	}
}

func (f *billingFixture) seedFreeAccount(email, customerID string) uuid.UUID {
	id := uuid.New()
	limits := LimitsForTier(domain.TierFree)
	f.accounts.Seed(domain.Account{
		ID:                    id,
		Email:                 email,
		SubscriptionTier:      domain.TierFree,
		DeckLimit:             limits.DeckLimit,
		FlashcardLimitPerDeck: limits.FlashcardsPerDeck,
		StripeCustomerID:      customerID,
		SubscriptionStatus:    domain.SubscriptionStatusNone,
	})
	return id
}

func subscriptionEvent(eventType domain.BillingEventType, customerID, priceID string) domain.BillingEvent {
	return domain.BillingEvent{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Subscription: &domain.BillingSubscription{
			ID:               "sub_123",
			CustomerID:       customerID,
			PriceID:          priceID,
			Status:           "active",
			CurrentPeriodEnd: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestProcessSubscriptionCreatedUpgradesAccount(t *testing.T) {
	f := newBillingFixture(t)
	accountID := f.seedFreeAccount("user@example.com", "cus_1")

	err := f.svc.ProcessEvent(context.Background(), subscriptionEvent(domain.BillingSubscriptionCreated, "cus_1", "price_pro"))
	require.NoError(t, err)

	account, err := f.accounts.GetByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, account.SubscriptionTier)
	assert.Equal(t, domain.UnlimitedLimit, account.DeckLimit)
	assert.Equal(t, domain.UnlimitedLimit, account.FlashcardLimitPerDeck)
	assert.Equal(t, "sub_123", account.StripeSubscriptionID)
	assert.Equal(t, domain.SubscriptionStatusActive, account.SubscriptionStatus)
	require.NotNil(t, account.SubscriptionExpiresAt)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), account.SubscriptionExpiresAt.UTC())

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, domain.TierFree, f.publisher.events[0].FromTier)
	assert.Equal(t, domain.TierPro, f.publisher.events[0].ToTier)
}

func TestProcessSubscriptionEventReplayIsIdempotent(t *testing.T) {
	f := newBillingFixture(t)
	accountID := f.seedFreeAccount("user@example.com", "cus_1")
	event := subscriptionEvent(domain.BillingSubscriptionCreated, "cus_1", "price_pro")

	require.NoError(t, f.svc.ProcessEvent(context.Background(), event))
	require.NoError(t, f.svc.ProcessEvent(context.Background(), event))

	account, err := f.accounts.GetByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, account.SubscriptionTier)
	// Replay after the tier already changed publishes nothing new.
	assert.Len(t, f.publisher.events, 1)
}

func TestProcessSubscriptionUnknownPriceMapsToFree(t *testing.T) {
	f := newBillingFixture(t)
	accountID := f.seedFreeAccount("user@example.com", "cus_1")

	err := f.svc.ProcessEvent(context.Background(), subscriptionEvent(domain.BillingSubscriptionUpdated, "cus_1", "price_mystery"))
	require.NoError(t, err)

	account, err := f.accounts.GetByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, account.SubscriptionTier)
	assert.Empty(t, f.publisher.events)
}

func TestProcessSubscriptionRecoversLinkByEmail(t *testing.T) {
	f := newBillingFixture(t)
	accountID := f.seedFreeAccount("user@example.com", "")
	f.client.emails["cus_new"] = "user@example.com"

	err := f.svc.ProcessEvent(context.Background(), subscriptionEvent(domain.BillingSubscriptionCreated, "cus_new", "price_pro"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.client.calls)

	account, err := f.accounts.GetByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, "cus_new", account.StripeCustomerID)
	assert.Equal(t, domain.TierPro, account.SubscriptionTier)

	// The repaired link makes the next event resolve without another
	// email lookup.
	err = f.svc.ProcessEvent(context.Background(), subscriptionEvent(domain.BillingSubscriptionUpdated, "cus_new", "price_pro"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.client.calls)
}

func TestProcessSubscriptionUnresolvableIsNonFatal(t *testing.T) {
	f := newBillingFixture(t)
	f.seedFreeAccount("someone-else@example.com", "")
	f.client.emails["cus_ghost"] = "nobody@example.com"

	err := f.svc.ProcessEvent(context.Background(), subscriptionEvent(domain.BillingSubscriptionCreated, "cus_ghost", "price_pro"))
	assert.NoError(t, err)
	assert.Empty(t, f.publisher.events)
}

func TestProcessSubscriptionEmailLookupFailureIsNonFatal(t *testing.T) {
	f := newBillingFixture(t)
	f.seedFreeAccount("user@example.com", "")
	f.client.err = errors.New("stripe down")

	err := f.svc.ProcessEvent(context.Background(), subscriptionEvent(domain.BillingSubscriptionCreated, "cus_1", "price_pro"))
	assert.NoError(t, err)
}

func TestProcessSubscriptionDeletedDowngrades(t *testing.T) {
	f := newBillingFixture(t)
	accountID := f.seedFreeAccount("user@example.com", "cus_1")
	require.NoError(t, f.svc.ProcessEvent(context.Background(), subscriptionEvent(domain.BillingSubscriptionCreated, "cus_1", "price_pro")))

	err := f.svc.ProcessEvent(context.Background(), domain.BillingEvent{
		ID:   "evt_del",
		Type: domain.BillingSubscriptionDeleted,
		Subscription: &domain.BillingSubscription{
			ID:         "sub_123",
			CustomerID: "cus_1",
			Status:     "canceled",
		},
	})
	require.NoError(t, err)

	account, err := f.accounts.GetByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, account.SubscriptionTier)
	assert.Equal(t, 3, account.DeckLimit)
	assert.Empty(t, account.StripeSubscriptionID)
	assert.Equal(t, domain.SubscriptionStatusCanceled, account.SubscriptionStatus)
	assert.Nil(t, account.SubscriptionExpiresAt)

	require.Len(t, f.publisher.events, 2)
	assert.Equal(t, domain.TierPro, f.publisher.events[1].FromTier)
	assert.Equal(t, domain.TierFree, f.publisher.events[1].ToTier)
}

func TestProcessInvoiceFailedMarksPastDueOnly(t *testing.T) {
	f := newBillingFixture(t)
	accountID := f.seedFreeAccount("user@example.com", "cus_1")
	require.NoError(t, f.svc.ProcessEvent(context.Background(), subscriptionEvent(domain.BillingSubscriptionCreated, "cus_1", "price_pro")))

	err := f.svc.ProcessEvent(context.Background(), domain.BillingEvent{
		ID:   "evt_fail",
		Type: domain.BillingInvoiceFailed,
		Invoice: &domain.BillingInvoice{
			ID:         "in_1",
			CustomerID: "cus_1",
		},
	})
	require.NoError(t, err)

	account, err := f.accounts.GetByID(context.Background(), accountID)
	require.NoError(t, err)
	// Tier and limits survive a failed payment; only the status changes.
	assert.Equal(t, domain.TierPro, account.SubscriptionTier)
	assert.Equal(t, domain.UnlimitedLimit, account.DeckLimit)
	assert.Equal(t, domain.SubscriptionStatusPastDue, account.SubscriptionStatus)
}

func TestProcessInvoicePaidReactivates(t *testing.T) {
	f := newBillingFixture(t)
	accountID := f.seedFreeAccount("user@example.com", "cus_1")
	require.NoError(t, f.svc.ProcessEvent(context.Background(), subscriptionEvent(domain.BillingSubscriptionCreated, "cus_1", "price_pro")))
	require.NoError(t, f.svc.ProcessEvent(context.Background(), domain.BillingEvent{
		ID:      "evt_fail",
		Type:    domain.BillingInvoiceFailed,
		Invoice: &domain.BillingInvoice{ID: "in_1", CustomerID: "cus_1"},
	}))

	err := f.svc.ProcessEvent(context.Background(), domain.BillingEvent{
		ID:   "evt_paid",
		Type: domain.BillingInvoicePaid,
		Invoice: &domain.BillingInvoice{
			ID:             "in_2",
			CustomerID:     "cus_1",
			SubscriptionID: "sub_123",
			PriceID:        "price_pro",
		},
	})
	require.NoError(t, err)

	account, err := f.accounts.GetByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, account.SubscriptionTier)
	assert.Equal(t, domain.SubscriptionStatusActive, account.SubscriptionStatus)
}

func TestProcessUnknownEventTypeIsNoOp(t *testing.T) {
	f := newBillingFixture(t)
	f.seedFreeAccount("user@example.com", "cus_1")

	err := f.svc.ProcessEvent(context.Background(), domain.BillingEvent{
		ID:   "evt_x",
		Type: domain.BillingEventType("charge.refunded"),
	})
	assert.NoError(t, err)
	assert.Empty(t, f.publisher.events)
}

func TestProcessEventMissingPayload(t *testing.T) {
	f := newBillingFixture(t)

	err := f.svc.ProcessEvent(context.Background(), domain.BillingEvent{
		ID:   "evt_bad",
		Type: domain.BillingSubscriptionCreated,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDowngradeExpired(t *testing.T) {
	f := newBillingFixture(t)
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	expired := f.seedFreeAccount("expired@example.com", "cus_expired")
	pastEnd := now.Add(-24 * time.Hour)
	require.NoError(t, f.accounts.UpdateSubscription(context.Background(), expired, domain.SubscriptionUpdate{
		Tier:                  domain.TierPro,
		DeckLimit:             domain.UnlimitedLimit,
		FlashcardLimitPerDeck: domain.UnlimitedLimit,
		StripeSubscriptionID:  "sub_old",
		Status:                domain.SubscriptionStatusActive,
		ExpiresAt:             &pastEnd,
	}))

	active := f.seedFreeAccount("active@example.com", "cus_active")
	futureEnd := now.Add(24 * time.Hour)
	require.NoError(t, f.accounts.UpdateSubscription(context.Background(), active, domain.SubscriptionUpdate{
		Tier:                  domain.TierPro,
		DeckLimit:             domain.UnlimitedLimit,
		FlashcardLimitPerDeck: domain.UnlimitedLimit,
		StripeSubscriptionID:  "sub_live",
		Status:                domain.SubscriptionStatusActive,
		ExpiresAt:             &futureEnd,
	}))

	require.NoError(t, f.svc.DowngradeExpired(context.Background(), now))

	expiredAccount, err := f.accounts.GetByID(context.Background(), expired)
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, expiredAccount.SubscriptionTier)
	assert.Equal(t, domain.SubscriptionStatusCanceled, expiredAccount.SubscriptionStatus)

	activeAccount, err := f.accounts.GetByID(context.Background(), active)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, activeAccount.SubscriptionTier)
}

func TestProcessSubscriptionUnknownStatusNotTreatedAsPaid(t *testing.T) {
	f := newBillingFixture(t)
	accountID := f.seedFreeAccount("user@example.com", "cus_1")

	event := subscriptionEvent(domain.BillingSubscriptionUpdated, "cus_1", "price_pro")
	event.Subscription.Status = "paused"

	require.NoError(t, f.svc.ProcessEvent(context.Background(), event))

	account, err := f.accounts.GetByID(context.Background(), accountID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, account.SubscriptionTier)
	assert.Equal(t, domain.SubscriptionStatusPastDue, account.SubscriptionStatus)
}
