package repository

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

func newCachedRepoFixture(t *testing.T) (*InMemoryAccountRepository, AccountRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := logger.New(logger.ERROR)
	backing := NewInMemoryAccountRepository()
	cache := NewRedisCacheRepositoryFromClient(client, log)
	return backing, NewCachedAccountRepository(backing, cache, log)
}

func TestCachedGetByIDServesFromCacheAfterFirstRead(t *testing.T) {
	backing, repo := newCachedRepoFixture(t)
	ctx := context.Background()

	account := domain.Account{ID: uuid.New(), Email: "a@example.com", SubscriptionTier: domain.TierFree}
	backing.Seed(account)

	first, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, account.ID, first.ID)

	// Mutate the backing store directly; the cached copy wins until
	// invalidation.
	mutated := account
	mutated.Email = "changed@example.com"
	backing.Seed(mutated)

	second, err := repo.GetByID(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", second.Email)
}

func TestCachedUpdateSubscriptionInvalidates(t *testing.T) {
	backing, repo := newCachedRepoFixture(t)
	ctx := context.Background()

	account := domain.Account{ID: uuid.New(), Email: "a@example.com", SubscriptionTier: domain.TierFree, StripeCustomerID: "cus_1"}
	backing.Seed(account)

	// Warm both cache keys.
	_, err := repo.GetByStripeCustomerID(ctx, "cus_1")
	require.NoError(t, err)

	require.NoError(t, repo.UpdateSubscription(ctx, account.ID, domain.SubscriptionUpdate{
		Tier:                  domain.TierPro,
		DeckLimit:             domain.UnlimitedLimit,
		FlashcardLimitPerDeck: domain.UnlimitedLimit,
		StripeSubscriptionID:  "sub_1",
		Status:                domain.SubscriptionStatusActive,
	}))

	got, err := repo.GetByStripeCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, got.SubscriptionTier)
}

func TestCachedSetStripeCustomerIDDropsOldCustomerKey(t *testing.T) {
	backing, repo := newCachedRepoFixture(t)
	ctx := context.Background()

	account := domain.Account{ID: uuid.New(), Email: "a@example.com", SubscriptionTier: domain.TierFree, StripeCustomerID: "cus_old"}
	backing.Seed(account)

	// Cache the row under the old customer key.
	_, err := repo.GetByStripeCustomerID(ctx, "cus_old")
	require.NoError(t, err)

	require.NoError(t, repo.SetStripeCustomerID(ctx, account.ID, "cus_new"))

	// The old link must stop resolving immediately, not after the TTL.
	_, err = repo.GetByStripeCustomerID(ctx, "cus_old")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := repo.GetByStripeCustomerID(ctx, "cus_new")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
}

func TestCachedGetByIDMissFallsThrough(t *testing.T) {
	_, repo := newCachedRepoFixture(t)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
