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

func newCacheFixture(t *testing.T) (*RedisCacheRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCacheRepositoryFromClient(client, logger.New(logger.ERROR)), mr
}

func testAccount(customerID string) domain.Account {
	return domain.Account{
		ID:               uuid.New(),
		Email:            "user@example.com",
		SubscriptionTier: domain.TierPro,
		StripeCustomerID: customerID,
	}
}

func TestCacheAccountRoundTrip(t *testing.T) {
	cache, _ := newCacheFixture(t)
	account := testAccount("cus_1")
	ctx := context.Background()

	require.NoError(t, cache.CacheAccount(ctx, account))

	byID, err := cache.GetCachedAccount(ctx, accountKeyPrefix+account.ID.String())
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, account.ID, byID.ID)
	assert.Equal(t, domain.TierPro, byID.SubscriptionTier)

	byCustomer, err := cache.GetCachedAccount(ctx, accountCustomerKeyPrefix+"cus_1")
	require.NoError(t, err)
	require.NotNil(t, byCustomer)
	assert.Equal(t, account.ID, byCustomer.ID)
}

func TestCacheAccountWithoutCustomerID(t *testing.T) {
	cache, mr := newCacheFixture(t)
	account := testAccount("")
	ctx := context.Background()

	require.NoError(t, cache.CacheAccount(ctx, account))

	// No customer key was written.
	keys := mr.Keys()
	assert.Len(t, keys, 1)
	assert.Equal(t, accountKeyPrefix+account.ID.String(), keys[0])
}

func TestGetCachedAccountMissReturnsNil(t *testing.T) {
	cache, _ := newCacheFixture(t)

	account, err := cache.GetCachedAccount(context.Background(), accountKeyPrefix+uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestInvalidateAccountDropsBothKeys(t *testing.T) {
	cache, mr := newCacheFixture(t)
	account := testAccount("cus_1")
	ctx := context.Background()

	require.NoError(t, cache.CacheAccount(ctx, account))
	require.NoError(t, cache.InvalidateAccount(ctx, account))

	assert.Empty(t, mr.Keys())
}

func TestCacheEntriesExpire(t *testing.T) {
	cache, mr := newCacheFixture(t)
	account := testAccount("")
	ctx := context.Background()

	require.NoError(t, cache.CacheAccount(ctx, account))

	mr.FastForward(defaultCacheTTL * 2)

	got, err := cache.GetCachedAccount(ctx, accountKeyPrefix+account.ID.String())
	require.NoError(t, err)
	assert.Nil(t, got)
}
