package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// CachedAccountRepository decorates an AccountRepository with Redis caching.
// Cache failures degrade to the underlying repository; they are never
// surfaced to callers.
type CachedAccountRepository struct {
	repo  AccountRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedAccountRepository creates a caching account repository
func NewCachedAccountRepository(
	repo AccountRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) AccountRepository {
	return &CachedAccountRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// GetByID returns an account, preferring the cache
func (r *CachedAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	cached, err := r.cache.GetCachedAccount(ctx, accountKeyPrefix+id.String())
	if err != nil {
		r.log.Warnw("Error reading account cache", "error", err, "accountID", id)
	}
	if cached != nil {
		return *cached, nil
	}

	account, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Account{}, err
	}

	if err := r.cache.CacheAccount(ctx, account); err != nil {
		r.log.Warnw("Failed to cache account", "error", err, "accountID", id)
	}
	return account, nil
}

// GetByEmail bypasses the cache; email lookups only happen during the
// reconciler's link-repair path.
func (r *CachedAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	return r.repo.GetByEmail(ctx, email)
}

// GetByStripeCustomerID returns an account, preferring the cache
func (r *CachedAccountRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (domain.Account, error) {
	if customerID != "" {
		cached, err := r.cache.GetCachedAccount(ctx, accountCustomerKeyPrefix+customerID)
		if err != nil {
			r.log.Warnw("Error reading account cache", "error", err, "customerID", customerID)
		}
		if cached != nil {
			return *cached, nil
		}
	}

	account, err := r.repo.GetByStripeCustomerID(ctx, customerID)
	if err != nil {
		return domain.Account{}, err
	}

	if err := r.cache.CacheAccount(ctx, account); err != nil {
		r.log.Warnw("Failed to cache account", "error", err, "customerID", customerID)
	}
	return account, nil
}

// Create inserts an account and populates the cache
func (r *CachedAccountRepository) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	created, err := r.repo.Create(ctx, account)
	if err != nil {
		return domain.Account{}, err
	}
	if err := r.cache.CacheAccount(ctx, created); err != nil {
		r.log.Warnw("Failed to cache account after creation", "error", err, "accountID", created.ID)
	}
	return created, nil
}

// SetStripeCustomerID writes through and invalidates
func (r *CachedAccountRepository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	prior := r.snapshot(ctx, id)
	if err := r.repo.SetStripeCustomerID(ctx, id, customerID); err != nil {
		return err
	}
	r.invalidate(ctx, prior)
	if prior.StripeCustomerID != customerID {
		// The new customer id may carry a stale entry from a previous link.
		r.invalidate(ctx, domain.Account{ID: id, StripeCustomerID: customerID})
	}
	return nil
}

// UpdateSubscription writes through and invalidates
func (r *CachedAccountRepository) UpdateSubscription(ctx context.Context, id uuid.UUID, update domain.SubscriptionUpdate) error {
	prior := r.snapshot(ctx, id)
	if err := r.repo.UpdateSubscription(ctx, id, update); err != nil {
		return err
	}
	r.invalidate(ctx, prior)
	return nil
}

// ListExpired bypasses the cache
func (r *CachedAccountRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.Account, error) {
	return r.repo.ListExpired(ctx, now)
}

// snapshot reads the row before a write. Invalidation has to drop the
// customer-id key the cached copy was stored under, and after the write that
// id may already be gone from the row.
func (r *CachedAccountRepository) snapshot(ctx context.Context, id uuid.UUID) domain.Account {
	account, err := r.repo.GetByID(ctx, id)
	if err != nil {
		r.log.Warnw("Failed to load account for cache invalidation", "error", err, "accountID", id)
		return domain.Account{ID: id}
	}
	return account
}

func (r *CachedAccountRepository) invalidate(ctx context.Context, account domain.Account) {
	if err := r.cache.InvalidateAccount(ctx, account); err != nil {
		r.log.Warnw("Failed to invalidate account cache", "error", err, "accountID", account.ID)
	}
}
