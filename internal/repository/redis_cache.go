package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

const (
	accountKeyPrefix         = "account:"
	accountCustomerKeyPrefix = "account_customer:"

	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository caches account records in Redis. Entitlement checks
// resolve the account on every request, so this is the hot read path.
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository connects to Redis and returns a cache repository
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// NewRedisCacheRepositoryFromClient wraps an existing client. Used in tests.
func NewRedisCacheRepositoryFromClient(client *redis.Client, log *logger.Logger) *RedisCacheRepository {
	return &RedisCacheRepository{client: client, log: log}
}

// Close closes the Redis connection
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CacheAccount stores an account under both its ID and customer-id keys
func (r *RedisCacheRepository) CacheAccount(ctx context.Context, account domain.Account) error {
	data, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal account: %w", err)
	}

	key := accountKeyPrefix + account.ID.String()
	if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		return fmt.Errorf("failed to cache account: %w", err)
	}

	if account.StripeCustomerID != "" {
		customerKey := accountCustomerKeyPrefix + account.StripeCustomerID
		if err := r.client.Set(ctx, customerKey, data, defaultCacheTTL).Err(); err != nil {
			return fmt.Errorf("failed to cache account by customer id: %w", err)
		}
	}
	return nil
}

// GetCachedAccount returns a cached account or nil on a miss
func (r *RedisCacheRepository) GetCachedAccount(ctx context.Context, key string) (*domain.Account, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account from cache: %w", err)
	}

	var account domain.Account
	if err := json.Unmarshal(data, &account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached account: %w", err)
	}
	return &account, nil
}

// InvalidateAccount drops the cache entries for an account
func (r *RedisCacheRepository) InvalidateAccount(ctx context.Context, account domain.Account) error {
	keys := []string{accountKeyPrefix + account.ID.String()}
	if account.StripeCustomerID != "" {
		keys = append(keys, accountCustomerKeyPrefix+account.StripeCustomerID)
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate account cache: %w", err)
	}
	return nil
}
