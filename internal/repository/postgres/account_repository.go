package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/repository"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

const accountColumns = `id, email, display_name, subscription_tier, deck_limit,
		flashcard_limit_per_deck, stripe_customer_id, stripe_subscription_id,
		subscription_status, subscription_expires_at, created_at, updated_at`

// AccountRepository is the PostgreSQL implementation of
// repository.AccountRepository.
type AccountRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewAccountRepository creates a PostgreSQL account repository
func NewAccountRepository(db *pgxpool.Pool, log *logger.Logger) *AccountRepository {
	return &AccountRepository{
		db:  db,
		log: log,
	}
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var account domain.Account
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.DisplayName,
		&account.SubscriptionTier,
		&account.DeckLimit,
		&account.FlashcardLimitPerDeck,
		&account.StripeCustomerID,
		&account.StripeSubscriptionID,
		&account.SubscriptionStatus,
		&account.SubscriptionExpiresAt,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, repository.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("failed to scan account: %w", err)
	}
	return account, nil
}

// GetByID returns an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

// GetByEmail returns an account by email
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`
	return scanAccount(r.db.QueryRow(ctx, query, email))
}

// GetByStripeCustomerID returns an account by its billing customer link
func (r *AccountRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (domain.Account, error) {
	if customerID == "" {
		return domain.Account{}, repository.ErrNotFound
	}
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE stripe_customer_id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, customerID))
}

// Create inserts a new account
func (r *AccountRepository) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	query := `
		INSERT INTO accounts (id, email, display_name, subscription_tier, deck_limit,
			flashcard_limit_per_deck, subscription_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx,
		query,
		account.ID,
		account.Email,
		account.DisplayName,
		account.SubscriptionTier,
		account.DeckLimit,
		account.FlashcardLimitPerDeck,
		account.SubscriptionStatus,
	).Scan(&account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Account{}, repository.ErrDuplicate
		}
		return domain.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	return account, nil
}

// SetStripeCustomerID persists the billing customer link
func (r *AccountRepository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	query := `UPDATE accounts SET stripe_customer_id = $1, updated_at = now() WHERE id = $2`

	result, err := r.db.Exec(ctx, query, customerID, id)
	if err != nil {
		return fmt.Errorf("failed to set stripe customer id: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateSubscription applies billing-owned fields
func (r *AccountRepository) UpdateSubscription(ctx context.Context, id uuid.UUID, update domain.SubscriptionUpdate) error {
	query := `
		UPDATE accounts
		SET subscription_tier = $1, deck_limit = $2, flashcard_limit_per_deck = $3,
			stripe_subscription_id = $4, subscription_status = $5,
			subscription_expires_at = $6, updated_at = now()
		WHERE id = $7
	`

	result, err := r.db.Exec(
		ctx,
		query,
		update.Tier,
		update.DeckLimit,
		update.FlashcardLimitPerDeck,
		update.StripeSubscriptionID,
		update.Status,
		update.ExpiresAt,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListExpired returns paid accounts whose subscription expired before now
func (r *AccountRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE subscription_tier <> 'free'
		  AND subscription_expires_at IS NOT NULL
		  AND subscription_expires_at < $1
	`

	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired accounts: %w", err)
	}
	return accounts, nil
}
