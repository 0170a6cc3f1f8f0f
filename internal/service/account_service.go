package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/repository"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// AccountService resolves and bootstraps accounts. New accounts start on the
// free tier with its catalog limits denormalized onto the row.
type AccountService interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Account, error)
	// GetOrCreate looks up the account for an authenticated identity and
	// creates a free-tier account on first contact.
	GetOrCreate(ctx context.Context, id uuid.UUID, email, displayName string) (domain.Account, error)
}

type accountService struct {
	accounts repository.AccountRepository
	log      *logger.Logger
}

func NewAccountService(accounts repository.AccountRepository, log *logger.Logger) AccountService {
	return &accountService{accounts: accounts, log: log}
}

func (s *accountService) Get(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, domain.ErrAccountNotFound
		}
		return domain.Account{}, fmt.Errorf("failed to load account: %w", err)
	}
	return account, nil
}

func (s *accountService) GetOrCreate(ctx context.Context, id uuid.UUID, email, displayName string) (domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("failed to load account: %w", err)
	}

	limits := LimitsForTier(domain.TierFree)
	account = domain.Account{
		ID:                    id,
		Email:                 strings.ToLower(email),
		DisplayName:           displayName,
		SubscriptionTier:      domain.TierFree,
		DeckLimit:             limits.DeckLimit,
		FlashcardLimitPerDeck: limits.FlashcardsPerDeck,
		SubscriptionStatus:    domain.SubscriptionStatusNone,
	}

	created, err := s.accounts.Create(ctx, account)
	if err != nil {
		// Concurrent first requests can race on the insert; the row is
		// there either way.
		if errors.Is(err, repository.ErrDuplicate) {
			return s.accounts.GetByID(ctx, id)
		}
		return domain.Account{}, fmt.Errorf("failed to create account: %w", err)
	}

	s.log.Infow("Account bootstrapped", "accountID", created.ID, "email", created.Email)
	return created, nil
}
