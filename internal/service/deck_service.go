package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/repository"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// DeckService owns deck CRUD. Creation is quota-gated; reads go through the
// downgrade-aware access check so decks beyond the tier limit stay frozen
// rather than deleted.
type DeckService interface {
	Create(ctx context.Context, accountID uuid.UUID, req domain.DeckRequest, now time.Time) (domain.Deck, error)
	Get(ctx context.Context, accountID, deckID uuid.UUID) (domain.Deck, error)
	List(ctx context.Context, accountID uuid.UUID) ([]domain.Deck, error)
	Update(ctx context.Context, accountID, deckID uuid.UUID, req domain.DeckRequest) (domain.Deck, error)
	Delete(ctx context.Context, accountID, deckID uuid.UUID) error
}

type deckService struct {
	decks        repository.DeckRepository
	entitlements EntitlementService
	log          *logger.Logger
}

func NewDeckService(decks repository.DeckRepository, entitlements EntitlementService, log *logger.Logger) DeckService {
	return &deckService{decks: decks, entitlements: entitlements, log: log}
}

func (s *deckService) Create(ctx context.Context, accountID uuid.UUID, req domain.DeckRequest, now time.Time) (domain.Deck, error) {
	result, err := s.entitlements.CanPerform(ctx, accountID, domain.ActionCreateDeck, 1, now)
	if err != nil {
		return domain.Deck{}, err
	}
	if !result.Allowed {
		return domain.Deck{}, domain.NewQuotaError(domain.ActionCreateDeck, result)
	}

	visibility := domain.DeckVisibility(req.Visibility)
	if visibility == "" {
		visibility = domain.DeckVisibilityPrivate
	}

	deck := domain.Deck{
		ID:          uuid.New(),
		AccountID:   accountID,
		Name:        req.Name,
		Description: req.Description,
		Visibility:  visibility,
		Tags:        req.Tags,
	}

	created, err := s.decks.Create(ctx, deck)
	if err != nil {
		return domain.Deck{}, fmt.Errorf("failed to create deck: %w", err)
	}

	s.log.Infow("Deck created", "deckID", created.ID, "accountID", accountID)
	return created, nil
}

// ownedDeck loads a deck and verifies ownership. Someone else's deck reports
// not-found rather than forbidden so deck ids are not probeable.
func (s *deckService) ownedDeck(ctx context.Context, accountID, deckID uuid.UUID) (domain.Deck, error) {
	deck, err := s.decks.GetByID(ctx, deckID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Deck{}, domain.ErrDeckNotFound
		}
		return domain.Deck{}, fmt.Errorf("failed to load deck: %w", err)
	}
	if deck.AccountID != accountID {
		return domain.Deck{}, domain.ErrDeckNotFound
	}
	return deck, nil
}

func (s *deckService) Get(ctx context.Context, accountID, deckID uuid.UUID) (domain.Deck, error) {
	deck, err := s.ownedDeck(ctx, accountID, deckID)
	if err != nil {
		return domain.Deck{}, err
	}

	access, err := s.entitlements.CanAccessDeck(ctx, accountID, deckID)
	if err != nil {
		return domain.Deck{}, err
	}
	if !access.CanAccess {
		return domain.Deck{}, fmt.Errorf("%w: %s", domain.ErrDeckInaccessible, access.Reason)
	}
	return deck, nil
}

// List returns every deck the account owns, including ones frozen past the
// tier limit. Callers can pair it with the access check to mark locked decks.
func (s *deckService) List(ctx context.Context, accountID uuid.UUID) ([]domain.Deck, error) {
	decks, err := s.decks.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list decks: %w", err)
	}
	return decks, nil
}

func (s *deckService) Update(ctx context.Context, accountID, deckID uuid.UUID, req domain.DeckRequest) (domain.Deck, error) {
	deck, err := s.ownedDeck(ctx, accountID, deckID)
	if err != nil {
		return domain.Deck{}, err
	}

	access, err := s.entitlements.CanAccessDeck(ctx, accountID, deckID)
	if err != nil {
		return domain.Deck{}, err
	}
	if !access.CanAccess {
		return domain.Deck{}, fmt.Errorf("%w: %s", domain.ErrDeckInaccessible, access.Reason)
	}

	deck.Name = req.Name
	deck.Description = req.Description
	if req.Visibility != "" {
		deck.Visibility = domain.DeckVisibility(req.Visibility)
	}
	deck.Tags = req.Tags

	if err := s.decks.Update(ctx, deck); err != nil {
		return domain.Deck{}, fmt.Errorf("failed to update deck: %w", err)
	}
	return deck, nil
}

// Delete is always allowed, even on frozen decks: deleting an old deck is how
// a downgraded account frees a slot.
func (s *deckService) Delete(ctx context.Context, accountID, deckID uuid.UUID) error {
	if _, err := s.ownedDeck(ctx, accountID, deckID); err != nil {
		return err
	}
	if err := s.decks.Delete(ctx, deckID); err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}
	s.log.Infow("Deck deleted", "deckID", deckID, "accountID", accountID)
	return nil
}
