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

// FlashcardService owns flashcard reads and quota-gated bulk creation.
type FlashcardService interface {
	List(ctx context.Context, accountID, deckID uuid.UUID) ([]domain.Flashcard, error)
	CreateBatch(ctx context.Context, accountID, deckID uuid.UUID, req domain.CreateFlashcardsRequest, now time.Time) ([]domain.Flashcard, error)
	Delete(ctx context.Context, accountID, deckID, cardID uuid.UUID) error
}

type flashcardService struct {
	decks        repository.DeckRepository
	flashcards   repository.FlashcardRepository
	entitlements EntitlementService
	log          *logger.Logger
}

func NewFlashcardService(
	decks repository.DeckRepository,
	flashcards repository.FlashcardRepository,
	entitlements EntitlementService,
	log *logger.Logger,
) FlashcardService {
	return &flashcardService{decks: decks, flashcards: flashcards, entitlements: entitlements, log: log}
}

// accessibleDeck verifies the deck exists, belongs to the account and is not
// frozen by a downgrade.
func (s *flashcardService) accessibleDeck(ctx context.Context, accountID, deckID uuid.UUID) (domain.Deck, error) {
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

	access, err := s.entitlements.CanAccessDeck(ctx, accountID, deckID)
	if err != nil {
		return domain.Deck{}, err
	}
	if !access.CanAccess {
		return domain.Deck{}, fmt.Errorf("%w: %s", domain.ErrDeckInaccessible, access.Reason)
	}
	return deck, nil
}

func (s *flashcardService) List(ctx context.Context, accountID, deckID uuid.UUID) ([]domain.Flashcard, error) {
	if _, err := s.accessibleDeck(ctx, accountID, deckID); err != nil {
		return nil, err
	}
	cards, err := s.flashcards.ListByDeck(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to list flashcards: %w", err)
	}
	return cards, nil
}

func (s *flashcardService) CreateBatch(ctx context.Context, accountID, deckID uuid.UUID, req domain.CreateFlashcardsRequest, now time.Time) ([]domain.Flashcard, error) {
	if _, err := s.accessibleDeck(ctx, accountID, deckID); err != nil {
		return nil, err
	}

	result, err := s.entitlements.CanCreateFlashcards(ctx, accountID, deckID, len(req.Cards), now)
	if err != nil {
		return nil, err
	}
	if !result.Allowed {
		return nil, domain.NewQuotaError(domain.ActionCreateFlashcards, result)
	}

	existing, err := s.flashcards.ListByDeck(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to count existing flashcards: %w", err)
	}

	cards := make([]domain.Flashcard, 0, len(req.Cards))
	for i, cr := range req.Cards {
		difficulty := domain.FlashcardDifficulty(cr.Difficulty)
		if difficulty == "" {
			difficulty = domain.DifficultyMedium
		}
		cards = append(cards, domain.Flashcard{
			ID:         uuid.New(),
			DeckID:     deckID,
			Front:      cr.Front,
			Back:       cr.Back,
			Difficulty: difficulty,
			Tags:       cr.Tags,
			Position:   len(existing) + i,
		})
	}

	if err := s.flashcards.CreateBatch(ctx, cards); err != nil {
		return nil, fmt.Errorf("failed to create flashcards: %w", err)
	}

	s.log.Infow("Flashcards created", "deckID", deckID, "count", len(cards))
	return cards, nil
}

func (s *flashcardService) Delete(ctx context.Context, accountID, deckID, cardID uuid.UUID) error {
	if _, err := s.accessibleDeck(ctx, accountID, deckID); err != nil {
		return err
	}
	if err := s.flashcards.Delete(ctx, cardID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("failed to delete flashcard: %w", err)
	}
	return nil
}
