package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/metrics"
	"github.com/neuroleaf/neuroleaf-api/internal/repository"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// GeneratedCard is one AI-produced flashcard before persistence.
type GeneratedCard struct {
	Front      string `json:"front"`
	Back       string `json:"back"`
	Difficulty string `json:"difficulty"`
}

// GradeResult is the AI's verdict on a free-text answer.
type GradeResult struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
	Correct  bool   `json:"correct"`
}

// AIClient abstracts the language-model backend.
type AIClient interface {
	GenerateFlashcards(ctx context.Context, notes string, count int) ([]GeneratedCard, error)
	GenerateQuestion(ctx context.Context, front, back string) (string, error)
	GradeAnswer(ctx context.Context, question, expected, answer string) (GradeResult, error)
	Model() string
}

const defaultGeneratedCardCount = 10

// GenerationService turns study notes into flashcards via the AI backend.
// Every successful call appends one row to the generation log, which is what
// the monthly quota counts.
type GenerationService interface {
	GenerateFlashcards(ctx context.Context, accountID, deckID uuid.UUID, req domain.GenerateFlashcardsRequest, now time.Time) ([]domain.Flashcard, error)
}

type generationService struct {
	ai           AIClient
	generations  repository.GenerationRepository
	flashcards   repository.FlashcardRepository
	decks        repository.DeckRepository
	entitlements EntitlementService
	metrics      *metrics.Metrics
	log          *logger.Logger
}

func NewGenerationService(
	ai AIClient,
	generations repository.GenerationRepository,
	flashcards repository.FlashcardRepository,
	decks repository.DeckRepository,
	entitlements EntitlementService,
	m *metrics.Metrics,
	log *logger.Logger,
) GenerationService {
	return &generationService{
		ai:           ai,
		generations:  generations,
		flashcards:   flashcards,
		decks:        decks,
		entitlements: entitlements,
		metrics:      m,
		log:          log,
	}
}

func (s *generationService) GenerateFlashcards(ctx context.Context, accountID, deckID uuid.UUID, req domain.GenerateFlashcardsRequest, now time.Time) ([]domain.Flashcard, error) {
	access, err := s.entitlements.CanAccessDeck(ctx, accountID, deckID)
	if err != nil {
		return nil, err
	}
	if !access.CanAccess {
		return nil, fmt.Errorf("%w: %s", domain.ErrDeckInaccessible, access.Reason)
	}

	result, err := s.entitlements.CanPerform(ctx, accountID, domain.ActionGenerateAI, 1, now)
	if err != nil {
		return nil, err
	}
	if !result.Allowed {
		return nil, domain.NewQuotaError(domain.ActionGenerateAI, result)
	}

	count := req.Count
	if count <= 0 {
		count = defaultGeneratedCardCount
	}

	generated, err := s.ai.GenerateFlashcards(ctx, req.Notes, count)
	if err != nil {
		s.metrics.IncAICall("generate_flashcards", "error")
		return nil, fmt.Errorf("%w: flashcard generation failed: %v", domain.ErrExternalServiceUnavailable, err)
	}
	s.metrics.IncAICall("generate_flashcards", "ok")

	// The generated batch still has to fit the per-deck card limit.
	cardResult, err := s.entitlements.CanCreateFlashcards(ctx, accountID, deckID, len(generated), now)
	if err != nil {
		return nil, err
	}
	if !cardResult.Allowed {
		return nil, domain.NewQuotaError(domain.ActionCreateFlashcards, cardResult)
	}

	existing, err := s.flashcards.ListByDeck(ctx, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to count existing flashcards: %w", err)
	}

	cards := make([]domain.Flashcard, 0, len(generated))
	for i, g := range generated {
		difficulty := domain.FlashcardDifficulty(g.Difficulty)
		switch difficulty {
		case domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard:
		default:
			difficulty = domain.DifficultyMedium
		}
		cards = append(cards, domain.Flashcard{
			ID:          uuid.New(),
			DeckID:      deckID,
			Front:       g.Front,
			Back:        g.Back,
			Difficulty:  difficulty,
			Position:    len(existing) + i,
			AIGenerated: true,
		})
	}

	if err := s.flashcards.CreateBatch(ctx, cards); err != nil {
		return nil, fmt.Errorf("failed to persist generated flashcards: %w", err)
	}

	// Log the usage only after the cards landed, so a failed generation
	// never burns quota.
	gen := domain.AIGeneration{
		ID:             uuid.New(),
		AccountID:      accountID,
		GenerationType: domain.GenerationTypeFlashcards,
		DeckID:         &deckID,
		Model:          s.ai.Model(),
	}
	if err := s.generations.Append(ctx, gen); err != nil {
		return nil, fmt.Errorf("failed to record generation: %w", err)
	}

	s.log.Infow("Generated flashcards from notes",
		"accountID", accountID, "deckID", deckID, "count", len(cards))
	return cards, nil
}
