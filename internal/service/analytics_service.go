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

const (
	masteredThreshold  = 75
	passingScore       = 60
	minMasteryAttempts = 3
)

// AnalyticsStore is the persistence surface behind the analytics service.
// Implemented by db.AnalyticsRepository.
type AnalyticsStore interface {
	Get(ctx context.Context, accountID, flashcardID uuid.UUID) (domain.PerformanceAnalytics, error)
	ScoreHistory(ctx context.Context, accountID, flashcardID uuid.UUID) ([]int, error)
	Upsert(ctx context.Context, pa domain.PerformanceAnalytics) error
	ListByAccountDeck(ctx context.Context, accountID, deckID uuid.UUID) ([]domain.PerformanceAnalytics, error)
}

// AnalyticsService recomputes per-card performance aggregates from the full
// graded-attempt history. Recomputation from scratch keeps the aggregates
// deterministic under webhook-style replays.
type AnalyticsService interface {
	Recompute(ctx context.Context, accountID, flashcardID uuid.UUID, now time.Time) (domain.PerformanceAnalytics, error)
	Get(ctx context.Context, accountID, flashcardID uuid.UUID) (domain.PerformanceAnalytics, error)
	ListForDeck(ctx context.Context, accountID, deckID uuid.UUID) ([]domain.PerformanceAnalytics, error)
}

type analyticsService struct {
	analytics AnalyticsStore
	log       *logger.Logger
}

func NewAnalyticsService(analytics AnalyticsStore, log *logger.Logger) AnalyticsService {
	return &analyticsService{analytics: analytics, log: log}
}

// ComputeMastery maps a score history to a 0-100 mastery level. Fewer than
// three attempts always score 0 regardless of average: one lucky answer is
// not mastery.
func ComputeMastery(scores []int) int {
	if len(scores) < minMasteryAttempts {
		return 0
	}
	var sum int
	for _, s := range scores {
		sum += s
	}
	avg := float64(sum) / float64(len(scores))
	switch {
	case avg >= 90:
		return 100
	case avg >= 80:
		return 75
	case avg >= 70:
		return 50
	case avg >= 60:
		return 25
	default:
		return 0
	}
}

func (s *analyticsService) Recompute(ctx context.Context, accountID, flashcardID uuid.UUID, now time.Time) (domain.PerformanceAnalytics, error) {
	scores, err := s.analytics.ScoreHistory(ctx, accountID, flashcardID)
	if err != nil {
		return domain.PerformanceAnalytics{}, fmt.Errorf("failed to load score history: %w", err)
	}
	if len(scores) == 0 {
		return domain.PerformanceAnalytics{}, domain.ErrNotFound
	}

	pa := domain.PerformanceAnalytics{
		AccountID:     accountID,
		FlashcardID:   flashcardID,
		TotalAttempts: len(scores),
		LatestScore:   scores[len(scores)-1],
		LastAttemptAt: now,
		UpdatedAt:     now,
	}

	var sum int
	for _, score := range scores {
		sum += score
		if score > pa.BestScore {
			pa.BestScore = score
		}
		if score >= passingScore {
			pa.CorrectAttempts++
		}
	}
	pa.AverageScore = float64(sum) / float64(len(scores))
	pa.MasteryLevel = ComputeMastery(scores)
	pa.Mastered = pa.MasteryLevel >= masteredThreshold

	if err := s.analytics.Upsert(ctx, pa); err != nil {
		return domain.PerformanceAnalytics{}, fmt.Errorf("failed to store analytics: %w", err)
	}

	s.log.Debugw("Recomputed card analytics",
		"accountID", accountID, "flashcardID", flashcardID,
		"attempts", pa.TotalAttempts, "mastery", pa.MasteryLevel)
	return pa, nil
}

func (s *analyticsService) Get(ctx context.Context, accountID, flashcardID uuid.UUID) (domain.PerformanceAnalytics, error) {
	pa, err := s.analytics.Get(ctx, accountID, flashcardID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PerformanceAnalytics{}, domain.ErrNotFound
		}
		return domain.PerformanceAnalytics{}, fmt.Errorf("failed to load analytics: %w", err)
	}
	return pa, nil
}

func (s *analyticsService) ListForDeck(ctx context.Context, accountID, deckID uuid.UUID) ([]domain.PerformanceAnalytics, error) {
	list, err := s.analytics.ListByAccountDeck(ctx, accountID, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to list deck analytics: %w", err)
	}
	return list, nil
}
