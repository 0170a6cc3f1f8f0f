package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/repository"
)

// AnalyticsRepository persists performance_analytics rows and reads the
// graded-attempt history they are recomputed from.
type AnalyticsRepository struct {
	client *Client
}

// NewAnalyticsRepository creates an analytics repository over the client
func NewAnalyticsRepository(client *Client) *AnalyticsRepository {
	return &AnalyticsRepository{client: client}
}

// Get returns the analytics row for an (account, flashcard) pair
func (r *AnalyticsRepository) Get(ctx context.Context, accountID, flashcardID uuid.UUID) (domain.PerformanceAnalytics, error) {
	query := `
		SELECT account_id, flashcard_id, total_attempts, correct_attempts, average_score,
			best_score, latest_score, mastery_level, mastered, last_attempt_at, updated_at
		FROM performance_analytics
		WHERE account_id = $1 AND flashcard_id = $2
	`

	var pa domain.PerformanceAnalytics
	err := r.client.db.GetContext(ctx, &pa, query, accountID, flashcardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.PerformanceAnalytics{}, repository.ErrNotFound
		}
		return domain.PerformanceAnalytics{}, fmt.Errorf("failed to get analytics: %w", err)
	}
	return pa, nil
}

// ScoreHistory returns every graded score the account has recorded for the
// flashcard, oldest first, across all of its test sessions.
func (r *AnalyticsRepository) ScoreHistory(ctx context.Context, accountID, flashcardID uuid.UUID) ([]int, error) {
	query := `
		SELECT r.ai_score
		FROM test_responses r
		JOIN test_sessions s ON s.id = r.session_id
		WHERE s.account_id = $1 AND r.flashcard_id = $2
		ORDER BY r.created_at ASC
	`

	var scores []int
	if err := r.client.db.SelectContext(ctx, &scores, query, accountID, flashcardID); err != nil {
		return nil, fmt.Errorf("failed to load score history: %w", err)
	}
	return scores, nil
}

// Upsert writes a recomputed analytics row. Recomputation is idempotent, so
// conflicting writes converge on the same values.
func (r *AnalyticsRepository) Upsert(ctx context.Context, pa domain.PerformanceAnalytics) error {
	query := `
		INSERT INTO performance_analytics (account_id, flashcard_id, total_attempts,
			correct_attempts, average_score, best_score, latest_score, mastery_level,
			mastered, last_attempt_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (account_id, flashcard_id) DO UPDATE SET
			total_attempts = EXCLUDED.total_attempts,
			correct_attempts = EXCLUDED.correct_attempts,
			average_score = EXCLUDED.average_score,
			best_score = EXCLUDED.best_score,
			latest_score = EXCLUDED.latest_score,
			mastery_level = EXCLUDED.mastery_level,
			mastered = EXCLUDED.mastered,
			last_attempt_at = EXCLUDED.last_attempt_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.client.db.ExecContext(ctx, query,
		pa.AccountID,
		pa.FlashcardID,
		pa.TotalAttempts,
		pa.CorrectAttempts,
		pa.AverageScore,
		pa.BestScore,
		pa.LatestScore,
		pa.MasteryLevel,
		pa.Mastered,
		pa.LastAttemptAt,
		pa.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert analytics: %w", err)
	}
	return nil
}

// ListByAccountDeck returns the analytics rows for a deck's cards.
func (r *AnalyticsRepository) ListByAccountDeck(ctx context.Context, accountID, deckID uuid.UUID) ([]domain.PerformanceAnalytics, error) {
	query := `
		SELECT a.account_id, a.flashcard_id, a.total_attempts, a.correct_attempts,
			a.average_score, a.best_score, a.latest_score, a.mastery_level, a.mastered,
			a.last_attempt_at, a.updated_at
		FROM performance_analytics a
		JOIN flashcards f ON f.id = a.flashcard_id
		WHERE a.account_id = $1 AND f.deck_id = $2
		ORDER BY a.mastery_level DESC, a.average_score DESC
	`

	var rows []domain.PerformanceAnalytics
	if err := r.client.db.SelectContext(ctx, &rows, query, accountID, deckID); err != nil {
		return nil, fmt.Errorf("failed to list deck analytics: %w", err)
	}
	return rows, nil
}
