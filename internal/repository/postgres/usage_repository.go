package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// UsageRepository answers the aggregation queries behind quota checks.
// Pure reads; zero rows count as 0.
type UsageRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewUsageRepository creates a PostgreSQL usage repository
func NewUsageRepository(db *pgxpool.Pool, log *logger.Logger) *UsageRepository {
	return &UsageRepository{
		db:  db,
		log: log,
	}
}

func (r *UsageRepository) count(ctx context.Context, query string, args ...any) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count usage: %w", err)
	}
	return n, nil
}

// CountDecks counts the account's decks
func (r *UsageRepository) CountDecks(ctx context.Context, accountID uuid.UUID) (int, error) {
	return r.count(ctx, `SELECT count(*) FROM decks WHERE account_id = $1`, accountID)
}

// CountFlashcards counts cards in a deck
func (r *UsageRepository) CountFlashcards(ctx context.Context, deckID uuid.UUID) (int, error) {
	return r.count(ctx, `SELECT count(*) FROM flashcards WHERE deck_id = $1`, deckID)
}

// CountGenerationsSince counts AI generations recorded at or after since
func (r *UsageRepository) CountGenerationsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error) {
	return r.count(ctx,
		`SELECT count(*) FROM ai_generations WHERE account_id = $1 AND created_at >= $2`,
		accountID, since)
}

// CountTestSessionsSince counts test sessions started at or after since
func (r *UsageRepository) CountTestSessionsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error) {
	return r.count(ctx,
		`SELECT count(*) FROM test_sessions WHERE account_id = $1 AND started_at >= $2`,
		accountID, since)
}
