package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/repository"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// FlashcardRepository is the PostgreSQL implementation of
// repository.FlashcardRepository.
type FlashcardRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewFlashcardRepository creates a PostgreSQL flashcard repository
func NewFlashcardRepository(db *pgxpool.Pool, log *logger.Logger) *FlashcardRepository {
	return &FlashcardRepository{
		db:  db,
		log: log,
	}
}

// ListByDeck returns the deck's cards ordered by position
func (r *FlashcardRepository) ListByDeck(ctx context.Context, deckID uuid.UUID) ([]domain.Flashcard, error) {
	query := `
		SELECT id, deck_id, front, back, difficulty, tags, position, ai_generated, created_at, updated_at
		FROM flashcards
		WHERE deck_id = $1
		ORDER BY position ASC, created_at ASC
	`

	rows, err := r.db.Query(ctx, query, deckID)
	if err != nil {
		return nil, fmt.Errorf("failed to query flashcards: %w", err)
	}
	defer rows.Close()

	var cards []domain.Flashcard
	for rows.Next() {
		var card domain.Flashcard
		err := rows.Scan(
			&card.ID,
			&card.DeckID,
			&card.Front,
			&card.Back,
			&card.Difficulty,
			&card.Tags,
			&card.Position,
			&card.AIGenerated,
			&card.CreatedAt,
			&card.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan flashcard: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flashcards: %w", err)
	}
	return cards, nil
}

// CreateBatch inserts cards in one round trip
func (r *FlashcardRepository) CreateBatch(ctx context.Context, cards []domain.Flashcard) error {
	if len(cards) == 0 {
		return nil
	}

	query := `
		INSERT INTO flashcards (id, deck_id, front, back, difficulty, tags, position, ai_generated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	batch := &pgx.Batch{}
	for _, card := range cards {
		batch.Queue(query, card.ID, card.DeckID, card.Front, card.Back,
			card.Difficulty, card.Tags, card.Position, card.AIGenerated)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range cards {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to insert flashcard batch: %w", err)
		}
	}
	return nil
}

// Delete removes a flashcard
func (r *FlashcardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM flashcards WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete flashcard: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
