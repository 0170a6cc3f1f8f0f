package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// GenerationRepository appends rows to the append-only AI generation log.
type GenerationRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewGenerationRepository creates a PostgreSQL generation repository
func NewGenerationRepository(db *pgxpool.Pool, log *logger.Logger) *GenerationRepository {
	return &GenerationRepository{
		db:  db,
		log: log,
	}
}

// Append records one AI generation call. Rows are never updated or deleted.
func (r *GenerationRepository) Append(ctx context.Context, gen domain.AIGeneration) error {
	query := `
		INSERT INTO ai_generations (id, account_id, generation_type, deck_id, flashcard_id, model)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query, gen.ID, gen.AccountID, gen.GenerationType,
		gen.DeckID, gen.FlashcardID, gen.Model)
	if err != nil {
		return fmt.Errorf("failed to append ai generation: %w", err)
	}
	return nil
}
