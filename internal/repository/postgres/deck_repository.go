package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/repository"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// DeckRepository is the PostgreSQL implementation of
// repository.DeckRepository.
type DeckRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewDeckRepository creates a PostgreSQL deck repository
func NewDeckRepository(db *pgxpool.Pool, log *logger.Logger) *DeckRepository {
	return &DeckRepository{
		db:  db,
		log: log,
	}
}

// GetByID returns a deck by ID
func (r *DeckRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Deck, error) {
	query := `
		SELECT id, account_id, name, description, visibility, tags, created_at, updated_at
		FROM decks
		WHERE id = $1
	`

	var deck domain.Deck
	err := r.db.QueryRow(ctx, query, id).Scan(
		&deck.ID,
		&deck.AccountID,
		&deck.Name,
		&deck.Description,
		&deck.Visibility,
		&deck.Tags,
		&deck.CreatedAt,
		&deck.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Deck{}, repository.ErrNotFound
		}
		return domain.Deck{}, fmt.Errorf("failed to get deck: %w", err)
	}
	return deck, nil
}

// ListByAccount returns the account's decks ordered by creation time, oldest
// first. The oldest-N accessibility rule depends on this ordering.
func (r *DeckRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Deck, error) {
	query := `
		SELECT id, account_id, name, description, visibility, tags, created_at, updated_at
		FROM decks
		WHERE account_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decks: %w", err)
	}
	defer rows.Close()

	var decks []domain.Deck
	for rows.Next() {
		var deck domain.Deck
		err := rows.Scan(
			&deck.ID,
			&deck.AccountID,
			&deck.Name,
			&deck.Description,
			&deck.Visibility,
			&deck.Tags,
			&deck.CreatedAt,
			&deck.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deck: %w", err)
		}
		decks = append(decks, deck)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decks: %w", err)
	}
	return decks, nil
}

// Create inserts a new deck
func (r *DeckRepository) Create(ctx context.Context, deck domain.Deck) (domain.Deck, error) {
	query := `
		INSERT INTO decks (id, account_id, name, description, visibility, tags)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(
		ctx,
		query,
		deck.ID,
		deck.AccountID,
		deck.Name,
		deck.Description,
		deck.Visibility,
		deck.Tags,
	).Scan(&deck.CreatedAt, &deck.UpdatedAt)

	if err != nil {
		return domain.Deck{}, fmt.Errorf("failed to create deck: %w", err)
	}
	return deck, nil
}

// Update overwrites mutable deck fields
func (r *DeckRepository) Update(ctx context.Context, deck domain.Deck) error {
	query := `
		UPDATE decks
		SET name = $1, description = $2, visibility = $3, tags = $4, updated_at = now()
		WHERE id = $5
	`

	result, err := r.db.Exec(ctx, query, deck.Name, deck.Description, deck.Visibility, deck.Tags, deck.ID)
	if err != nil {
		return fmt.Errorf("failed to update deck: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes a deck (cards cascade at the schema level)
func (r *DeckRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM decks WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete deck: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
