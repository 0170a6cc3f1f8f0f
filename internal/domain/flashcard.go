package domain

import (
	"time"

	"github.com/google/uuid"
)

// FlashcardDifficulty is the author-assigned difficulty of a card.
type FlashcardDifficulty string

const (
	DifficultyEasy   FlashcardDifficulty = "easy"
	DifficultyMedium FlashcardDifficulty = "medium"
	DifficultyHard   FlashcardDifficulty = "hard"
)

// Flashcard is one front/back card inside a deck.
type Flashcard struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	DeckID      uuid.UUID           `json:"deck_id" db:"deck_id"`
	Front       string              `json:"front" db:"front"`
	Back        string              `json:"back" db:"back"`
	Difficulty  FlashcardDifficulty `json:"difficulty" db:"difficulty"`
	Tags        []string            `json:"tags" db:"tags"`
	Position    int                 `json:"position" db:"position"`
	AIGenerated bool                `json:"ai_generated" db:"ai_generated"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at" db:"updated_at"`
}

// FlashcardRequest is one card in a create-flashcards payload.
type FlashcardRequest struct {
	Front      string   `json:"front" validate:"required,max=5000"`
	Back       string   `json:"back" validate:"required,max=5000"`
	Difficulty string   `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Tags       []string `json:"tags" validate:"max=20,dive,max=50"`
}

// CreateFlashcardsRequest bulk-creates cards in a deck.
type CreateFlashcardsRequest struct {
	Cards []FlashcardRequest `json:"cards" validate:"required,min=1,max=200,dive"`
}
