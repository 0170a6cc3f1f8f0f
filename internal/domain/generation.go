package domain

import (
	"time"

	"github.com/google/uuid"
)

// GenerationType distinguishes what an AI call produced.
type GenerationType string

const (
	GenerationTypeFlashcards   GenerationType = "flashcards"
	GenerationTypeTestQuestion GenerationType = "test_question"
	GenerationTypeGrading      GenerationType = "grading"
)

// AIGeneration is an append-only log entry per AI content-generation call.
// Rows are only ever counted within the current calendar month, never
// mutated or deleted.
type AIGeneration struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	AccountID      uuid.UUID      `json:"account_id" db:"account_id"`
	GenerationType GenerationType `json:"generation_type" db:"generation_type"`
	DeckID         *uuid.UUID     `json:"deck_id,omitempty" db:"deck_id"`
	FlashcardID    *uuid.UUID     `json:"flashcard_id,omitempty" db:"flashcard_id"`
	Model          string         `json:"model" db:"model"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
}

// GenerateFlashcardsRequest asks the AI to produce cards from study notes.
type GenerateFlashcardsRequest struct {
	Notes string `json:"notes" validate:"required,max=50000"`
	Count int    `json:"count" validate:"omitempty,min=1,max=50"`
}
