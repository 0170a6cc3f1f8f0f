package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeckVisibility controls who can see a deck.
type DeckVisibility string

const (
	DeckVisibilityPrivate DeckVisibility = "private"
	DeckVisibilityPublic  DeckVisibility = "public"
	DeckVisibilityShared  DeckVisibility = "shared"
)

// Deck is a named collection of flashcards owned by one account.
type Deck struct {
	ID          uuid.UUID      `json:"id" db:"id"`
	AccountID   uuid.UUID      `json:"account_id" db:"account_id"`
	Name        string         `json:"name" db:"name"`
	Description string         `json:"description" db:"description"`
	Visibility  DeckVisibility `json:"visibility" db:"visibility"`
	Tags        []string       `json:"tags" db:"tags"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// DeckRequest is the payload for creating or updating a deck.
type DeckRequest struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Description string   `json:"description" validate:"max=2000"`
	Visibility  string   `json:"visibility" validate:"omitempty,oneof=private public shared"`
	Tags        []string `json:"tags" validate:"max=20,dive,max=50"`
}
