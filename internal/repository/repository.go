package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
)

// AccountRepository is the persistence surface for accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error)
	GetByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (domain.Account, error)
	Create(ctx context.Context, account domain.Account) (domain.Account, error)
	// SetStripeCustomerID persists the billing-customer link repaired by the
	// reconciler's email-recovery step.
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
	// UpdateSubscription applies billing-owned fields atomically.
	UpdateSubscription(ctx context.Context, id uuid.UUID, update domain.SubscriptionUpdate) error
	// ListExpired returns accounts whose subscription expired before now but
	// still carry a paid tier.
	ListExpired(ctx context.Context, now time.Time) ([]domain.Account, error)
}

// DeckRepository is the persistence surface for decks.
type DeckRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Deck, error)
	// ListByAccount returns the account's decks ordered by creation time,
	// oldest first. The entitlement evaluator depends on this ordering.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Deck, error)
	Create(ctx context.Context, deck domain.Deck) (domain.Deck, error)
	Update(ctx context.Context, deck domain.Deck) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// FlashcardRepository is the persistence surface for flashcards.
type FlashcardRepository interface {
	ListByDeck(ctx context.Context, deckID uuid.UUID) ([]domain.Flashcard, error)
	CreateBatch(ctx context.Context, cards []domain.Flashcard) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// UsageRepository answers the read-only aggregation queries behind quota
// checks. Zero rows always count as 0, never an error.
type UsageRepository interface {
	CountDecks(ctx context.Context, accountID uuid.UUID) (int, error)
	CountFlashcards(ctx context.Context, deckID uuid.UUID) (int, error)
	CountGenerationsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error)
	CountTestSessionsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error)
}

// GenerationRepository appends AI generation log entries.
type GenerationRepository interface {
	Append(ctx context.Context, gen domain.AIGeneration) error
}

// TestRepository is the persistence surface for test sessions and responses.
type TestRepository interface {
	CreateSession(ctx context.Context, session domain.TestSession) (domain.TestSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (domain.TestSession, error)
	UpdateSession(ctx context.Context, session domain.TestSession) error
	CreateResponse(ctx context.Context, response domain.TestResponse) (domain.TestResponse, error)
	ListResponses(ctx context.Context, sessionID uuid.UUID) ([]domain.TestResponse, error)
}
