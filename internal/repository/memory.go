package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
)

// InMemoryAccountRepository is a map-backed AccountRepository. Used by unit
// tests and local development without a database.
type InMemoryAccountRepository struct {
	accounts map[uuid.UUID]domain.Account
	mutex    sync.RWMutex
}

// NewInMemoryAccountRepository creates an empty in-memory account repository
func NewInMemoryAccountRepository() *InMemoryAccountRepository {
	return &InMemoryAccountRepository{
		accounts: make(map[uuid.UUID]domain.Account),
	}
}

// Seed inserts an account directly, bypassing timestamps.
func (r *InMemoryAccountRepository) Seed(account domain.Account) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.accounts[account.ID] = account
}

// GetByID returns an account by ID
func (r *InMemoryAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	account, exists := r.accounts[id]
	if !exists {
		return domain.Account{}, ErrNotFound
	}
	return account, nil
}

// GetByEmail returns an account by email
func (r *InMemoryAccountRepository) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, account := range r.accounts {
		if account.Email == email {
			return account, nil
		}
	}
	return domain.Account{}, ErrNotFound
}

// GetByStripeCustomerID returns an account by its billing customer link
func (r *InMemoryAccountRepository) GetByStripeCustomerID(ctx context.Context, customerID string) (domain.Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if customerID == "" {
		return domain.Account{}, ErrNotFound
	}
	for _, account := range r.accounts {
		if account.StripeCustomerID == customerID {
			return account, nil
		}
	}
	return domain.Account{}, ErrNotFound
}

// Create inserts a new account
func (r *InMemoryAccountRepository) Create(ctx context.Context, account domain.Account) (domain.Account, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, existing := range r.accounts {
		if existing.Email == account.Email {
			return domain.Account{}, ErrDuplicate
		}
	}

	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	r.accounts[account.ID] = account
	return account, nil
}

// SetStripeCustomerID persists the billing customer link
func (r *InMemoryAccountRepository) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return ErrNotFound
	}
	account.StripeCustomerID = customerID
	account.UpdatedAt = time.Now()
	r.accounts[id] = account
	return nil
}

// UpdateSubscription applies billing-owned fields
func (r *InMemoryAccountRepository) UpdateSubscription(ctx context.Context, id uuid.UUID, update domain.SubscriptionUpdate) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	account, exists := r.accounts[id]
	if !exists {
		return ErrNotFound
	}
	account.SubscriptionTier = update.Tier
	account.DeckLimit = update.DeckLimit
	account.FlashcardLimitPerDeck = update.FlashcardLimitPerDeck
	account.StripeSubscriptionID = update.StripeSubscriptionID
	account.SubscriptionStatus = update.Status
	account.SubscriptionExpiresAt = update.ExpiresAt
	account.UpdatedAt = time.Now()
	r.accounts[id] = account
	return nil
}

// ListExpired returns paid accounts whose subscription expired before now
func (r *InMemoryAccountRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var expired []domain.Account
	for _, account := range r.accounts {
		if account.SubscriptionTier == domain.TierFree {
			continue
		}
		if account.SubscriptionExpiresAt != nil && account.SubscriptionExpiresAt.Before(now) {
			expired = append(expired, account)
		}
	}
	return expired, nil
}

// InMemoryDeckRepository is a map-backed DeckRepository.
type InMemoryDeckRepository struct {
	decks map[uuid.UUID]domain.Deck
	mutex sync.RWMutex
}

// NewInMemoryDeckRepository creates an empty in-memory deck repository
func NewInMemoryDeckRepository() *InMemoryDeckRepository {
	return &InMemoryDeckRepository{
		decks: make(map[uuid.UUID]domain.Deck),
	}
}

// Seed inserts a deck directly, preserving its timestamps.
func (r *InMemoryDeckRepository) Seed(deck domain.Deck) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.decks[deck.ID] = deck
}

// GetByID returns a deck by ID
func (r *InMemoryDeckRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Deck, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	deck, exists := r.decks[id]
	if !exists {
		return domain.Deck{}, ErrNotFound
	}
	return deck, nil
}

// ListByAccount returns the account's decks, oldest first
func (r *InMemoryDeckRepository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.Deck, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var decks []domain.Deck
	for _, deck := range r.decks {
		if deck.AccountID == accountID {
			decks = append(decks, deck)
		}
	}
	sort.Slice(decks, func(i, j int) bool {
		return decks[i].CreatedAt.Before(decks[j].CreatedAt)
	})
	return decks, nil
}

// Create inserts a new deck
func (r *InMemoryDeckRepository) Create(ctx context.Context, deck domain.Deck) (domain.Deck, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	deck.CreatedAt = time.Now()
	deck.UpdatedAt = deck.CreatedAt
	r.decks[deck.ID] = deck
	return deck, nil
}

// Update overwrites an existing deck
func (r *InMemoryDeckRepository) Update(ctx context.Context, deck domain.Deck) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.decks[deck.ID]; !exists {
		return ErrNotFound
	}
	deck.UpdatedAt = time.Now()
	r.decks[deck.ID] = deck
	return nil
}

// Delete removes a deck
func (r *InMemoryDeckRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.decks[id]; !exists {
		return ErrNotFound
	}
	delete(r.decks, id)
	return nil
}

// InMemoryUsageRepository serves usage counts from settable values plus the
// in-memory deck repository. Monthly counters ignore the window boundary;
// tests control the raw numbers directly.
type InMemoryUsageRepository struct {
	decks       *InMemoryDeckRepository
	flashcards  map[uuid.UUID]int
	generations map[uuid.UUID]int
	sessions    map[uuid.UUID]int
	mutex       sync.RWMutex
}

// NewInMemoryUsageRepository creates a usage repository over the given decks
func NewInMemoryUsageRepository(decks *InMemoryDeckRepository) *InMemoryUsageRepository {
	return &InMemoryUsageRepository{
		decks:       decks,
		flashcards:  make(map[uuid.UUID]int),
		generations: make(map[uuid.UUID]int),
		sessions:    make(map[uuid.UUID]int),
	}
}

// SetFlashcardCount sets the card count reported for a deck
func (r *InMemoryUsageRepository) SetFlashcardCount(deckID uuid.UUID, n int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.flashcards[deckID] = n
}

// SetGenerationCount sets the monthly generation count for an account
func (r *InMemoryUsageRepository) SetGenerationCount(accountID uuid.UUID, n int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.generations[accountID] = n
}

// SetTestSessionCount sets the monthly session count for an account
func (r *InMemoryUsageRepository) SetTestSessionCount(accountID uuid.UUID, n int) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.sessions[accountID] = n
}

// CountDecks counts the account's decks
func (r *InMemoryUsageRepository) CountDecks(ctx context.Context, accountID uuid.UUID) (int, error) {
	decks, err := r.decks.ListByAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return len(decks), nil
}

// CountFlashcards counts cards in a deck
func (r *InMemoryUsageRepository) CountFlashcards(ctx context.Context, deckID uuid.UUID) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.flashcards[deckID], nil
}

// CountGenerationsSince counts AI generations in the window
func (r *InMemoryUsageRepository) CountGenerationsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.generations[accountID], nil
}

// CountTestSessionsSince counts test sessions in the window
func (r *InMemoryUsageRepository) CountTestSessionsSince(ctx context.Context, accountID uuid.UUID, since time.Time) (int, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.sessions[accountID], nil
}
