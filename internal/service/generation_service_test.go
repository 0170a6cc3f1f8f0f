package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/metrics"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

type generationFixture struct {
	*entitlementFixture
	flashcards *fakeFlashcardRepo
	gens       *fakeGenerationRepo
	ai         *fakeAIClient
	svc        GenerationService
}

func newGenerationFixture(t *testing.T) *generationFixture {
	t.Helper()
	log := logger.New(logger.ERROR)
	ef := newEntitlementFixture(t)
	flashcards := newFakeFlashcardRepo()
	gens := &fakeGenerationRepo{}
	aiClient := &fakeAIClient{cards: []GeneratedCard{
		{Front: "What is mitosis?", Back: "Cell division", Difficulty: "medium"},
		{Front: "What is meiosis?", Back: "Gamete formation", Difficulty: "weird"},
	}}
	m := metrics.New(prometheus.NewRegistry(), log)

	return &generationFixture{
		entitlementFixture: ef,
		flashcards:         flashcards,
		gens:               gens,
		ai:                 aiClient,
		svc:                NewGenerationService(aiClient, gens, flashcards, ef.decks, ef.svc, m, log),
	}
}

func TestGenerateFlashcardsAppendsLogEntry(t *testing.T) {
	f := newGenerationFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID := f.seedDecks(accountID, 1)[0]

	cards, err := f.svc.GenerateFlashcards(context.Background(), accountID, deckID,
		domain.GenerateFlashcardsRequest{Notes: "cell biology notes", Count: 2}, testNow)
	require.NoError(t, err)

	require.Len(t, cards, 2)
	assert.True(t, cards[0].AIGenerated)
	assert.Equal(t, domain.DifficultyMedium, cards[0].Difficulty)
	// Unknown difficulty strings fall back to medium.
	assert.Equal(t, domain.DifficultyMedium, cards[1].Difficulty)

	require.Len(t, f.gens.entries, 1)
	entry := f.gens.entries[0]
	assert.Equal(t, domain.GenerationTypeFlashcards, entry.GenerationType)
	assert.Equal(t, "test-model", entry.Model)
	require.NotNil(t, entry.DeckID)
	assert.Equal(t, deckID, *entry.DeckID)

	stored, err := f.flashcards.ListByDeck(context.Background(), deckID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestGenerateFlashcardsQuotaDenied(t *testing.T) {
	f := newGenerationFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID := f.seedDecks(accountID, 1)[0]
	f.usage.SetGenerationCount(accountID, 10)

	_, err := f.svc.GenerateFlashcards(context.Background(), accountID, deckID,
		domain.GenerateFlashcardsRequest{Notes: "notes"}, testNow)

	var quotaErr *domain.QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, domain.ActionGenerateAI, quotaErr.Action)
	// Denied requests never reach the AI backend or the log.
	assert.Equal(t, 0, f.ai.calls)
	assert.Empty(t, f.gens.entries)
}

func TestGenerateFlashcardsBackendFailureBurnsNoQuota(t *testing.T) {
	f := newGenerationFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID := f.seedDecks(accountID, 1)[0]
	f.ai.err = errors.New("model unavailable")

	_, err := f.svc.GenerateFlashcards(context.Background(), accountID, deckID,
		domain.GenerateFlashcardsRequest{Notes: "notes"}, testNow)

	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)
	assert.Empty(t, f.gens.entries)
}

func TestGenerateFlashcardsRespectsDeckCardLimit(t *testing.T) {
	f := newGenerationFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID := f.seedDecks(accountID, 1)[0]
	f.usage.SetFlashcardCount(deckID, 49)

	_, err := f.svc.GenerateFlashcards(context.Background(), accountID, deckID,
		domain.GenerateFlashcardsRequest{Notes: "notes", Count: 2}, testNow)

	var quotaErr *domain.QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, domain.ActionCreateFlashcards, quotaErr.Action)
}

func TestGenerateFlashcardsLockedDeck(t *testing.T) {
	f := newGenerationFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckIDs := f.seedDecks(accountID, 5)

	_, err := f.svc.GenerateFlashcards(context.Background(), accountID, deckIDs[4],
		domain.GenerateFlashcardsRequest{Notes: "notes"}, testNow)
	assert.ErrorIs(t, err, domain.ErrDeckInaccessible)
	assert.Equal(t, 0, f.ai.calls)
}

func TestGenerateFlashcardsUnknownDeck(t *testing.T) {
	f := newGenerationFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	f.seedDecks(accountID, 4)

	_, err := f.svc.GenerateFlashcards(context.Background(), accountID, uuid.New(),
		domain.GenerateFlashcardsRequest{Notes: "notes"}, testNow)
	assert.ErrorIs(t, err, domain.ErrDeckNotFound)
}
