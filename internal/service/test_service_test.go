package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/metrics"
	"github.com/neuroleaf/neuroleaf-api/internal/repository"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

type fakeAIClient struct {
	cards    []GeneratedCard
	grade    GradeResult
	question string
	err      error
	calls    int
}

func (f *fakeAIClient) GenerateFlashcards(_ context.Context, _ string, _ int) ([]GeneratedCard, error) {
	f.calls++
	return f.cards, f.err
}

func (f *fakeAIClient) GenerateQuestion(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.question, f.err
}

func (f *fakeAIClient) GradeAnswer(_ context.Context, _, _, _ string) (GradeResult, error) {
	f.calls++
	return f.grade, f.err
}

func (f *fakeAIClient) Model() string { return "test-model" }

type fakeFlashcardRepo struct {
	mu    sync.Mutex
	cards map[uuid.UUID][]domain.Flashcard
}

func newFakeFlashcardRepo() *fakeFlashcardRepo {
	return &fakeFlashcardRepo{cards: make(map[uuid.UUID][]domain.Flashcard)}
}

func (f *fakeFlashcardRepo) ListByDeck(_ context.Context, deckID uuid.UUID) ([]domain.Flashcard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Flashcard(nil), f.cards[deckID]...), nil
}

func (f *fakeFlashcardRepo) CreateBatch(_ context.Context, cards []domain.Flashcard) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, card := range cards {
		f.cards[card.DeckID] = append(f.cards[card.DeckID], card)
	}
	return nil
}

func (f *fakeFlashcardRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for deckID, cards := range f.cards {
		for i, card := range cards {
			if card.ID == id {
				f.cards[deckID] = append(cards[:i], cards[i+1:]...)
				return nil
			}
		}
	}
	return repository.ErrNotFound
}

type fakeGenerationRepo struct {
	mu      sync.Mutex
	entries []domain.AIGeneration
}

func (f *fakeGenerationRepo) Append(_ context.Context, gen domain.AIGeneration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, gen)
	return nil
}

type fakeTestRepo struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]domain.TestSession
	responses map[uuid.UUID][]domain.TestResponse
}

func newFakeTestRepo() *fakeTestRepo {
	return &fakeTestRepo{
		sessions:  make(map[uuid.UUID]domain.TestSession),
		responses: make(map[uuid.UUID][]domain.TestResponse),
	}
}

func (f *fakeTestRepo) CreateSession(_ context.Context, session domain.TestSession) (domain.TestSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session.StartedAt = time.Now()
	f.sessions[session.ID] = session
	return session, nil
}

func (f *fakeTestRepo) GetSession(_ context.Context, id uuid.UUID) (domain.TestSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return domain.TestSession{}, repository.ErrNotFound
	}
	return session, nil
}

func (f *fakeTestRepo) UpdateSession(_ context.Context, session domain.TestSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[session.ID]; !ok {
		return repository.ErrNotFound
	}
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeTestRepo) CreateResponse(_ context.Context, response domain.TestResponse) (domain.TestResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	response.CreatedAt = time.Now()
	f.responses[response.SessionID] = append(f.responses[response.SessionID], response)
	return response, nil
}

func (f *fakeTestRepo) ListResponses(_ context.Context, sessionID uuid.UUID) ([]domain.TestResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.TestResponse(nil), f.responses[sessionID]...), nil
}

type testFixture struct {
	*entitlementFixture
	flashcards *fakeFlashcardRepo
	gens       *fakeGenerationRepo
	tests      *fakeTestRepo
	ai         *fakeAIClient
	analytics  *fakeAnalyticsStore
	svc        TestService
}

func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	log := logger.New(logger.ERROR)
	ef := newEntitlementFixture(t)
	flashcards := newFakeFlashcardRepo()
	gens := &fakeGenerationRepo{}
	tests := newFakeTestRepo()
	aiClient := &fakeAIClient{grade: GradeResult{Score: 80, Feedback: "close", Correct: true}}
	analyticsStore := newFakeAnalyticsStore()
	m := metrics.New(prometheus.NewRegistry(), log)

	return &testFixture{
		entitlementFixture: ef,
		flashcards:         flashcards,
		gens:               gens,
		tests:              tests,
		ai:                 aiClient,
		analytics:          analyticsStore,
		svc: NewTestService(tests, flashcards, gens, aiClient, ef.svc,
			NewAnalyticsService(analyticsStore, log), m, log),
	}
}

func (f *testFixture) seedDeckWithCards(accountID uuid.UUID, n int) (uuid.UUID, []domain.Flashcard) {
	deckID := f.seedDecks(accountID, 1)[0]
	cards := make([]domain.Flashcard, n)
	for i := range cards {
		cards[i] = domain.Flashcard{
			ID:     uuid.New(),
			DeckID: deckID,
			Front:  "front",
			Back:   "back",
		}
	}
	_ = f.flashcards.CreateBatch(context.Background(), cards)
	return deckID, cards
}

func TestStartSessionQuota(t *testing.T) {
	f := newTestFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID, _ := f.seedDeckWithCards(accountID, 4)
	f.usage.SetTestSessionCount(accountID, 5)

	_, err := f.svc.StartSession(context.Background(), accountID, deckID,
		domain.StartTestRequest{Mode: "flashcard"}, testNow)

	var quotaErr *domain.QuotaError
	require.ErrorAs(t, err, &quotaErr)
	assert.Equal(t, domain.ActionStartTest, quotaErr.Action)
}

func TestStartSessionEmptyDeck(t *testing.T) {
	f := newTestFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID := f.seedDecks(accountID, 1)[0]

	_, err := f.svc.StartSession(context.Background(), accountID, deckID,
		domain.StartTestRequest{Mode: "flashcard"}, testNow)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestStartSessionClampsQuestionCount(t *testing.T) {
	f := newTestFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID, _ := f.seedDeckWithCards(accountID, 4)

	session, err := f.svc.StartSession(context.Background(), accountID, deckID,
		domain.StartTestRequest{Mode: "flashcard", QuestionCount: 50}, testNow)
	require.NoError(t, err)

	assert.Equal(t, 4, session.TotalQuestions)
	assert.Equal(t, domain.TestSessionActive, session.Status)
}

func TestSubmitResponseGradesAndRecomputes(t *testing.T) {
	f := newTestFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID, cards := f.seedDeckWithCards(accountID, 2)

	session, err := f.svc.StartSession(context.Background(), accountID, deckID,
		domain.StartTestRequest{Mode: "flashcard"}, testNow)
	require.NoError(t, err)

	f.analytics.scores[cards[0].ID] = []int{70, 75}

	response, err := f.svc.SubmitResponse(context.Background(), accountID, session.ID,
		domain.SubmitResponseRequest{
			FlashcardID:  cards[0].ID.String(),
			QuestionText: "front",
			UserAnswer:   "an answer",
		}, testNow)
	require.NoError(t, err)

	assert.Equal(t, 80, response.AIScore)
	assert.True(t, response.IsCorrect)
	assert.Equal(t, "close", response.AIFeedback)

	// Grading appended one entry to the generation log.
	assert.Len(t, f.gens.entries, 1)
	assert.Equal(t, domain.GenerationTypeGrading, f.gens.entries[0].GenerationType)

	// Analytics recomputed from the full history.
	row, ok := f.analytics.rows[cards[0].ID]
	require.True(t, ok)
	assert.Equal(t, 2, row.TotalAttempts)

	updated, err := f.svc.GetSession(context.Background(), accountID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CompletedQuestions)
	assert.InDelta(t, 80.0, updated.AverageScore, 0.001)
}

func TestSubmitResponseRejectsForeignCard(t *testing.T) {
	f := newTestFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID, _ := f.seedDeckWithCards(accountID, 1)

	session, err := f.svc.StartSession(context.Background(), accountID, deckID,
		domain.StartTestRequest{Mode: "flashcard"}, testNow)
	require.NoError(t, err)

	_, err = f.svc.SubmitResponse(context.Background(), accountID, session.ID,
		domain.SubmitResponseRequest{
			FlashcardID:  uuid.NewString(),
			QuestionText: "front",
			UserAnswer:   "answer",
		}, testNow)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSubmitResponseInactiveSession(t *testing.T) {
	f := newTestFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID, _ := f.seedDeckWithCards(accountID, 1)

	session, err := f.svc.StartSession(context.Background(), accountID, deckID,
		domain.StartTestRequest{Mode: "flashcard"}, testNow)
	require.NoError(t, err)

	_, err = f.svc.CompleteSession(context.Background(), accountID, session.ID, testNow)
	require.NoError(t, err)

	_, err = f.svc.SubmitResponse(context.Background(), accountID, session.ID,
		domain.SubmitResponseRequest{QuestionText: "q", UserAnswer: "a"}, testNow)
	assert.ErrorIs(t, err, domain.ErrSessionNotActive)
}

func TestSubmitResponseGradingFailure(t *testing.T) {
	f := newTestFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID, _ := f.seedDeckWithCards(accountID, 1)

	session, err := f.svc.StartSession(context.Background(), accountID, deckID,
		domain.StartTestRequest{Mode: "flashcard"}, testNow)
	require.NoError(t, err)

	f.ai.err = errors.New("model timeout")

	_, err = f.svc.SubmitResponse(context.Background(), accountID, session.ID,
		domain.SubmitResponseRequest{QuestionText: "q", UserAnswer: "a"}, testNow)
	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)
}

func TestCompleteSessionIsIdempotent(t *testing.T) {
	f := newTestFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID, _ := f.seedDeckWithCards(accountID, 1)

	session, err := f.svc.StartSession(context.Background(), accountID, deckID,
		domain.StartTestRequest{Mode: "flashcard"}, testNow)
	require.NoError(t, err)

	first, err := f.svc.CompleteSession(context.Background(), accountID, session.ID, testNow)
	require.NoError(t, err)
	assert.Equal(t, domain.TestSessionCompleted, first.Status)
	require.NotNil(t, first.CompletedAt)

	second, err := f.svc.CompleteSession(context.Background(), accountID, session.ID, testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, *first.CompletedAt, *second.CompletedAt)
}

func TestSessionsHiddenAcrossAccounts(t *testing.T) {
	f := newTestFixture(t)
	owner := f.seedAccount(domain.TierFree)
	intruder := f.seedAccount(domain.TierFree)
	deckID, _ := f.seedDeckWithCards(owner, 1)

	session, err := f.svc.StartSession(context.Background(), owner, deckID,
		domain.StartTestRequest{Mode: "flashcard"}, testNow)
	require.NoError(t, err)

	_, err = f.svc.GetSession(context.Background(), intruder, session.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNextQuestionAIMode(t *testing.T) {
	f := newTestFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID, cards := f.seedDeckWithCards(accountID, 3)
	f.ai.question = "Explain the concept on this card in your own words."

	session, err := f.svc.StartSession(context.Background(), accountID, deckID,
		domain.StartTestRequest{Mode: "ai_questions"}, testNow)
	require.NoError(t, err)

	question, err := f.svc.NextQuestion(context.Background(), accountID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, cards[0].ID, question.FlashcardID)
	assert.Equal(t, "Explain the concept on this card in your own words.", question.QuestionText)
	assert.Equal(t, "open_answer", question.QuestionType)

	require.Len(t, f.gens.entries, 1)
	assert.Equal(t, domain.GenerationTypeTestQuestion, f.gens.entries[0].GenerationType)
	assert.Equal(t, cards[0].ID, *f.gens.entries[0].FlashcardID)
	assert.Equal(t, "test-model", f.gens.entries[0].Model)
}

func TestNextQuestionFlashcardModeSkipsAI(t *testing.T) {
	f := newTestFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID, cards := f.seedDeckWithCards(accountID, 3)

	session, err := f.svc.StartSession(context.Background(), accountID, deckID,
		domain.StartTestRequest{Mode: "flashcard"}, testNow)
	require.NoError(t, err)

	question, err := f.svc.NextQuestion(context.Background(), accountID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, cards[0].ID, question.FlashcardID)
	assert.Equal(t, cards[0].Front, question.QuestionText)
	assert.Equal(t, "flashcard", question.QuestionType)

	assert.Zero(t, f.ai.calls)
	assert.Empty(t, f.gens.entries)
}

func TestNextQuestionAdvancesWithProgress(t *testing.T) {
	f := newTestFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID, cards := f.seedDeckWithCards(accountID, 3)

	session, err := f.svc.StartSession(context.Background(), accountID, deckID,
		domain.StartTestRequest{Mode: "flashcard"}, testNow)
	require.NoError(t, err)

	_, err = f.svc.SubmitResponse(context.Background(), accountID, session.ID, domain.SubmitResponseRequest{
		FlashcardID:  cards[0].ID.String(),
		QuestionText: cards[0].Front,
		UserAnswer:   "an answer",
	}, testNow)
	require.NoError(t, err)

	question, err := f.svc.NextQuestion(context.Background(), accountID, session.ID)
	require.NoError(t, err)
	assert.Equal(t, cards[1].ID, question.FlashcardID)
}

func TestNextQuestionExhaustedSession(t *testing.T) {
	f := newTestFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID, cards := f.seedDeckWithCards(accountID, 3)

	session, err := f.svc.StartSession(context.Background(), accountID, deckID,
		domain.StartTestRequest{Mode: "flashcard", QuestionCount: 1}, testNow)
	require.NoError(t, err)

	_, err = f.svc.SubmitResponse(context.Background(), accountID, session.ID, domain.SubmitResponseRequest{
		FlashcardID:  cards[0].ID.String(),
		QuestionText: cards[0].Front,
		UserAnswer:   "an answer",
	}, testNow)
	require.NoError(t, err)

	_, err = f.svc.NextQuestion(context.Background(), accountID, session.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNextQuestionGenerationFailure(t *testing.T) {
	f := newTestFixture(t)
	accountID := f.seedAccount(domain.TierFree)
	deckID, _ := f.seedDeckWithCards(accountID, 3)

	session, err := f.svc.StartSession(context.Background(), accountID, deckID,
		domain.StartTestRequest{Mode: "ai_questions"}, testNow)
	require.NoError(t, err)

	f.ai.err = errors.New("backend down")
	_, err = f.svc.NextQuestion(context.Background(), accountID, session.ID)
	assert.ErrorIs(t, err, domain.ErrExternalServiceUnavailable)
	assert.Empty(t, f.gens.entries)
}
