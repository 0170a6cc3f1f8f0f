package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/metrics"
	"github.com/neuroleaf/neuroleaf-api/internal/repository"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

// TestService runs AI-graded test sessions over a deck: start, submit
// answers for grading, complete or abandon.
type TestService interface {
	StartSession(ctx context.Context, accountID, deckID uuid.UUID, req domain.StartTestRequest, now time.Time) (domain.TestSession, error)
	GetSession(ctx context.Context, accountID, sessionID uuid.UUID) (domain.TestSession, error)
	// NextQuestion produces the prompt for the next unanswered card. In
	// ai_questions mode the question text is generated by the AI.
	NextQuestion(ctx context.Context, accountID, sessionID uuid.UUID) (domain.TestQuestion, error)
	SubmitResponse(ctx context.Context, accountID, sessionID uuid.UUID, req domain.SubmitResponseRequest, now time.Time) (domain.TestResponse, error)
	CompleteSession(ctx context.Context, accountID, sessionID uuid.UUID, now time.Time) (domain.TestSession, error)
	AbandonSession(ctx context.Context, accountID, sessionID uuid.UUID, now time.Time) error
}

type testService struct {
	tests        repository.TestRepository
	flashcards   repository.FlashcardRepository
	generations  repository.GenerationRepository
	ai           AIClient
	entitlements EntitlementService
	analytics    AnalyticsService
	metrics      *metrics.Metrics
	log          *logger.Logger
}

func NewTestService(
	tests repository.TestRepository,
	flashcards repository.FlashcardRepository,
	generations repository.GenerationRepository,
	ai AIClient,
	entitlements EntitlementService,
	analytics AnalyticsService,
	m *metrics.Metrics,
	log *logger.Logger,
) TestService {
	return &testService{
		tests:        tests,
		flashcards:   flashcards,
		generations:  generations,
		ai:           ai,
		entitlements: entitlements,
		analytics:    analytics,
		metrics:      m,
		log:          log,
	}
}

func (s *testService) StartSession(ctx context.Context, accountID, deckID uuid.UUID, req domain.StartTestRequest, now time.Time) (domain.TestSession, error) {
	access, err := s.entitlements.CanAccessDeck(ctx, accountID, deckID)
	if err != nil {
		return domain.TestSession{}, err
	}
	if !access.CanAccess {
		return domain.TestSession{}, fmt.Errorf("%w: %s", domain.ErrDeckInaccessible, access.Reason)
	}

	result, err := s.entitlements.CanPerform(ctx, accountID, domain.ActionStartTest, 1, now)
	if err != nil {
		return domain.TestSession{}, err
	}
	if !result.Allowed {
		return domain.TestSession{}, domain.NewQuotaError(domain.ActionStartTest, result)
	}

	cards, err := s.flashcards.ListByDeck(ctx, deckID)
	if err != nil {
		return domain.TestSession{}, fmt.Errorf("failed to load deck cards: %w", err)
	}
	if len(cards) == 0 {
		return domain.TestSession{}, fmt.Errorf("%w: deck has no flashcards to test", domain.ErrInvalidInput)
	}

	total := req.QuestionCount
	if total <= 0 || total > len(cards) {
		total = len(cards)
	}

	session := domain.TestSession{
		ID:             uuid.New(),
		AccountID:      accountID,
		DeckID:         deckID,
		Mode:           domain.TestMode(req.Mode),
		TotalQuestions: total,
		Status:         domain.TestSessionActive,
	}

	created, err := s.tests.CreateSession(ctx, session)
	if err != nil {
		return domain.TestSession{}, fmt.Errorf("failed to create test session: %w", err)
	}

	s.log.Infow("Test session started",
		"sessionID", created.ID, "accountID", accountID, "deckID", deckID, "mode", created.Mode)
	return created, nil
}

// ownedActiveSession loads a session, checks ownership and that it still
// accepts responses.
func (s *testService) ownedSession(ctx context.Context, accountID, sessionID uuid.UUID) (domain.TestSession, error) {
	session, err := s.tests.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.TestSession{}, domain.ErrNotFound
		}
		return domain.TestSession{}, fmt.Errorf("failed to load test session: %w", err)
	}
	if session.AccountID != accountID {
		return domain.TestSession{}, domain.ErrNotFound
	}
	return session, nil
}

func (s *testService) GetSession(ctx context.Context, accountID, sessionID uuid.UUID) (domain.TestSession, error) {
	return s.ownedSession(ctx, accountID, sessionID)
}

func (s *testService) NextQuestion(ctx context.Context, accountID, sessionID uuid.UUID) (domain.TestQuestion, error) {
	session, err := s.ownedSession(ctx, accountID, sessionID)
	if err != nil {
		return domain.TestQuestion{}, err
	}
	if session.Status != domain.TestSessionActive {
		return domain.TestQuestion{}, domain.ErrSessionNotActive
	}
	if session.CompletedQuestions >= session.TotalQuestions {
		return domain.TestQuestion{}, fmt.Errorf("%w: all questions answered", domain.ErrInvalidInput)
	}

	cards, err := s.flashcards.ListByDeck(ctx, session.DeckID)
	if err != nil {
		return domain.TestQuestion{}, fmt.Errorf("failed to load deck cards: %w", err)
	}
	// Cards may have been deleted since the session started.
	if session.CompletedQuestions >= len(cards) {
		return domain.TestQuestion{}, fmt.Errorf("%w: deck no longer has enough flashcards", domain.ErrInvalidInput)
	}
	card := cards[session.CompletedQuestions]

	question := domain.TestQuestion{
		FlashcardID:  card.ID,
		QuestionText: card.Front,
		QuestionType: "flashcard",
	}
	if session.Mode != domain.TestModeAIQuestions {
		return question, nil
	}

	text, err := s.ai.GenerateQuestion(ctx, card.Front, card.Back)
	if err != nil {
		s.metrics.IncAICall("generate_question", "error")
		return domain.TestQuestion{}, fmt.Errorf("%w: question generation failed: %v", domain.ErrExternalServiceUnavailable, err)
	}
	s.metrics.IncAICall("generate_question", "ok")
	question.QuestionText = text
	question.QuestionType = "open_answer"

	gen := domain.AIGeneration{
		ID:             uuid.New(),
		AccountID:      accountID,
		GenerationType: domain.GenerationTypeTestQuestion,
		DeckID:         &session.DeckID,
		FlashcardID:    &card.ID,
		Model:          s.ai.Model(),
	}
	if err := s.generations.Append(ctx, gen); err != nil {
		s.log.Warnw("Failed to record question generation", "sessionID", session.ID, "error", err)
	}

	return question, nil
}

func (s *testService) SubmitResponse(ctx context.Context, accountID, sessionID uuid.UUID, req domain.SubmitResponseRequest, now time.Time) (domain.TestResponse, error) {
	session, err := s.ownedSession(ctx, accountID, sessionID)
	if err != nil {
		return domain.TestResponse{}, err
	}
	if session.Status != domain.TestSessionActive {
		return domain.TestResponse{}, domain.ErrSessionNotActive
	}

	var expected string
	var flashcardID *uuid.UUID
	if req.FlashcardID != "" {
		id, err := uuid.Parse(req.FlashcardID)
		if err != nil {
			return domain.TestResponse{}, fmt.Errorf("%w: invalid flashcard id", domain.ErrInvalidInput)
		}
		flashcardID = &id

		cards, err := s.flashcards.ListByDeck(ctx, session.DeckID)
		if err != nil {
			return domain.TestResponse{}, fmt.Errorf("failed to load deck cards: %w", err)
		}
		for _, card := range cards {
			if card.ID == id {
				expected = card.Back
				break
			}
		}
		if expected == "" {
			return domain.TestResponse{}, fmt.Errorf("%w: flashcard does not belong to the session deck", domain.ErrInvalidInput)
		}
	}

	grade, err := s.ai.GradeAnswer(ctx, req.QuestionText, expected, req.UserAnswer)
	if err != nil {
		s.metrics.IncAICall("grade_answer", "error")
		return domain.TestResponse{}, fmt.Errorf("%w: answer grading failed: %v", domain.ErrExternalServiceUnavailable, err)
	}
	s.metrics.IncAICall("grade_answer", "ok")

	questionType := req.QuestionType
	if questionType == "" {
		questionType = "open_answer"
	}

	response := domain.TestResponse{
		ID:           uuid.New(),
		SessionID:    session.ID,
		FlashcardID:  flashcardID,
		QuestionText: req.QuestionText,
		QuestionType: questionType,
		UserAnswer:   req.UserAnswer,
		AIScore:      grade.Score,
		AIFeedback:   grade.Feedback,
		IsCorrect:    grade.Correct,
	}

	created, err := s.tests.CreateResponse(ctx, response)
	if err != nil {
		return domain.TestResponse{}, fmt.Errorf("failed to store response: %w", err)
	}

	// Grading is an AI call and counts toward the monthly generation log.
	gen := domain.AIGeneration{
		ID:             uuid.New(),
		AccountID:      accountID,
		GenerationType: domain.GenerationTypeGrading,
		DeckID:         &session.DeckID,
		FlashcardID:    flashcardID,
		Model:          s.ai.Model(),
	}
	if err := s.generations.Append(ctx, gen); err != nil {
		s.log.Warnw("Failed to record grading generation", "sessionID", session.ID, "error", err)
	}

	session.CompletedQuestions++
	session.AverageScore = s.sessionAverage(ctx, session)
	if err := s.tests.UpdateSession(ctx, session); err != nil {
		return domain.TestResponse{}, fmt.Errorf("failed to update session progress: %w", err)
	}

	if flashcardID != nil {
		if _, err := s.analytics.Recompute(ctx, accountID, *flashcardID, now); err != nil {
			// Analytics is derived data; a failed recompute must not lose
			// the graded response.
			s.log.Errorw("Failed to recompute card analytics",
				"accountID", accountID, "flashcardID", flashcardID, "error", err)
		}
	}

	return created, nil
}

func (s *testService) sessionAverage(ctx context.Context, session domain.TestSession) float64 {
	responses, err := s.tests.ListResponses(ctx, session.ID)
	if err != nil || len(responses) == 0 {
		return session.AverageScore
	}
	var sum int
	for _, r := range responses {
		sum += r.AIScore
	}
	return float64(sum) / float64(len(responses))
}

func (s *testService) CompleteSession(ctx context.Context, accountID, sessionID uuid.UUID, now time.Time) (domain.TestSession, error) {
	session, err := s.ownedSession(ctx, accountID, sessionID)
	if err != nil {
		return domain.TestSession{}, err
	}
	if session.Status != domain.TestSessionActive {
		return session, nil
	}

	session.Status = domain.TestSessionCompleted
	session.CompletedAt = &now
	session.AverageScore = s.sessionAverage(ctx, session)

	if err := s.tests.UpdateSession(ctx, session); err != nil {
		return domain.TestSession{}, fmt.Errorf("failed to complete session: %w", err)
	}

	s.log.Infow("Test session completed",
		"sessionID", session.ID, "average", session.AverageScore)
	return session, nil
}

func (s *testService) AbandonSession(ctx context.Context, accountID, sessionID uuid.UUID, now time.Time) error {
	session, err := s.ownedSession(ctx, accountID, sessionID)
	if err != nil {
		return err
	}
	if session.Status != domain.TestSessionActive {
		return nil
	}

	session.Status = domain.TestSessionAbandoned
	session.CompletedAt = &now
	if err := s.tests.UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("failed to abandon session: %w", err)
	}
	return nil
}
