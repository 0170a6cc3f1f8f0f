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

// TestRepository is the PostgreSQL implementation of
// repository.TestRepository.
type TestRepository struct {
	db  *pgxpool.Pool
	log *logger.Logger
}

// NewTestRepository creates a PostgreSQL test repository
func NewTestRepository(db *pgxpool.Pool, log *logger.Logger) *TestRepository {
	return &TestRepository{
		db:  db,
		log: log,
	}
}

// CreateSession inserts a new test session
func (r *TestRepository) CreateSession(ctx context.Context, session domain.TestSession) (domain.TestSession, error) {
	query := `
		INSERT INTO test_sessions (id, account_id, deck_id, mode, total_questions,
			completed_questions, average_score, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING started_at
	`

	err := r.db.QueryRow(
		ctx,
		query,
		session.ID,
		session.AccountID,
		session.DeckID,
		session.Mode,
		session.TotalQuestions,
		session.CompletedQuestions,
		session.AverageScore,
		session.Status,
	).Scan(&session.StartedAt)

	if err != nil {
		return domain.TestSession{}, fmt.Errorf("failed to create test session: %w", err)
	}
	return session, nil
}

// GetSession returns a session by ID
func (r *TestRepository) GetSession(ctx context.Context, id uuid.UUID) (domain.TestSession, error) {
	query := `
		SELECT id, account_id, deck_id, mode, total_questions, completed_questions,
			average_score, status, started_at, completed_at
		FROM test_sessions
		WHERE id = $1
	`

	var session domain.TestSession
	err := r.db.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.AccountID,
		&session.DeckID,
		&session.Mode,
		&session.TotalQuestions,
		&session.CompletedQuestions,
		&session.AverageScore,
		&session.Status,
		&session.StartedAt,
		&session.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TestSession{}, repository.ErrNotFound
		}
		return domain.TestSession{}, fmt.Errorf("failed to get test session: %w", err)
	}
	return session, nil
}

// UpdateSession overwrites mutable session fields
func (r *TestRepository) UpdateSession(ctx context.Context, session domain.TestSession) error {
	query := `
		UPDATE test_sessions
		SET completed_questions = $1, average_score = $2, status = $3, completed_at = $4
		WHERE id = $5
	`

	result, err := r.db.Exec(ctx, query, session.CompletedQuestions, session.AverageScore,
		session.Status, session.CompletedAt, session.ID)
	if err != nil {
		return fmt.Errorf("failed to update test session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateResponse inserts one graded answer
func (r *TestRepository) CreateResponse(ctx context.Context, response domain.TestResponse) (domain.TestResponse, error) {
	query := `
		INSERT INTO test_responses (id, session_id, flashcard_id, question_text,
			question_type, question_data, user_answer, ai_score, ai_feedback, is_correct)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := r.db.QueryRow(
		ctx,
		query,
		response.ID,
		response.SessionID,
		response.FlashcardID,
		response.QuestionText,
		response.QuestionType,
		response.QuestionData,
		response.UserAnswer,
		response.AIScore,
		response.AIFeedback,
		response.IsCorrect,
	).Scan(&response.CreatedAt)

	if err != nil {
		return domain.TestResponse{}, fmt.Errorf("failed to create test response: %w", err)
	}
	return response, nil
}

// ListResponses returns a session's responses in submission order
func (r *TestRepository) ListResponses(ctx context.Context, sessionID uuid.UUID) ([]domain.TestResponse, error) {
	query := `
		SELECT id, session_id, flashcard_id, question_text, question_type, question_data,
			user_answer, ai_score, ai_feedback, is_correct, created_at
		FROM test_responses
		WHERE session_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query test responses: %w", err)
	}
	defer rows.Close()

	var responses []domain.TestResponse
	for rows.Next() {
		var response domain.TestResponse
		err := rows.Scan(
			&response.ID,
			&response.SessionID,
			&response.FlashcardID,
			&response.QuestionText,
			&response.QuestionType,
			&response.QuestionData,
			&response.UserAnswer,
			&response.AIScore,
			&response.AIFeedback,
			&response.IsCorrect,
			&response.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan test response: %w", err)
		}
		responses = append(responses, response)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating test responses: %w", err)
	}
	return responses, nil
}
