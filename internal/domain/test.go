package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TestMode selects how questions are produced for a session.
type TestMode string

const (
	// TestModeFlashcard asks the card fronts verbatim.
	TestModeFlashcard TestMode = "flashcard"
	// TestModeAIQuestions generates open questions from the deck content.
	TestModeAIQuestions TestMode = "ai_questions"
)

// TestSessionStatus is the lifecycle state of a session.
type TestSessionStatus string

const (
	TestSessionActive    TestSessionStatus = "active"
	TestSessionCompleted TestSessionStatus = "completed"
	TestSessionAbandoned TestSessionStatus = "abandoned"
)

// TestSession represents one AI-graded test attempt over a deck.
type TestSession struct {
	ID                 uuid.UUID         `json:"id" db:"id"`
	AccountID          uuid.UUID         `json:"account_id" db:"account_id"`
	DeckID             uuid.UUID         `json:"deck_id" db:"deck_id"`
	Mode               TestMode          `json:"mode" db:"mode"`
	TotalQuestions     int               `json:"total_questions" db:"total_questions"`
	CompletedQuestions int               `json:"completed_questions" db:"completed_questions"`
	AverageScore       float64           `json:"average_score" db:"average_score"`
	Status             TestSessionStatus `json:"status" db:"status"`
	StartedAt          time.Time         `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
}

// TestResponse is one graded answer within a test session.
type TestResponse struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	SessionID    uuid.UUID       `json:"session_id" db:"session_id"`
	FlashcardID  *uuid.UUID      `json:"flashcard_id,omitempty" db:"flashcard_id"`
	QuestionText string          `json:"question_text" db:"question_text"`
	QuestionType string          `json:"question_type" db:"question_type"`
	QuestionData json.RawMessage `json:"question_data,omitempty" db:"question_data"`
	UserAnswer   string          `json:"user_answer" db:"user_answer"`
	AIScore      int             `json:"ai_score" db:"ai_score"`
	AIFeedback   string          `json:"ai_feedback" db:"ai_feedback"`
	IsCorrect    bool            `json:"is_correct" db:"is_correct"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// TestQuestion is the prompt for the session's next unanswered card.
// Flashcard sessions ask the card front verbatim; ai_questions sessions ask
// an AI-written open question over the same card.
type TestQuestion struct {
	FlashcardID  uuid.UUID `json:"flashcard_id"`
	QuestionText string    `json:"question_text"`
	QuestionType string    `json:"question_type"`
}

// StartTestRequest opens a session against a deck.
type StartTestRequest struct {
	Mode          string `json:"mode" validate:"required,oneof=flashcard ai_questions"`
	QuestionCount int    `json:"question_count" validate:"omitempty,min=1,max=50"`
}

// SubmitResponseRequest submits one answer for grading.
type SubmitResponseRequest struct {
	FlashcardID  string `json:"flashcard_id" validate:"omitempty,uuid"`
	QuestionText string `json:"question_text" validate:"required,max=5000"`
	QuestionType string `json:"question_type" validate:"omitempty,max=50"`
	UserAnswer   string `json:"user_answer" validate:"required,max=10000"`
}
