package domain

import (
	"time"

	"github.com/google/uuid"
)

// PerformanceAnalytics aggregates graded attempts for one (account,
// flashcard) pair. It is fully recomputed from the complete attempt history
// whenever a new response is recorded, so replaying the same response set is
// idempotent.
type PerformanceAnalytics struct {
	AccountID       uuid.UUID `json:"account_id" db:"account_id"`
	FlashcardID     uuid.UUID `json:"flashcard_id" db:"flashcard_id"`
	TotalAttempts   int       `json:"total_attempts" db:"total_attempts"`
	CorrectAttempts int       `json:"correct_attempts" db:"correct_attempts"`
	AverageScore    float64   `json:"average_score" db:"average_score"`
	BestScore       int       `json:"best_score" db:"best_score"`
	LatestScore     int       `json:"latest_score" db:"latest_score"`
	MasteryLevel    int       `json:"mastery_level" db:"mastery_level"`
	Mastered        bool      `json:"mastered" db:"mastered"`
	LastAttemptAt   time.Time `json:"last_attempt_at" db:"last_attempt_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
