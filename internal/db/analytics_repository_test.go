package db

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuroleaf/neuroleaf-api/internal/domain"
	"github.com/neuroleaf/neuroleaf-api/internal/repository"
	"github.com/neuroleaf/neuroleaf-api/pkg/logger"
)

func newMockRepo(t *testing.T) (*AnalyticsRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	client := NewClientFromDB(sqlx.NewDb(mockDB, "pgx"), logger.New(logger.ERROR))
	return NewAnalyticsRepository(client), mock
}

func TestAnalyticsGet(t *testing.T) {
	repo, mock := newMockRepo(t)
	accountID := uuid.New()
	flashcardID := uuid.New()
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"account_id", "flashcard_id", "total_attempts", "correct_attempts", "average_score",
		"best_score", "latest_score", "mastery_level", "mastered", "last_attempt_at", "updated_at",
	}).AddRow(accountID, flashcardID, 3, 2, 81.7, 95, 80, 75, true, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("FROM performance_analytics")).
		WithArgs(accountID, flashcardID).
		WillReturnRows(rows)

	pa, err := repo.Get(context.Background(), accountID, flashcardID)
	require.NoError(t, err)
	assert.Equal(t, 3, pa.TotalAttempts)
	assert.Equal(t, 75, pa.MasteryLevel)
	assert.True(t, pa.Mastered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsGetNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	accountID := uuid.New()
	flashcardID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM performance_analytics")).
		WithArgs(accountID, flashcardID).
		WillReturnRows(sqlmock.NewRows([]string{"account_id"}))

	_, err := repo.Get(context.Background(), accountID, flashcardID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAnalyticsScoreHistory(t *testing.T) {
	repo, mock := newMockRepo(t)
	accountID := uuid.New()
	flashcardID := uuid.New()

	rows := sqlmock.NewRows([]string{"ai_score"}).AddRow(60).AddRow(75).AddRow(90)
	mock.ExpectQuery(regexp.QuoteMeta("FROM test_responses")).
		WithArgs(accountID, flashcardID).
		WillReturnRows(rows)

	scores, err := repo.ScoreHistory(context.Background(), accountID, flashcardID)
	require.NoError(t, err)
	assert.Equal(t, []int{60, 75, 90}, scores)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAnalyticsUpsert(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now()
	pa := domain.PerformanceAnalytics{
		AccountID:       uuid.New(),
		FlashcardID:     uuid.New(),
		TotalAttempts:   4,
		CorrectAttempts: 3,
		AverageScore:    82.5,
		BestScore:       95,
		LatestScore:     90,
		MasteryLevel:    75,
		Mastered:        true,
		LastAttemptAt:   now,
		UpdatedAt:       now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO performance_analytics")).
		WithArgs(pa.AccountID, pa.FlashcardID, pa.TotalAttempts, pa.CorrectAttempts,
			pa.AverageScore, pa.BestScore, pa.LatestScore, pa.MasteryLevel,
			pa.Mastered, pa.LastAttemptAt, pa.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Upsert(context.Background(), pa))
	assert.NoError(t, mock.ExpectationsWereMet())
}
