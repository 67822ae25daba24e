package repositories

import (
	"context"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// AttemptMutation changes a locked attempt. Returning an error aborts the write.
type AttemptMutation func(attempt *models.QuizAttempt) error

// AttemptRepository interface for quiz attempt operations
type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.QuizAttempt) error
	GetByID(ctx context.Context, id uint) (*models.QuizAttempt, error)

	// UpdateWithLock reads the attempt under an exclusive lock, applies mutate and saves
	// the result atomically. Concurrent calls for one attempt are serialized.
	UpdateWithLock(ctx context.Context, id uint, mutate AttemptMutation) (*models.QuizAttempt, error)

	// Query operations
	List(ctx context.Context, filters AttemptFilters) ([]models.QuizAttempt, error)
	GetActiveAttempt(ctx context.Context, userID string, quizID uint) (*models.QuizAttempt, error)
	ListCompleted(ctx context.Context, userID string, quizID uint) ([]models.QuizAttempt, error)
	ListOverdue(ctx context.Context, query OverdueQuery) ([]models.QuizAttempt, error)

	// Statistics
	GetQuizStats(ctx context.Context, quizID uint) (*QuizAttemptStats, error)
}
