package repositories

import (
	"errors"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// ErrNotFound is returned by every repository when the requested row does not exist.
var ErrNotFound = errors.New("record not found")

// AttemptFilters narrows attempt listings.
type AttemptFilters struct {
	UserID string
	QuizID uint
	Status *models.AttemptStatus
	Limit  int
	Offset int
}

// QuizAttemptStats summarises the completed attempts of one quiz.
type QuizAttemptStats struct {
	QuizID         uint    `json:"quiz_id"`
	CompletedCount int     `json:"completed_count"`
	AverageScore   float64 `json:"average_score"`
	PassRate       float64 `json:"pass_rate"`
}

// OverdueQuery selects in-progress attempts whose deadline has passed.
type OverdueQuery struct {
	Now   time.Time
	Limit int
}

// Repository groups the repositories the services depend on
type Repository interface {
	Quiz() QuizRepository
	Attempt() AttemptRepository
	Performance() PerformanceRepository
}
