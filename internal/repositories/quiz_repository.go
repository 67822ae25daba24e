package repositories

import (
	"context"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// QuizRepository gives read access to quizzes and their questions. Authoring happens elsewhere;
// Create exists for seeding.
type QuizRepository interface {
	Create(ctx context.Context, quiz *models.Quiz) error
	GetByID(ctx context.Context, id uint) (*models.Quiz, error)
	// GetWithQuestions loads the quiz with questions sorted by order, then id.
	GetWithQuestions(ctx context.Context, id uint) (*models.Quiz, error)
	UpdateStatistics(ctx context.Context, id uint, totalAttempts int, averageScore float64) error
}
