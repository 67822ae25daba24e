package repositories

import (
	"context"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

type PerformanceRepository interface {
	Get(ctx context.Context, userID string, quizID uint) (*models.PerformanceRecord, error)
	// Upsert replaces the record identified by user, quiz and subject.
	Upsert(ctx context.Context, record *models.PerformanceRecord) error
}
