package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PerformancePostgreSQL struct {
	db *gorm.DB
}

func NewPerformancePostgreSQL(db *gorm.DB) repositories.PerformanceRepository {
	return &PerformancePostgreSQL{db: db}
}

func (p *PerformancePostgreSQL) Get(ctx context.Context, userID string, quizID uint) (*models.PerformanceRecord, error) {
	var record models.PerformanceRecord
	err := p.db.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		First(&record).Error
	if err != nil {
		return nil, notFound(err, "performance for quiz", quizID)
	}
	return &record, nil
}

func (p *PerformancePostgreSQL) Upsert(ctx context.Context, record *models.PerformanceRecord) error {
	err := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "quiz_id"}, {Name: "subject_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"total_attempts", "best_score", "average_score", "improvement_rate", "total_time_spent",
				"last_attempt_at", "weak_concepts", "updated_at",
			}),
		}).
		Create(record).Error
	if err != nil {
		return fmt.Errorf("failed to upsert performance record: %w", err)
	}
	return nil
}
