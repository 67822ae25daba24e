package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.QuizAttempt) error {
	if err := a.db.WithContext(ctx).Create(attempt).Error; err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}
	return nil
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	if err := a.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, notFound(err, "attempt", id)
	}
	return &attempt, nil
}

// UpdateWithLock runs SELECT ... FOR UPDATE, applies mutate and saves inside one transaction
func (a *AttemptPostgreSQL) UpdateWithLock(ctx context.Context, id uint, mutate repositories.AttemptMutation) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&attempt, id).Error; err != nil {
			return notFound(err, "attempt", id)
		}
		if err := mutate(&attempt); err != nil {
			return err
		}
		if err := tx.Save(&attempt).Error; err != nil {
			return fmt.Errorf("failed to save attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) List(ctx context.Context, filters repositories.AttemptFilters) ([]models.QuizAttempt, error) {
	var attempts []models.QuizAttempt
	query := applyAttemptFilters(a.db.WithContext(ctx).Model(&models.QuizAttempt{}), filters)
	if err := query.Order("started_at DESC, id DESC").Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) GetActiveAttempt(ctx context.Context, userID string, quizID uint) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ? AND status = ?", userID, quizID, models.AttemptInProgress).
		Order("started_at DESC").
		First(&attempt).Error
	if err != nil {
		return nil, notFound(err, "active attempt for quiz", quizID)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) ListCompleted(ctx context.Context, userID string, quizID uint) ([]models.QuizAttempt, error) {
	var attempts []models.QuizAttempt
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ? AND status = ?", userID, quizID, models.AttemptCompleted).
		Order("id ASC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list completed attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) ListOverdue(ctx context.Context, query repositories.OverdueQuery) ([]models.QuizAttempt, error) {
	var attempts []models.QuizAttempt
	db := a.db.WithContext(ctx).
		Where("status = ? AND deadline IS NOT NULL AND deadline < ?", models.AttemptInProgress, query.Now).
		Order("deadline ASC")
	if query.Limit > 0 {
		db = db.Limit(query.Limit)
	}
	if err := db.Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list overdue attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) GetQuizStats(ctx context.Context, quizID uint) (*repositories.QuizAttemptStats, error) {
	var row struct {
		CompletedCount int
		AverageScore   float64
		PassedCount    int
	}
	err := a.db.WithContext(ctx).
		Model(&models.QuizAttempt{}).
		Select("COUNT(*) AS completed_count, COALESCE(AVG(score_percentage), 0) AS average_score, "+
			"COUNT(*) FILTER (WHERE passed) AS passed_count").
		Where("quiz_id = ? AND status = ?", quizID, models.AttemptCompleted).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get quiz stats: %w", err)
	}

	stats := &repositories.QuizAttemptStats{
		QuizID:         quizID,
		CompletedCount: row.CompletedCount,
		AverageScore:   row.AverageScore,
	}
	if row.CompletedCount > 0 {
		stats.PassRate = float64(row.PassedCount) / float64(row.CompletedCount) * 100
	}
	return stats, nil
}
