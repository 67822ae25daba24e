package postgres

import (
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"gorm.io/gorm"
)

type repository struct {
	quiz        repositories.QuizRepository
	attempt     repositories.AttemptRepository
	performance repositories.PerformanceRepository
}

// NewRepository wires the PostgreSQL implementations of every repository
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		quiz:        NewQuizPostgreSQL(db),
		attempt:     NewAttemptPostgreSQL(db),
		performance: NewPerformancePostgreSQL(db),
	}
}

func (r *repository) Quiz() repositories.QuizRepository { return r.quiz }

func (r *repository) Attempt() repositories.AttemptRepository { return r.attempt }

func (r *repository) Performance() repositories.PerformanceRepository { return r.performance }
