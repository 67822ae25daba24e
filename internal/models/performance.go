package models

import (
	"time"

	"gorm.io/datatypes"
)

// WeakConcept is a tag the learner keeps getting wrong.
type WeakConcept struct {
	Tag       string  `json:"tag"`
	ErrorRate float64 `json:"error_rate"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
}

// PerformanceRecord summarises every completed attempt of one user on one quiz.
// It is always rebuilt from the attempt history, never patched incrementally.
type PerformanceRecord struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	UserID    string `json:"user_id" gorm:"not null;size:64;uniqueIndex:idx_performance_key"`
	QuizID    uint   `json:"quiz_id" gorm:"not null;uniqueIndex:idx_performance_key"`
	SubjectID uint   `json:"subject_id" gorm:"not null;uniqueIndex:idx_performance_key"`

	TotalAttempts   int                              `json:"total_attempts"`
	BestScore       float64                          `json:"best_score"`
	AverageScore    float64                          `json:"average_score"`
	ImprovementRate *float64                         `json:"improvement_rate"` // best over average in percent, nil below two attempts
	TotalTimeSpent  int                              `json:"total_time_spent"` // seconds
	LastAttemptAt   *time.Time                       `json:"last_attempt_at,omitempty"`
	WeakConcepts    datatypes.JSONSlice[WeakConcept] `json:"weak_concepts" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (PerformanceRecord) TableName() string {
	return "user_quiz_performances"
}
