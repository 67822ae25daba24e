package models

import (
	"time"

	"gorm.io/gorm"
)

type Quiz struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	SubjectID    uint    `json:"subject_id" gorm:"not null;index"`
	Title        string  `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Description  *string `json:"description" gorm:"type:text"`
	PassingScore float64 `json:"passing_score" gorm:"not null;default:60" validate:"min=0,max=100"`

	// Display and timing
	ShuffleQuestions bool `json:"shuffle_questions" gorm:"default:false"`
	ShuffleOptions   bool `json:"shuffle_options" gorm:"default:false"`
	TimeLimitMinutes int  `json:"time_limit_minutes" gorm:"default:0" validate:"min=0,max=600"` // 0 = untimed
	AllowReview      bool `json:"allow_review" gorm:"default:true"`

	// Aggregate statistics, refreshed whenever an attempt completes
	TotalAttempts int     `json:"total_attempts" gorm:"default:0"`
	AverageScore  float64 `json:"average_score" gorm:"default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:QuizID"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// MaxScore is the sum of all question points.
func (q *Quiz) MaxScore() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// Deadline returns the moment an attempt started at startedAt runs out of time.
// The second return value is false for untimed quizzes.
func (q *Quiz) Deadline(startedAt time.Time) (time.Time, bool) {
	if q.TimeLimitMinutes <= 0 {
		return time.Time{}, false
	}
	return startedAt.Add(time.Duration(q.TimeLimitMinutes) * time.Minute), true
}

// QuestionByID returns the question with the given id, or nil if it is not part of the quiz.
func (q *Quiz) QuestionByID(id uint) *Question {
	for i := range q.Questions {
		if q.Questions[i].ID == id {
			return &q.Questions[i]
		}
	}
	return nil
}
