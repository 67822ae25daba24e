package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	SingleChoice   QuestionType = "mcq_single"
	MultipleChoice QuestionType = "mcq_multiple"
	TrueFalse      QuestionType = "true_false"
	Matching       QuestionType = "matching"
	Sequence       QuestionType = "sequence"
	FillBlank      QuestionType = "fill_blank"
	ShortAnswer    QuestionType = "short_answer"
	Numeric        QuestionType = "numeric"
)

// QuestionTypes lists every type the grading engine understands.
var QuestionTypes = []QuestionType{
	SingleChoice, MultipleChoice, TrueFalse, Matching, Sequence, FillBlank, ShortAnswer, Numeric,
}

func (t QuestionType) IsValid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

type Question struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	QuizID     uint            `json:"quiz_id" gorm:"not null;index"`
	Type       QuestionType    `json:"type" gorm:"not null;size:20" validate:"required,question_type"`
	Text       string          `json:"text" gorm:"type:text;not null" validate:"required,min=1"`
	Points     int             `json:"points" gorm:"not null;default:1" validate:"required,min=1,max=100"`
	Difficulty DifficultyLevel `json:"difficulty" gorm:"size:10;default:medium" validate:"omitempty,difficulty_level"`
	Order      int             `json:"order" gorm:"not null;default:0"`

	// Options holds the displayable parts of the question (choice texts, matching columns,
	// sequence items). CorrectAnswer holds the type specific answer key, see AnswerKey.
	Options       datatypes.JSON              `json:"options,omitempty" gorm:"type:jsonb"`
	CorrectAnswer datatypes.JSON              `json:"-" gorm:"type:jsonb;not null"`
	Tags          datatypes.JSONSlice[string] `json:"tags" gorm:"type:jsonb"`
	Explanation   *string                     `json:"explanation,omitempty" gorm:"type:text"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Question) TableName() string {
	return "questions"
}

// ===== DISPLAY OPTIONS =====

// ChoiceOptions is the option payload of mcq_single, mcq_multiple and sequence questions.
type ChoiceOptions struct {
	Choices []string `json:"choices"`
}

// MatchingOptions is the option payload of matching questions.
type MatchingOptions struct {
	Left  []string `json:"left"`
	Right []string `json:"right"`
}

// DecodeOptions unmarshals the options column into dst. Empty options leave dst untouched.
func (q *Question) DecodeOptions(dst any) error {
	if len(q.Options) == 0 {
		return nil
	}
	if err := json.Unmarshal(q.Options, dst); err != nil {
		return fmt.Errorf("failed to decode options of question %d: %w", q.ID, err)
	}
	return nil
}

// OptionCount returns how many selectable items the question displays.
func (q *Question) OptionCount() int {
	switch q.Type {
	case SingleChoice, MultipleChoice, Sequence:
		var opts ChoiceOptions
		if err := q.DecodeOptions(&opts); err != nil {
			return 0
		}
		return len(opts.Choices)
	case TrueFalse:
		return 2
	case Matching:
		var opts MatchingOptions
		if err := q.DecodeOptions(&opts); err != nil {
			return 0
		}
		return len(opts.Left)
	default:
		return 0
	}
}
