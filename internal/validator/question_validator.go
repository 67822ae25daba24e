package validator

import (
	"fmt"
	"slices"

	apperrors "github.com/SAP-F-2025/quiz-service/internal/errors"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// QuestionValidator checks authored questions before any learner can answer them.
// Every problem it reports is a content bug, not a learner error.
type QuestionValidator struct {
	structValidator *validator.Validate
}

// NewQuestionValidator creates a new question validator
func NewQuestionValidator(structValidator *validator.Validate) *QuestionValidator {
	return &QuestionValidator{structValidator: structValidator}
}

// ValidateQuestion validates a complete question object
func (v *QuestionValidator) ValidateQuestion(question *models.Question) error {
	if !question.Type.IsValid() {
		return fmt.Errorf("question %d: %w: %q", question.ID, models.ErrUnknownQuestionType, question.Type)
	}
	if question.Points < 1 {
		return fmt.Errorf("question %d: points must be positive", question.ID)
	}

	key, err := question.AnswerKey()
	if err != nil {
		return err
	}
	if err := v.structValidator.Struct(key); err != nil {
		return fmt.Errorf("question %d: %w: %v", question.ID, models.ErrInvalidAnswerKey, apperrors.ToValidationErrors(err))
	}
	if err := v.validateAgainstOptions(question, key); err != nil {
		return fmt.Errorf("question %d: %w: %v", question.ID, models.ErrInvalidAnswerKey, err)
	}
	return nil
}

// ValidateQuiz validates every question of a quiz and stops at the first failure
func (v *QuestionValidator) ValidateQuiz(quiz *models.Quiz) error {
	if len(quiz.Questions) == 0 {
		return fmt.Errorf("quiz %d has no questions", quiz.ID)
	}
	for i := range quiz.Questions {
		if err := v.ValidateQuestion(&quiz.Questions[i]); err != nil {
			return fmt.Errorf("quiz %d: %w", quiz.ID, err)
		}
	}
	return nil
}

// validateAgainstOptions checks that the key only refers to options that exist
func (v *QuestionValidator) validateAgainstOptions(question *models.Question, key models.AnswerKey) error {
	switch k := key.(type) {
	case models.SingleChoiceKey:
		return checkIndices(question.OptionCount(), k.Index)
	case models.MultipleChoiceKey:
		return checkIndices(question.OptionCount(), k.Indices...)
	case models.SequenceKey:
		count := question.OptionCount()
		if len(k.Order) != count {
			return fmt.Errorf("sequence order has %d items, options have %d", len(k.Order), count)
		}
		return checkIndices(count, k.Order...)
	case models.MatchingKey:
		var opts models.MatchingOptions
		if err := question.DecodeOptions(&opts); err != nil {
			return err
		}
		seen := map[int]bool{}
		for _, pair := range k.Pairs {
			if pair.Left >= len(opts.Left) || pair.Right >= len(opts.Right) {
				return fmt.Errorf("pair %d-%d is outside the matching columns", pair.Left, pair.Right)
			}
			if seen[pair.Left] {
				return fmt.Errorf("left item %d is paired twice", pair.Left)
			}
			seen[pair.Left] = true
		}
	}
	return nil
}

func checkIndices(count int, indices ...int) error {
	if count == 0 {
		return fmt.Errorf("question has no options")
	}
	if i := slices.IndexFunc(indices, func(index int) bool { return index < 0 || index >= count }); i >= 0 {
		return fmt.Errorf("option index %d out of range [0,%d)", indices[i], count)
	}
	return nil
}
