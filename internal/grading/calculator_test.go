package grading

import (
	"encoding/json"
	"testing"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func answer(payload string) models.AnswerRecord {
	return models.AnswerRecord{Answer: json.RawMessage(payload)}
}

func fourQuestionQuiz(t *testing.T) *models.Quiz {
	return &models.Quiz{
		ID:           1,
		PassingScore: 60,
		Questions: []models.Question{
			newQuestion(t, 1, 5, models.SingleChoiceKey{Index: 1}),
			newQuestion(t, 2, 5, models.TrueFalseKey{Value: true}),
			newQuestion(t, 3, 5, models.NumericKey{Value: 42}),
			newQuestion(t, 4, 5, models.SequenceKey{Order: []int{0, 1, 2}}),
		},
	}
}

func TestCalculator_Score(t *testing.T) {
	calculator := NewCalculator(NewEvaluator())

	t.Run("two of four correct", func(t *testing.T) {
		answers := models.AnswerMap{
			1: answer(`1`),
			2: answer(`true`),
			3: answer(`41`),
		}

		result, err := calculator.Score(fourQuestionQuiz(t), answers)

		require.NoError(t, err)
		assert.Equal(t, 20, result.MaxScore)
		assert.Equal(t, 10.0, result.PointsEarned)
		assert.Equal(t, 50.0, result.ScorePercentage)
		assert.False(t, result.Passed)
		assert.Equal(t, 2, result.CorrectCount)
		assert.Equal(t, 1, result.IncorrectCount)
		assert.Equal(t, 1, result.SkippedCount)
		assert.Equal(t, models.OutcomeSkipped, result.Questions[4].Outcome)
		assert.Equal(t, models.OutcomeIncorrect, result.Questions[3].Outcome)
		assert.Equal(t, BandNeedsImprovement, Band(result))
	})

	t.Run("passing boundary is inclusive", func(t *testing.T) {
		quiz := fourQuestionQuiz(t)
		quiz.PassingScore = 75
		answers := models.AnswerMap{1: answer(`1`), 2: answer(`true`), 3: answer(`42`)}

		result, err := calculator.Score(quiz, answers)

		require.NoError(t, err)
		assert.Equal(t, 75.0, result.ScorePercentage)
		assert.True(t, result.Passed)
		assert.Equal(t, BandGood, Band(result))
	})

	t.Run("malformed answer does not abort scoring", func(t *testing.T) {
		answers := models.AnswerMap{
			1: answer(`{"oops":1}`),
			2: answer(`true`),
			3: answer(`42`),
			4: answer(`[0,1,2]`),
		}

		result, err := calculator.Score(fourQuestionQuiz(t), answers)

		require.NoError(t, err)
		assert.Equal(t, 3, result.CorrectCount)
		assert.Equal(t, 1, result.IncorrectCount)
		assert.Equal(t, 75.0, result.ScorePercentage)
	})

	t.Run("null answer counts as skipped and foreign answers are ignored", func(t *testing.T) {
		answers := models.AnswerMap{1: answer(`null`), 99: answer(`1`)}

		result, err := calculator.Score(fourQuestionQuiz(t), answers)

		require.NoError(t, err)
		assert.Equal(t, 4, result.SkippedCount)
		assert.Equal(t, 0, result.IncorrectCount)
		assert.NotContains(t, result.Questions, uint(99))
	})

	t.Run("empty quiz scores zero", func(t *testing.T) {
		result, err := calculator.Score(&models.Quiz{PassingScore: 0}, models.AnswerMap{})

		require.NoError(t, err)
		assert.Equal(t, 0, result.MaxScore)
		assert.Equal(t, 0.0, result.ScorePercentage)
		assert.True(t, result.Passed)
	})

	t.Run("unknown question type fails the whole attempt", func(t *testing.T) {
		quiz := fourQuestionQuiz(t)
		quiz.Questions = append(quiz.Questions, models.Question{ID: 5, Type: "essay", Points: 5, CorrectAnswer: []byte(`{}`)})

		_, err := calculator.Score(quiz, models.AnswerMap{})

		assert.ErrorIs(t, err, models.ErrUnknownQuestionType)
	})
}

func TestCalculator_PartialCreditRounding(t *testing.T) {
	calculator := NewCalculator(NewEvaluator(WithShortAnswerPartialCredit(true)))
	quiz := &models.Quiz{
		PassingScore: 50,
		Questions: []models.Question{
			newQuestion(t, 1, 3, models.ShortAnswerKey{ModelAnswer: "m", Keywords: []string{"a", "b", "c"}}),
		},
	}

	result, err := calculator.Score(quiz, models.AnswerMap{1: answer(`"a"`)})

	require.NoError(t, err)
	assert.Equal(t, 1.0, result.PointsEarned)
	assert.Equal(t, 33.33, result.ScorePercentage)
	assert.Equal(t, 1, result.IncorrectCount)
	assert.Equal(t, 0.3333, result.Questions[1].Credit)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0.0, Percentage(5, 0))
	assert.Equal(t, 66.67, Percentage(2, 3))
	assert.Equal(t, 100.0, Percentage(20, 20))
}
