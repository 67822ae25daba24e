package validator

import (
	"encoding/json"
	"testing"

	apperrors "github.com/SAP-F-2025/quiz-service/internal/errors"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func question(t *testing.T, options any, key models.AnswerKey) models.Question {
	t.Helper()
	raw, err := models.EncodeAnswerKey(key)
	require.NoError(t, err)

	q := models.Question{ID: 1, Type: key.QuestionType(), Text: "q", Points: 2, CorrectAnswer: raw}
	if options != nil {
		opts, err := json.Marshal(options)
		require.NoError(t, err)
		q.Options = opts
	}
	return q
}

func TestQuestionValidator_ValidateQuestion(t *testing.T) {
	choices := models.ChoiceOptions{Choices: []string{"a", "b", "c"}}
	columns := models.MatchingOptions{Left: []string{"x", "y"}, Right: []string{"1", "2"}}

	tests := []struct {
		name    string
		q       models.Question
		wantErr error
	}{
		{"valid single choice", question(t, choices, models.SingleChoiceKey{Index: 2}), nil},
		{"single choice out of range", question(t, choices, models.SingleChoiceKey{Index: 3}), models.ErrInvalidAnswerKey},
		{"multiple choice duplicates", question(t, choices, models.MultipleChoiceKey{Indices: []int{0, 0}}), models.ErrInvalidAnswerKey},
		{"valid sequence", question(t, choices, models.SequenceKey{Order: []int{2, 0, 1}}), nil},
		{"sequence missing item", question(t, choices, models.SequenceKey{Order: []int{2, 0}}), models.ErrInvalidAnswerKey},
		{"valid matching", question(t, columns, models.MatchingKey{Pairs: []models.MatchPair{{Left: 0, Right: 1}, {Left: 1, Right: 0}}}), nil},
		{"matching left paired twice", question(t, columns, models.MatchingKey{Pairs: []models.MatchPair{{Left: 0, Right: 1}, {Left: 0, Right: 0}}}), models.ErrInvalidAnswerKey},
		{"valid true false", question(t, nil, models.TrueFalseKey{Value: true}), nil},
		{"fill blank with empty variant", question(t, nil, models.FillBlankKey{Blanks: [][]string{{""}}}), models.ErrInvalidAnswerKey},
		{"negative tolerance", question(t, nil, models.NumericKey{Value: 1, Tolerance: -1}), models.ErrInvalidAnswerKey},
		{"valid short answer", question(t, nil, models.ShortAnswerKey{ModelAnswer: "m", Keywords: []string{"k"}}), nil},
		{"unknown type", models.Question{ID: 1, Type: "essay", Points: 1, CorrectAnswer: []byte(`{}`)}, models.ErrUnknownQuestionType},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Question().ValidateQuestion(&tt.q)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestQuestionValidator_ValidateQuiz(t *testing.T) {
	v := New()

	err := v.Question().ValidateQuiz(&models.Quiz{ID: 4})
	assert.Error(t, err)

	quiz := &models.Quiz{ID: 4, Questions: []models.Question{
		question(t, nil, models.TrueFalseKey{Value: true}),
		{ID: 2, Type: "essay", Points: 1, CorrectAnswer: []byte(`{}`)},
	}}
	err = v.Question().ValidateQuiz(quiz)
	assert.ErrorIs(t, err, models.ErrUnknownQuestionType)
}

func TestValidator_CustomRules(t *testing.T) {
	type request struct {
		Answer json.RawMessage `json:"answer" validate:"answer_payload"`
		Reason string          `json:"reason" validate:"omitempty,abandon_reason"`
	}

	v := New()
	assert.NoError(t, v.Validate(request{Answer: json.RawMessage(`null`), Reason: "cancelled"}))

	err := v.Validate(request{Answer: json.RawMessage(`{bad`), Reason: "bored"})
	var errs apperrors.ValidationErrors
	require.ErrorAs(t, err, &errs)
	require.Len(t, errs, 2)
	assert.Equal(t, "answer_payload", errs[0].Rule)
	assert.Equal(t, "abandon_reason", errs[1].Rule)
}
