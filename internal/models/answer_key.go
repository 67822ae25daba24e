package models

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
)

var (
	ErrUnknownQuestionType = errors.New("unknown question type")
	ErrInvalidAnswerKey    = errors.New("invalid answer key")
)

// AnswerKey is the correct answer specification of a question. Each question type has
// exactly one implementation; the set is closed to this package.
type AnswerKey interface {
	QuestionType() QuestionType
	isAnswerKey()
}

type SingleChoiceKey struct {
	Index int `json:"index" validate:"min=0"`
}

type MultipleChoiceKey struct {
	Indices []int `json:"indices" validate:"required,min=1,unique,dive,min=0"`
}

type TrueFalseKey struct {
	Value bool `json:"value"`
}

type MatchPair struct {
	Left  int `json:"left" validate:"min=0"`
	Right int `json:"right" validate:"min=0"`
}

type MatchingKey struct {
	Pairs []MatchPair `json:"pairs" validate:"required,min=1,dive"`
}

type SequenceKey struct {
	Order []int `json:"order" validate:"required,min=2,unique,dive,min=0"`
}

// FillBlankKey holds, for every blank, the list of accepted variants.
type FillBlankKey struct {
	Blanks [][]string `json:"blanks" validate:"required,min=1,dive,required,min=1,dive,required"`
}

type ShortAnswerKey struct {
	ModelAnswer string   `json:"model_answer" validate:"required"`
	Keywords    []string `json:"keywords" validate:"omitempty,dive,required"`
}

type NumericKey struct {
	Value     float64 `json:"value"`
	Tolerance float64 `json:"tolerance" validate:"min=0"`
}

func (SingleChoiceKey) QuestionType() QuestionType   { return SingleChoice }
func (MultipleChoiceKey) QuestionType() QuestionType { return MultipleChoice }
func (TrueFalseKey) QuestionType() QuestionType      { return TrueFalse }
func (MatchingKey) QuestionType() QuestionType       { return Matching }
func (SequenceKey) QuestionType() QuestionType       { return Sequence }
func (FillBlankKey) QuestionType() QuestionType      { return FillBlank }
func (ShortAnswerKey) QuestionType() QuestionType    { return ShortAnswer }
func (NumericKey) QuestionType() QuestionType        { return Numeric }

func (SingleChoiceKey) isAnswerKey()   {}
func (MultipleChoiceKey) isAnswerKey() {}
func (TrueFalseKey) isAnswerKey()      {}
func (MatchingKey) isAnswerKey()       {}
func (SequenceKey) isAnswerKey()       {}
func (FillBlankKey) isAnswerKey()      {}
func (ShortAnswerKey) isAnswerKey()    {}
func (NumericKey) isAnswerKey()        {}

// DecodeAnswerKey parses a stored answer key for the given question type.
func DecodeAnswerKey(t QuestionType, raw []byte) (AnswerKey, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: empty answer key for %s", ErrInvalidAnswerKey, t)
	}

	var key AnswerKey
	var err error
	switch t {
	case SingleChoice:
		var k SingleChoiceKey
		err = json.Unmarshal(raw, &k)
		key = k
	case MultipleChoice:
		var k MultipleChoiceKey
		err = json.Unmarshal(raw, &k)
		key = k
	case TrueFalse:
		var k TrueFalseKey
		err = json.Unmarshal(raw, &k)
		key = k
	case Matching:
		var k MatchingKey
		err = json.Unmarshal(raw, &k)
		key = k
	case Sequence:
		var k SequenceKey
		err = json.Unmarshal(raw, &k)
		key = k
	case FillBlank:
		var k FillBlankKey
		err = json.Unmarshal(raw, &k)
		key = k
	case ShortAnswer:
		var k ShortAnswerKey
		err = json.Unmarshal(raw, &k)
		key = k
	case Numeric:
		var k NumericKey
		err = json.Unmarshal(raw, &k)
		key = k
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownQuestionType, t)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidAnswerKey, t, err)
	}
	return key, nil
}

// EncodeAnswerKey serializes a key for the correct_answer column.
func EncodeAnswerKey(key AnswerKey) (datatypes.JSON, error) {
	raw, err := json.Marshal(key)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answer key: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// AnswerKey decodes the question's correct answer column.
func (q *Question) AnswerKey() (AnswerKey, error) {
	key, err := DecodeAnswerKey(q.Type, q.CorrectAnswer)
	if err != nil {
		return nil, fmt.Errorf("question %d: %w", q.ID, err)
	}
	return key, nil
}
