package grading

import (
	"encoding/json"
	"math"
	"slices"
	"strings"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// Evaluation is the verdict on one submitted answer.
type Evaluation struct {
	Correct       bool    `json:"correct"`
	Credit        float64 `json:"credit"`
	PointsAwarded float64 `json:"points_awarded"`
	// ShapeMismatch is set when the payload did not have the form the question type expects.
	ShapeMismatch bool `json:"shape_mismatch,omitempty"`
}

// Evaluator grades single answers. It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	cfg Config
}

func NewEvaluator(opts ...Option) *Evaluator {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Evaluator{cfg: cfg}
}

func (e *Evaluator) Config() Config {
	return e.cfg
}

// Evaluate grades payload against the question's answer key. The only errors returned
// come from the question itself (unknown type, unreadable key); malformed learner input
// is graded as incorrect.
func (e *Evaluator) Evaluate(q *models.Question, payload json.RawMessage) (Evaluation, error) {
	key, err := q.AnswerKey()
	if err != nil {
		return Evaluation{}, err
	}
	return e.EvaluateKey(key, q.Points, payload), nil
}

// EvaluateKey grades payload against an already decoded key.
func (e *Evaluator) EvaluateKey(key models.AnswerKey, points int, payload json.RawMessage) Evaluation {
	var credit float64
	var ok bool

	switch k := key.(type) {
	case models.SingleChoiceKey:
		credit, ok = e.singleChoice(k, payload)
	case models.MultipleChoiceKey:
		credit, ok = e.multipleChoice(k, payload)
	case models.TrueFalseKey:
		credit, ok = e.trueFalse(k, payload)
	case models.MatchingKey:
		credit, ok = e.matching(k, payload)
	case models.SequenceKey:
		credit, ok = e.sequence(k, payload)
	case models.FillBlankKey:
		credit, ok = e.fillBlank(k, payload)
	case models.ShortAnswerKey:
		credit, ok = e.shortAnswer(k, payload)
	case models.NumericKey:
		credit, ok = e.numeric(k, payload)
	}

	if !ok {
		return Evaluation{ShapeMismatch: true}
	}

	credit = clamp01(credit)
	return Evaluation{
		Correct:       credit == 1,
		Credit:        credit,
		PointsAwarded: float64(points) * credit,
	}
}

// ===== PER TYPE RULES =====
// Each rule returns the credit fraction and whether the payload had the expected shape.

func (e *Evaluator) singleChoice(key models.SingleChoiceKey, payload json.RawMessage) (float64, bool) {
	index, ok := decodeIndex(payload)
	if !ok {
		return 0, false
	}
	return boolCredit(index == key.Index), true
}

func (e *Evaluator) multipleChoice(key models.MultipleChoiceKey, payload json.RawMessage) (float64, bool) {
	indices, ok := decodeIndices(payload)
	if !ok {
		return 0, false
	}

	expected := toSet(key.Indices)
	submitted := toSet(indices)

	hits, misses := 0, 0
	for index := range submitted {
		if _, found := expected[index]; found {
			hits++
		} else {
			misses++
		}
	}

	if hits == len(expected) && misses == 0 {
		return 1, true
	}
	if !e.cfg.MultipleChoicePartialCredit || len(expected) == 0 {
		return 0, true
	}
	return math.Max(0, float64(hits-misses)/float64(len(expected))), true
}

func (e *Evaluator) trueFalse(key models.TrueFalseKey, payload json.RawMessage) (float64, bool) {
	value, ok := decodeBool(payload)
	if !ok {
		return 0, false
	}
	return boolCredit(value == key.Value), true
}

func (e *Evaluator) matching(key models.MatchingKey, payload json.RawMessage) (float64, bool) {
	pairs, ok := decodePairs(payload)
	if !ok {
		return 0, false
	}

	submitted := make(map[int]int, len(pairs))
	for _, pair := range pairs {
		if right, dup := submitted[pair.Left]; dup && right != pair.Right {
			// one left item matched to two right items
			return 0, false
		}
		submitted[pair.Left] = pair.Right
	}

	matched := 0
	for _, pair := range key.Pairs {
		if right, found := submitted[pair.Left]; found && right == pair.Right {
			matched++
		}
	}

	if matched == len(key.Pairs) && len(submitted) == len(key.Pairs) {
		return 1, true
	}
	if !e.cfg.MatchingPartialCredit || len(key.Pairs) == 0 {
		return 0, true
	}
	return float64(matched) / float64(len(key.Pairs)), true
}

func (e *Evaluator) sequence(key models.SequenceKey, payload json.RawMessage) (float64, bool) {
	order, ok := decodeIndices(payload)
	if !ok {
		return 0, false
	}
	return boolCredit(slices.Equal(order, key.Order)), true
}

func (e *Evaluator) fillBlank(key models.FillBlankKey, payload json.RawMessage) (float64, bool) {
	answers, ok := decodeTexts(payload)
	if !ok {
		return 0, false
	}
	if len(answers) != len(key.Blanks) {
		return 0, true
	}

	for i, accepted := range key.Blanks {
		given := NormalizeText(answers[i])
		if given == "" {
			return 0, true
		}
		if !slices.ContainsFunc(accepted, func(variant string) bool {
			return NormalizeText(variant) == given
		}) {
			return 0, true
		}
	}
	return 1, true
}

func (e *Evaluator) shortAnswer(key models.ShortAnswerKey, payload json.RawMessage) (float64, bool) {
	text, ok := decodeText(payload)
	if !ok {
		return 0, false
	}
	given := NormalizeText(text)
	if given == "" {
		return 0, true
	}

	keywords := make([]string, 0, len(key.Keywords))
	for _, keyword := range key.Keywords {
		if k := NormalizeText(keyword); k != "" {
			keywords = append(keywords, k)
		}
	}
	if len(keywords) == 0 {
		return boolCredit(given == NormalizeText(key.ModelAnswer)), true
	}

	found := 0
	for _, keyword := range keywords {
		if strings.Contains(given, keyword) {
			found++
		}
	}

	fraction := float64(found) / float64(len(keywords))
	if fraction >= e.cfg.ShortAnswerThreshold {
		return 1, true
	}
	if e.cfg.ShortAnswerPartialCredit {
		return fraction, true
	}
	return 0, true
}

func (e *Evaluator) numeric(key models.NumericKey, payload json.RawMessage) (float64, bool) {
	value, ok := decodeNumber(payload)
	if !ok {
		return 0, false
	}
	return boolCredit(math.Abs(value-key.Value) <= key.Tolerance), true
}

// ===== HELPERS =====

func boolCredit(correct bool) float64 {
	if correct {
		return 1
	}
	return 0
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toSet(values []int) map[int]struct{} {
	set := make(map[int]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
