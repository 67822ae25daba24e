package grading

import (
	"fmt"
	"math"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// Calculator reduces the answers of one attempt to a ScoredResult.
type Calculator struct {
	evaluator *Evaluator
}

func NewCalculator(evaluator *Evaluator) *Calculator {
	return &Calculator{evaluator: evaluator}
}

// Score grades every question of the quiz. Unanswered questions are skipped, answers to
// questions outside the quiz are ignored. An error means a question itself is broken;
// in that case nothing is scored.
func (c *Calculator) Score(quiz *models.Quiz, answers models.AnswerMap) (models.ScoredResult, error) {
	keys := make([]models.AnswerKey, len(quiz.Questions))
	for i := range quiz.Questions {
		key, err := quiz.Questions[i].AnswerKey()
		if err != nil {
			return models.ScoredResult{}, fmt.Errorf("failed to load answer key: %w", err)
		}
		keys[i] = key
	}

	result := models.ScoredResult{
		Questions: make(map[uint]models.QuestionResult, len(quiz.Questions)),
	}

	for i, question := range quiz.Questions {
		result.MaxScore += question.Points

		record, answered := answers[question.ID]
		if !answered || record.IsSkipped() {
			result.SkippedCount++
			result.Questions[question.ID] = models.QuestionResult{Outcome: models.OutcomeSkipped}
			continue
		}

		eval := c.evaluator.EvaluateKey(keys[i], question.Points, record.Answer)
		outcome := models.OutcomeIncorrect
		if eval.Correct {
			outcome = models.OutcomeCorrect
			result.CorrectCount++
		} else {
			result.IncorrectCount++
		}

		result.PointsEarned += eval.PointsAwarded
		result.Questions[question.ID] = models.QuestionResult{
			Outcome:      outcome,
			Credit:       round(eval.Credit, 4),
			PointsEarned: round(eval.PointsAwarded, 2),
		}
	}

	result.PointsEarned = round(result.PointsEarned, 2)
	result.ScorePercentage = Percentage(result.PointsEarned, result.MaxScore)
	result.Passed = result.ScorePercentage >= quiz.PassingScore
	return result, nil
}

// Percentage returns earned/max as a percentage rounded to two decimals, 0 when max is 0.
func Percentage(earned float64, maxScore int) float64 {
	if maxScore <= 0 {
		return 0
	}
	pct := round(earned/float64(maxScore)*100, 2)
	return math.Min(100, math.Max(0, pct))
}

// Performance bands
const (
	BandExcellent        = "excellent"
	BandGood             = "good"
	BandPassed           = "passed"
	BandNeedsImprovement = "needs_improvement"
)

// Band classifies a score for feedback messages.
func Band(result models.ScoredResult) string {
	switch {
	case !result.Passed:
		return BandNeedsImprovement
	case result.ScorePercentage >= 90:
		return BandExcellent
	case result.ScorePercentage >= 75:
		return BandGood
	default:
		return BandPassed
	}
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
