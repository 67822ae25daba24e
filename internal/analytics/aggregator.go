package analytics

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

type WeakConceptConfig struct {
	// Threshold is the error rate a tag must exceed to be reported.
	Threshold float64
	// TopN caps the number of reported tags.
	TopN int
	// MinSamples is the number of answered questions a tag needs before it is judged.
	MinSamples int
}

func DefaultWeakConceptConfig() WeakConceptConfig {
	return WeakConceptConfig{
		Threshold:  0.5,
		TopN:       10,
		MinSamples: 2,
	}
}

// Key identifies the performance record being rebuilt.
type Key struct {
	UserID    string
	QuizID    uint
	SubjectID uint
}

// Aggregator folds completed attempts into a PerformanceRecord. The result depends only on
// the set of attempts and questions passed in, never on their order.
type Aggregator struct {
	cfg WeakConceptConfig
}

func NewAggregator(cfg WeakConceptConfig) *Aggregator {
	def := DefaultWeakConceptConfig()
	if cfg.TopN <= 0 {
		cfg.TopN = def.TopN
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 1
	}
	if cfg.Threshold < 0 || cfg.Threshold >= 1 {
		cfg.Threshold = def.Threshold
	}
	return &Aggregator{cfg: cfg}
}

type tagTally struct {
	correct   int
	incorrect int
}

func (a *Aggregator) Aggregate(key Key, questions []models.Question, attempts []models.QuizAttempt) (*models.PerformanceRecord, error) {
	completed := make([]models.QuizAttempt, 0, len(attempts))
	for _, attempt := range attempts {
		if attempt.Status == models.AttemptCompleted && attempt.UserID == key.UserID && attempt.QuizID == key.QuizID {
			completed = append(completed, attempt)
		}
	}
	// fixed fold order keeps float sums identical across reruns
	slices.SortFunc(completed, func(x, y models.QuizAttempt) int {
		return cmp.Compare(x.ID, y.ID)
	})

	record := &models.PerformanceRecord{
		UserID:       key.UserID,
		QuizID:       key.QuizID,
		SubjectID:    key.SubjectID,
		WeakConcepts: []models.WeakConcept{},
	}
	if len(completed) == 0 {
		return record, nil
	}

	tagsByQuestion := questionTags(questions)
	tallies := map[string]*tagTally{}
	var scoreSum float64
	var last time.Time

	for _, attempt := range completed {
		score := valueOf(attempt.ScorePercentage)
		scoreSum += score
		if score > record.BestScore {
			record.BestScore = score
		}
		record.TotalTimeSpent += valueOf(attempt.TimeSpentSeconds)
		if attempt.CompletedAt != nil && attempt.CompletedAt.After(last) {
			last = *attempt.CompletedAt
		}

		if err := countTags(tallies, tagsByQuestion, &attempt); err != nil {
			return nil, fmt.Errorf("failed to aggregate attempt %d: %w", attempt.ID, err)
		}
	}

	record.TotalAttempts = len(completed)
	record.AverageScore = round(scoreSum/float64(len(completed)), 2)
	record.ImprovementRate = improvementRate(record.BestScore, record.AverageScore, record.TotalAttempts)
	if !last.IsZero() {
		last = last.UTC()
		record.LastAttemptAt = &last
	}
	record.WeakConcepts = a.weakConcepts(tallies)
	return record, nil
}

// AttemptWeakConcepts judges one completed attempt by the same rules Aggregate applies
// across all of them.
func (a *Aggregator) AttemptWeakConcepts(questions []models.Question, attempt *models.QuizAttempt) ([]models.WeakConcept, error) {
	if attempt.Status != models.AttemptCompleted {
		return []models.WeakConcept{}, nil
	}
	tallies := map[string]*tagTally{}
	if err := countTags(tallies, questionTags(questions), attempt); err != nil {
		return nil, fmt.Errorf("failed to find weak concepts of attempt %d: %w", attempt.ID, err)
	}
	return a.weakConcepts(tallies), nil
}

// questionTags maps each question to its sorted, deduplicated tags.
func questionTags(questions []models.Question) map[uint][]string {
	tagsByQuestion := make(map[uint][]string, len(questions))
	for _, q := range questions {
		tags := slices.Clone([]string(q.Tags))
		slices.Sort(tags)
		tagsByQuestion[q.ID] = slices.Compact(tags)
	}
	return tagsByQuestion
}

// countTags adds the answered questions of one attempt to the per-tag tallies.
func countTags(tallies map[string]*tagTally, tagsByQuestion map[uint][]string, attempt *models.QuizAttempt) error {
	results, err := attempt.QuestionResultMap()
	if err != nil {
		return err
	}
	for questionID, result := range results {
		if result.Outcome == models.OutcomeSkipped {
			continue
		}
		for _, tag := range tagsByQuestion[questionID] {
			tally, ok := tallies[tag]
			if !ok {
				tally = &tagTally{}
				tallies[tag] = tally
			}
			if result.Outcome == models.OutcomeCorrect {
				tally.correct++
			} else {
				tally.incorrect++
			}
		}
	}
	return nil
}

func improvementRate(best, average float64, attempts int) *float64 {
	if attempts < 2 {
		return nil
	}
	rate := 0.0
	if average > 0 {
		rate = round((best-average)/average*100, 2)
	}
	return &rate
}

func (a *Aggregator) weakConcepts(tallies map[string]*tagTally) []models.WeakConcept {
	concepts := make([]models.WeakConcept, 0, len(tallies))
	for tag, tally := range tallies {
		answered := tally.correct + tally.incorrect
		if answered == 0 || answered < a.cfg.MinSamples {
			continue
		}
		rate := float64(tally.incorrect) / float64(answered)
		if rate <= a.cfg.Threshold {
			continue
		}
		concepts = append(concepts, models.WeakConcept{
			Tag:       tag,
			ErrorRate: round(rate, 4),
			Correct:   tally.correct,
			Incorrect: tally.incorrect,
		})
	}

	slices.SortFunc(concepts, func(x, y models.WeakConcept) int {
		if c := cmp.Compare(y.ErrorRate, x.ErrorRate); c != 0 {
			return c
		}
		return cmp.Compare(x.Tag, y.Tag)
	})
	if len(concepts) > a.cfg.TopN {
		concepts = concepts[:a.cfg.TopN]
	}
	return concepts
}

func valueOf[T int | float64](p *T) T {
	if p == nil {
		return 0
	}
	return *p
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
