package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// attemptTransitions lists the legal moves out of each status. Terminal statuses have none.
var attemptTransitions = map[AttemptStatus][]AttemptStatus{
	AttemptInProgress: {AttemptCompleted, AttemptAbandoned},
}

var ErrInvalidStateTransition = errors.New("invalid attempt state transition")

// StateTransitionError reports an operation rejected because of the attempt's status.
// It matches ErrInvalidStateTransition.
type StateTransitionError struct {
	AttemptID uint
	Status    AttemptStatus
	Operation string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("attempt %d is %s: cannot %s", e.AttemptID, e.Status, e.Operation)
}

func (e *StateTransitionError) Unwrap() error {
	return ErrInvalidStateTransition
}

func (s AttemptStatus) IsValid() bool {
	return s == AttemptInProgress || s == AttemptCompleted || s == AttemptAbandoned
}

func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptCompleted || s == AttemptAbandoned
}

func (s AttemptStatus) CanTransitionTo(next AttemptStatus) bool {
	for _, allowed := range attemptTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// End reasons
const (
	EndReasonSubmitted      = "submitted"
	EndReasonTimeExpired    = "time_expired"
	EndReasonCancelled      = "cancelled"
	EndReasonSessionTimeout = "session_timeout"
)

// AnswerRecord is the last submission a learner made for one question.
type AnswerRecord struct {
	Answer     json.RawMessage `json:"answer"`
	TimeSpent  int             `json:"time_spent"`
	AnsweredAt time.Time       `json:"answered_at"`
}

// IsSkipped reports whether the record carries no answer at all.
func (r AnswerRecord) IsSkipped() bool {
	return len(r.Answer) == 0 || string(r.Answer) == "null"
}

// AnswerMap is keyed by question id.
type AnswerMap map[uint]AnswerRecord

type QuestionOutcome string

const (
	OutcomeCorrect   QuestionOutcome = "correct"
	OutcomeIncorrect QuestionOutcome = "incorrect"
	OutcomeSkipped   QuestionOutcome = "skipped"
)

type QuestionResult struct {
	Outcome      QuestionOutcome `json:"outcome"`
	Credit       float64         `json:"credit"`
	PointsEarned float64         `json:"points_earned"`
}

// ScoredResult is the outcome of grading a whole attempt.
type ScoredResult struct {
	CorrectCount    int                     `json:"correct_count"`
	IncorrectCount  int                     `json:"incorrect_count"`
	SkippedCount    int                     `json:"skipped_count"`
	PointsEarned    float64                 `json:"points_earned"`
	MaxScore        int                     `json:"max_score"`
	ScorePercentage float64                 `json:"score_percentage"`
	Passed          bool                    `json:"passed"`
	Questions       map[uint]QuestionResult `json:"questions"`
}

type QuizAttempt struct {
	ID     uint          `json:"id" gorm:"primaryKey"`
	QuizID uint          `json:"quiz_id" gorm:"not null;index:idx_attempt_user_quiz"`
	UserID string        `json:"user_id" gorm:"not null;size:64;index:idx_attempt_user_quiz"`
	Status AttemptStatus `json:"status" gorm:"not null;size:20;default:in_progress;index"`
	Seed   int64         `json:"seed" gorm:"not null"`

	StartedAt   time.Time  `json:"started_at" gorm:"not null"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	AbandonedAt *time.Time `json:"abandoned_at,omitempty"`
	EndReason   *string    `json:"end_reason,omitempty" gorm:"size:50"`

	Answers datatypes.JSONType[AnswerMap] `json:"answers" gorm:"type:jsonb"`

	// Scoring fields, written only when the attempt completes
	TimeSpentSeconds *int           `json:"time_spent_seconds,omitempty"`
	CorrectCount     *int           `json:"correct_count,omitempty"`
	IncorrectCount   *int           `json:"incorrect_count,omitempty"`
	SkippedCount     *int           `json:"skipped_count,omitempty"`
	PointsEarned     *float64       `json:"points_earned,omitempty"`
	MaxScore         *int           `json:"max_score,omitempty"`
	ScorePercentage  *float64       `json:"score_percentage,omitempty"`
	Passed           *bool          `json:"passed,omitempty"`
	QuestionResults  datatypes.JSON `json:"question_results,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}

// AnswerMap returns a copy of the recorded answers.
func (a *QuizAttempt) AnswerMap() AnswerMap {
	current := a.Answers.Data()
	out := make(AnswerMap, len(current))
	maps.Copy(out, current)
	return out
}

func (a *QuizAttempt) transitionError(operation string) error {
	return &StateTransitionError{AttemptID: a.ID, Status: a.Status, Operation: operation}
}

// RecordAnswer stores rec for the question, replacing any earlier submission.
func (a *QuizAttempt) RecordAnswer(questionID uint, rec AnswerRecord) error {
	if a.Status != AttemptInProgress {
		return a.transitionError("submit answer")
	}
	answers := a.AnswerMap()
	answers[questionID] = rec
	a.Answers = datatypes.NewJSONType(answers)
	return nil
}

// Complete moves the attempt to completed and writes the scoring fields.
func (a *QuizAttempt) Complete(result ScoredResult, at time.Time, reason string) error {
	if !a.Status.CanTransitionTo(AttemptCompleted) {
		return a.transitionError("complete")
	}

	questions, err := json.Marshal(result.Questions)
	if err != nil {
		return fmt.Errorf("failed to encode question results: %w", err)
	}

	spent := int(at.Sub(a.StartedAt).Seconds())
	if spent < 0 {
		spent = 0
	}

	a.Status = AttemptCompleted
	a.CompletedAt = &at
	a.EndReason = &reason
	a.TimeSpentSeconds = &spent
	a.CorrectCount = &result.CorrectCount
	a.IncorrectCount = &result.IncorrectCount
	a.SkippedCount = &result.SkippedCount
	a.PointsEarned = &result.PointsEarned
	a.MaxScore = &result.MaxScore
	a.ScorePercentage = &result.ScorePercentage
	a.Passed = &result.Passed
	a.QuestionResults = datatypes.JSON(questions)
	return nil
}

// Abandon moves the attempt to abandoned. No scoring field is touched.
func (a *QuizAttempt) Abandon(at time.Time, reason string) error {
	if !a.Status.CanTransitionTo(AttemptAbandoned) {
		return a.transitionError("abandon")
	}
	a.Status = AttemptAbandoned
	a.AbandonedAt = &at
	a.EndReason = &reason
	return nil
}

// Result rebuilds the scored result of a completed attempt.
func (a *QuizAttempt) Result() (*ScoredResult, error) {
	if a.Status != AttemptCompleted || a.ScorePercentage == nil {
		return nil, a.transitionError("read result")
	}

	result := &ScoredResult{
		CorrectCount:    deref(a.CorrectCount),
		IncorrectCount:  deref(a.IncorrectCount),
		SkippedCount:    deref(a.SkippedCount),
		PointsEarned:    deref(a.PointsEarned),
		MaxScore:        deref(a.MaxScore),
		ScorePercentage: deref(a.ScorePercentage),
		Passed:          deref(a.Passed),
	}
	questions, err := a.QuestionResultMap()
	if err != nil {
		return nil, err
	}
	result.Questions = questions
	return result, nil
}

// QuestionResultMap decodes the per-question outcomes stored at completion.
func (a *QuizAttempt) QuestionResultMap() (map[uint]QuestionResult, error) {
	out := map[uint]QuestionResult{}
	if len(a.QuestionResults) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(a.QuestionResults, &out); err != nil {
		return nil, fmt.Errorf("failed to decode question results of attempt %d: %w", a.ID, err)
	}
	return out, nil
}

// IsExpired reports whether a timed attempt has run past its deadline.
func (a *QuizAttempt) IsExpired(now time.Time) bool {
	return a.Deadline != nil && now.After(*a.Deadline)
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
