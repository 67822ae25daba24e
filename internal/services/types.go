package services

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// ===== SERVICE INTERFACES =====

type AttemptService interface {
	// Start opens an attempt, or resumes the learner's in-progress attempt for the quiz.
	Start(ctx context.Context, quizID uint, userID string) (*AttemptResponse, error)
	GetByID(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error)
	// GetQuestions returns the quiz questions in the attempt's presentation order.
	GetQuestions(ctx context.Context, attemptID uint, userID string) ([]PresentedQuestion, error)
	SubmitAnswer(ctx context.Context, attemptID, questionID uint, req *SubmitAnswerRequest, userID string) error
	// Complete records any final answers in req, which may be nil, and scores the attempt.
	Complete(ctx context.Context, attemptID uint, req *CompleteRequest, userID string) (*AttemptResultResponse, error)
	Abandon(ctx context.Context, attemptID uint, req *AbandonRequest, userID string) error
	GetReview(ctx context.Context, attemptID uint, userID string) (*AttemptReviewResponse, error)

	// ExpireOverdue completes up to limit in-progress attempts whose deadline is before now.
	ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

type PerformanceService interface {
	// Get returns the cached record, recomputing it on a miss.
	Get(ctx context.Context, userID string, quizID uint) (*models.PerformanceRecord, error)
	// Recompute derives the record from the completed attempts and overwrites the stored one.
	Recompute(ctx context.Context, userID string, quizID uint) (*models.PerformanceRecord, error)
	Export(ctx context.Context, userID string, quizID uint, w io.Writer) error

	CompletionListener
}

// CompletionListener is told about every attempt that reaches completed.
type CompletionListener interface {
	OnAttemptCompleted(ctx context.Context, attempt *models.QuizAttempt)
}

// ===== ATTEMPT DTOs =====

type AttemptResponse struct {
	*models.QuizAttempt
	Resumed          bool `json:"resumed"`
	RemainingSeconds *int `json:"remaining_seconds,omitempty"`
}

type SubmitAnswerRequest struct {
	Answer    json.RawMessage `json:"answer" validate:"answer_payload"`
	TimeSpent int             `json:"time_spent" validate:"min=0,max=86400"`
}

// CompleteRequest carries answers submitted together with the completion, keyed by question ID.
type CompleteRequest struct {
	Answers map[uint]SubmitAnswerRequest `json:"answers" validate:"omitempty,dive"`
}

type AbandonRequest struct {
	Reason string `json:"reason" validate:"omitempty,abandon_reason"`
}

type AttemptResultResponse struct {
	AttemptID uint `json:"attempt_id"`
	models.ScoredResult
	Band             string               `json:"band"`
	EndReason        string               `json:"end_reason"`
	TimeSpentSeconds int                  `json:"time_spent_seconds"`
	CompletedAt      time.Time            `json:"completed_at"`
	WeakConcepts     []models.WeakConcept `json:"weak_concepts"`
}

// PresentedOption is one displayed option. Index is the original position that answers refer to.
type PresentedOption struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

type PresentedQuestion struct {
	ID         uint                   `json:"id"`
	Position   int                    `json:"position"`
	Type       models.QuestionType    `json:"type"`
	Text       string                 `json:"text"`
	Points     int                    `json:"points"`
	Difficulty models.DifficultyLevel `json:"difficulty,omitempty"`
	Tags       []string               `json:"tags,omitempty"`

	Choices []PresentedOption `json:"choices,omitempty"`
	Left    []PresentedOption `json:"left,omitempty"`
	Right   []PresentedOption `json:"right,omitempty"`
	Blanks  int               `json:"blanks,omitempty"`

	// Answer is the learner's current submission, if any
	Answer json.RawMessage `json:"answer,omitempty"`
}

type QuestionReview struct {
	QuestionID    uint                   `json:"question_id"`
	Type          models.QuestionType    `json:"type"`
	Text          string                 `json:"text"`
	Points        int                    `json:"points"`
	Tags          []string               `json:"tags,omitempty"`
	Answer        json.RawMessage        `json:"answer,omitempty"`
	CorrectAnswer json.RawMessage        `json:"correct_answer"`
	Outcome       models.QuestionOutcome `json:"outcome"`
	Credit        float64                `json:"credit"`
	PointsEarned  float64                `json:"points_earned"`
	Explanation   *string                `json:"explanation,omitempty"`
}

type AttemptReviewResponse struct {
	Result    AttemptResultResponse `json:"result"`
	Questions []QuestionReview      `json:"questions"`
}
