package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/grading"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/shuffle"
)

// ===== LOADING =====

func (s *attemptService) loadQuiz(ctx context.Context, quizID uint) (*models.Quiz, error) {
	quiz, err := s.repo.Quiz().GetWithQuestions(ctx, quizID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("quiz %d: %w", quizID, ErrQuizNotFound)
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}
	return quiz, nil
}

func (s *attemptService) loadOwnedAttempt(ctx context.Context, attemptID uint, userID, action string) (*models.QuizAttempt, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		return nil, s.mapAttemptError(attemptID, err)
	}
	if attempt.UserID != userID {
		return nil, NewPermissionError(userID, attemptID, "attempt", action, "not owned by user")
	}
	return attempt, nil
}

func (s *attemptService) mapAttemptError(attemptID uint, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("attempt %d: %w", attemptID, ErrAttemptNotFound)
	}
	return err
}

func attemptLockKey(attemptID uint) string {
	return fmt.Sprintf("attempt:%d", attemptID)
}

func startLockKey(quizID uint, userID string) string {
	return fmt.Sprintf("attempt-start:%d:%s", quizID, userID)
}

// ===== COMPLETION =====

// finish records any final answers, scores the attempt and moves it to completed in one
// locked write. Callers hold the attempt lock.
func (s *attemptService) finish(ctx context.Context, attemptID uint, quiz *models.Quiz, reason string, final map[uint]models.AnswerRecord) (*models.QuizAttempt, error) {
	now := s.now()

	completed, err := s.repo.Attempt().UpdateWithLock(ctx, attemptID, func(a *models.QuizAttempt) error {
		if a.Status != models.AttemptInProgress {
			return &StateTransitionError{AttemptID: a.ID, Status: a.Status, Operation: "complete"}
		}
		for questionID, record := range final {
			if err := a.RecordAnswer(questionID, record); err != nil {
				return err
			}
		}

		result, err := s.calculator.Score(quiz, a.AnswerMap())
		if err != nil {
			return fmt.Errorf("failed to score attempt %d: %w", a.ID, err)
		}

		at := now
		if reason == models.EndReasonTimeExpired && a.Deadline != nil && a.Deadline.Before(now) {
			at = *a.Deadline
		}
		return a.Complete(result, at, reason)
	})
	if err != nil {
		return nil, s.mapAttemptError(attemptID, err)
	}

	s.logger.Info("Quiz attempt completed",
		"attempt_id", completed.ID,
		"quiz_id", completed.QuizID,
		"user_id", completed.UserID,
		"score_percentage", *completed.ScorePercentage,
		"passed", *completed.Passed,
		"reason", reason)

	s.afterCompletion(ctx, quiz, completed, reason)
	return completed, nil
}

// afterCompletion runs the side effects of a completion. None of them can undo it.
func (s *attemptService) afterCompletion(ctx context.Context, quiz *models.Quiz, attempt *models.QuizAttempt, reason string) {
	if stats, err := s.repo.Attempt().GetQuizStats(ctx, quiz.ID); err != nil {
		s.logger.Warn("Failed to read quiz statistics", "quiz_id", quiz.ID, "error", err)
	} else if err := s.repo.Quiz().UpdateStatistics(ctx, quiz.ID, stats.CompletedCount, stats.AverageScore); err != nil {
		s.logger.Warn("Failed to update quiz statistics", "quiz_id", quiz.ID, "error", err)
	}

	s.metrics.AttemptCompleted(*attempt.ScorePercentage, *attempt.Passed, reason)
	s.publish(ctx, events.NewAttemptCompletedEvent(events.AttemptCompletedEvent{
		AttemptID:       attempt.ID,
		QuizID:          attempt.QuizID,
		SubjectID:       quiz.SubjectID,
		UserID:          attempt.UserID,
		ScorePercentage: *attempt.ScorePercentage,
		Passed:          *attempt.Passed,
		EndReason:       reason,
		CompletedAt:     *attempt.CompletedAt,
	}))

	if s.listener != nil {
		s.listener.OnAttemptCompleted(ctx, attempt)
	}
}

func (s *attemptService) publish(ctx context.Context, event *events.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish event", "event_type", event.Type, "event_id", event.ID, "error", err)
	}
}

// ===== RESPONSES =====

func (s *attemptService) toResponse(attempt *models.QuizAttempt, resumed bool, now time.Time) *AttemptResponse {
	resp := &AttemptResponse{QuizAttempt: attempt, Resumed: resumed}
	if attempt.Status == models.AttemptInProgress && attempt.Deadline != nil {
		remaining := max(0, int(attempt.Deadline.Sub(now).Seconds()))
		resp.RemainingSeconds = &remaining
	}
	return resp
}

func (s *attemptService) resultResponse(quiz *models.Quiz, attempt *models.QuizAttempt) (*AttemptResultResponse, error) {
	result, err := attempt.Result()
	if err != nil {
		return nil, err
	}
	weak, err := s.weak.AttemptWeakConcepts(quiz.Questions, attempt)
	if err != nil {
		return nil, err
	}
	resp := &AttemptResultResponse{
		AttemptID:    attempt.ID,
		ScoredResult: *result,
		Band:         grading.Band(*result),
		WeakConcepts: weak,
	}
	if attempt.EndReason != nil {
		resp.EndReason = *attempt.EndReason
	}
	if attempt.TimeSpentSeconds != nil {
		resp.TimeSpentSeconds = *attempt.TimeSpentSeconds
	}
	if attempt.CompletedAt != nil {
		resp.CompletedAt = *attempt.CompletedAt
	}
	return resp, nil
}

// presentQuestions lays the quiz out for one attempt. Both orders come from the attempt seed,
// so every read of the same attempt shows the same layout.
func presentQuestions(quiz *models.Quiz, attempt *models.QuizAttempt) ([]PresentedQuestion, error) {
	order := identity(len(quiz.Questions))
	if quiz.ShuffleQuestions {
		order = shuffle.Questions(attempt.Seed, len(quiz.Questions))
	}
	answers := attempt.AnswerMap()

	out := make([]PresentedQuestion, 0, len(order))
	for pos, idx := range order {
		q := &quiz.Questions[idx]
		pq := PresentedQuestion{
			ID:         q.ID,
			Position:   pos + 1,
			Type:       q.Type,
			Text:       q.Text,
			Points:     q.Points,
			Difficulty: q.Difficulty,
			Tags:       []string(q.Tags),
		}

		switch q.Type {
		case models.SingleChoice, models.MultipleChoice, models.Sequence:
			var opts models.ChoiceOptions
			if err := q.DecodeOptions(&opts); err != nil {
				return nil, err
			}
			// A sequence shown in authored order would give the answer away
			shuffled := quiz.ShuffleOptions || q.Type == models.Sequence
			pq.Choices = presentOptions(opts.Choices, attempt.Seed, q.ID, shuffled)
		case models.Matching:
			var opts models.MatchingOptions
			if err := q.DecodeOptions(&opts); err != nil {
				return nil, err
			}
			pq.Left = presentOptions(opts.Left, attempt.Seed, q.ID, false)
			pq.Right = presentOptions(opts.Right, attempt.Seed, q.ID, quiz.ShuffleOptions)
		case models.FillBlank:
			key, err := q.AnswerKey()
			if err != nil {
				return nil, err
			}
			if blanks, ok := key.(models.FillBlankKey); ok {
				pq.Blanks = len(blanks.Blanks)
			}
		}

		if rec, ok := answers[q.ID]; ok && !rec.IsSkipped() {
			pq.Answer = rec.Answer
		}
		out = append(out, pq)
	}
	return out, nil
}

func presentOptions(texts []string, seed int64, questionID uint, shuffled bool) []PresentedOption {
	order := identity(len(texts))
	if shuffled {
		order = shuffle.Options(seed, questionID, len(texts))
	}
	out := make([]PresentedOption, len(order))
	for i, idx := range order {
		out[i] = PresentedOption{Index: idx, Text: texts[idx]}
	}
	return out
}

func identity(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

func (s *attemptService) buildReview(quiz *models.Quiz, attempt *models.QuizAttempt) (*AttemptReviewResponse, error) {
	result, err := s.resultResponse(quiz, attempt)
	if err != nil {
		return nil, err
	}
	answers := attempt.AnswerMap()

	review := &AttemptReviewResponse{
		Result:    *result,
		Questions: make([]QuestionReview, 0, len(quiz.Questions)),
	}
	for _, q := range quiz.Questions {
		outcome, ok := result.Questions[q.ID]
		if !ok {
			outcome = models.QuestionResult{Outcome: models.OutcomeSkipped}
		}
		item := QuestionReview{
			QuestionID:    q.ID,
			Type:          q.Type,
			Text:          q.Text,
			Points:        q.Points,
			Tags:          []string(q.Tags),
			CorrectAnswer: json.RawMessage(q.CorrectAnswer),
			Outcome:       outcome.Outcome,
			Credit:        outcome.Credit,
			PointsEarned:  outcome.PointsEarned,
			Explanation:   q.Explanation,
		}
		if rec, ok := answers[q.ID]; ok && !rec.IsSkipped() {
			item.Answer = rec.Answer
		}
		review.Questions = append(review.Questions, item)
	}
	return review, nil
}
