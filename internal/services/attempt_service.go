package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/quiz-service/internal/analytics"
	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/grading"
	"github.com/SAP-F-2025/quiz-service/internal/lock"
	"github.com/SAP-F-2025/quiz-service/internal/metrics"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

const tracerName = "github.com/SAP-F-2025/quiz-service/internal/services"

type attemptService struct {
	repo       repositories.Repository
	calculator *grading.Calculator
	locker     lock.Locker
	publisher  events.EventPublisher
	logger     *slog.Logger
	ops        *ServiceLogger
	validator  *validator.Validator
	metrics    *metrics.Metrics
	listener   CompletionListener
	weak       *analytics.Aggregator
	tracer     trace.Tracer

	now  func() time.Time
	seed func() int64
}

type AttemptOption func(*attemptService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) AttemptOption {
	return func(s *attemptService) { s.now = now }
}

// WithSeedSource replaces the source of new attempt seeds.
func WithSeedSource(seed func() int64) AttemptOption {
	return func(s *attemptService) { s.seed = seed }
}

func WithMetrics(m *metrics.Metrics) AttemptOption {
	return func(s *attemptService) { s.metrics = m }
}

// WithWeakConcepts sets the rules used to judge the weak concepts of a single attempt.
func WithWeakConcepts(aggregator *analytics.Aggregator) AttemptOption {
	return func(s *attemptService) { s.weak = aggregator }
}

// WithCompletionListener registers the listener told about every completed attempt.
func WithCompletionListener(listener CompletionListener) AttemptOption {
	return func(s *attemptService) { s.listener = listener }
}

func NewAttemptService(
	repo repositories.Repository,
	calculator *grading.Calculator,
	locker lock.Locker,
	publisher events.EventPublisher,
	logger *slog.Logger,
	validator *validator.Validator,
	opts ...AttemptOption,
) AttemptService {
	s := &attemptService{
		repo:       repo,
		calculator: calculator,
		locker:     locker,
		publisher:  publisher,
		logger:     logger,
		ops:        NewServiceLogger(logger, "attempt"),
		validator:  validator,
		weak:       analytics.NewAggregator(analytics.DefaultWeakConceptConfig()),
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
		seed:       rand.Int64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, quizID uint, userID string) (resp *AttemptResponse, err error) {
	op := s.ops.WithOperation(ctx, "start_attempt", userID)
	defer func() { op.LogResult(quizID, err) }()

	quiz, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if len(quiz.Questions) == 0 {
		return nil, NewBusinessRuleError("quiz_has_questions", ErrQuizHasNoQuestions, map[string]interface{}{"quiz_id": quizID})
	}
	// Broken questions must surface before anyone answers them, not at grading time
	if err := s.validator.Question().ValidateQuiz(quiz); err != nil {
		return nil, fmt.Errorf("quiz %d cannot be attempted: %w", quizID, err)
	}

	err = lock.With(ctx, s.locker, startLockKey(quizID, userID), func() error {
		resp, err = s.startLocked(ctx, quiz, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *attemptService) startLocked(ctx context.Context, quiz *models.Quiz, userID string) (*AttemptResponse, error) {
	now := s.now()

	active, err := s.repo.Attempt().GetActiveAttempt(ctx, userID, quiz.ID)
	switch {
	case err == nil && !active.IsExpired(now):
		s.logger.Info("Resuming existing attempt", "attempt_id", active.ID, "quiz_id", quiz.ID, "user_id", userID)
		return s.toResponse(active, true, now), nil
	case err == nil:
		// The old attempt ran out of time while nobody was looking
		err := lock.With(ctx, s.locker, attemptLockKey(active.ID), func() error {
			_, err := s.finish(ctx, active.ID, quiz, models.EndReasonTimeExpired, nil)
			return err
		})
		if err != nil && !errors.Is(err, ErrInvalidStateTransition) {
			return nil, err
		}
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, fmt.Errorf("failed to get active attempt: %w", err)
	}

	attempt := &models.QuizAttempt{
		QuizID:    quiz.ID,
		UserID:    userID,
		Status:    models.AttemptInProgress,
		Seed:      s.seed(),
		StartedAt: now,
		Answers:   datatypes.NewJSONType(models.AnswerMap{}),
	}
	if deadline, ok := quiz.Deadline(now); ok {
		attempt.Deadline = &deadline
	}

	if err := s.repo.Attempt().Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.logger.Info("Quiz attempt started",
		"attempt_id", attempt.ID,
		"quiz_id", quiz.ID,
		"user_id", userID)

	s.metrics.AttemptStarted()
	s.publish(ctx, events.NewAttemptStartedEvent(events.AttemptStartedEvent{
		AttemptID: attempt.ID,
		QuizID:    attempt.QuizID,
		UserID:    attempt.UserID,
		StartedAt: attempt.StartedAt,
		Deadline:  attempt.Deadline,
	}))

	return s.toResponse(attempt, false, now), nil
}

func (s *attemptService) GetByID(ctx context.Context, attemptID uint, userID string) (*AttemptResponse, error) {
	attempt, err := s.loadOwnedAttempt(ctx, attemptID, userID, "view")
	if err != nil {
		return nil, err
	}
	return s.toResponse(attempt, false, s.now()), nil
}

func (s *attemptService) GetQuestions(ctx context.Context, attemptID uint, userID string) ([]PresentedQuestion, error) {
	attempt, err := s.loadOwnedAttempt(ctx, attemptID, userID, "view")
	if err != nil {
		return nil, err
	}
	quiz, err := s.loadQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	return presentQuestions(quiz, attempt)
}

func (s *attemptService) SubmitAnswer(ctx context.Context, attemptID, questionID uint, req *SubmitAnswerRequest, userID string) (err error) {
	op := s.ops.WithOperation(ctx, "submit_answer", userID)
	defer func() { op.LogResult(attemptID, err) }()

	if err := s.validator.Validate(req); err != nil {
		return err
	}

	return lock.With(ctx, s.locker, attemptLockKey(attemptID), func() error {
		attempt, err := s.loadOwnedAttempt(ctx, attemptID, userID, "submit answer")
		if err != nil {
			return err
		}
		quiz, err := s.loadQuiz(ctx, attempt.QuizID)
		if err != nil {
			return err
		}
		if quiz.QuestionByID(questionID) == nil {
			return fmt.Errorf("question %d: %w", questionID, ErrQuestionNotInQuiz)
		}

		now := s.now()
		if attempt.Status == models.AttemptInProgress && attempt.IsExpired(now) {
			if _, err := s.finish(ctx, attemptID, quiz, models.EndReasonTimeExpired, nil); err != nil && !errors.Is(err, ErrInvalidStateTransition) {
				s.logger.Error("Failed to expire attempt", "attempt_id", attemptID, "error", err)
			}
			return ErrAttemptExpired
		}

		record := models.AnswerRecord{
			Answer:     req.Answer,
			TimeSpent:  req.TimeSpent,
			AnsweredAt: now,
		}
		_, err = s.repo.Attempt().UpdateWithLock(ctx, attemptID, func(a *models.QuizAttempt) error {
			return a.RecordAnswer(questionID, record)
		})
		if err != nil {
			return s.mapAttemptError(attemptID, err)
		}

		s.metrics.AnswerSubmitted()
		s.logger.Debug("Answer recorded",
			"attempt_id", attemptID,
			"question_id", questionID,
			"skipped", record.IsSkipped())
		return nil
	})
}

func (s *attemptService) Complete(ctx context.Context, attemptID uint, req *CompleteRequest, userID string) (resp *AttemptResultResponse, err error) {
	ctx, span := s.tracer.Start(ctx, "AttemptService.Complete",
		trace.WithAttributes(attribute.Int64("attempt.id", int64(attemptID))))
	op := s.ops.WithOperation(ctx, "complete_attempt", userID)
	defer func() {
		op.LogResult(attemptID, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if req == nil {
		req = &CompleteRequest{}
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	err = lock.With(ctx, s.locker, attemptLockKey(attemptID), func() error {
		attempt, err := s.loadOwnedAttempt(ctx, attemptID, userID, "complete")
		if err != nil {
			return err
		}
		quiz, err := s.loadQuiz(ctx, attempt.QuizID)
		if err != nil {
			return err
		}
		for questionID := range req.Answers {
			if quiz.QuestionByID(questionID) == nil {
				return fmt.Errorf("question %d: %w", questionID, ErrQuestionNotInQuiz)
			}
		}

		now := s.now()
		reason := models.EndReasonSubmitted
		var final map[uint]models.AnswerRecord
		if attempt.IsExpired(now) {
			reason = models.EndReasonTimeExpired
			if len(req.Answers) > 0 {
				s.logger.Warn("Dropping final answers sent after the deadline", "attempt_id", attemptID, "answers", len(req.Answers))
			}
		} else if len(req.Answers) > 0 {
			final = make(map[uint]models.AnswerRecord, len(req.Answers))
			for questionID, answer := range req.Answers {
				final[questionID] = models.AnswerRecord{Answer: answer.Answer, TimeSpent: answer.TimeSpent, AnsweredAt: now}
			}
		}

		completed, err := s.finish(ctx, attemptID, quiz, reason, final)
		if err != nil {
			return err
		}
		resp, err = s.resultResponse(quiz, completed)
		return err
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Float64("attempt.score_percentage", resp.ScorePercentage),
		attribute.Bool("attempt.passed", resp.Passed),
	)
	return resp, nil
}

func (s *attemptService) Abandon(ctx context.Context, attemptID uint, req *AbandonRequest, userID string) (err error) {
	op := s.ops.WithOperation(ctx, "abandon_attempt", userID)
	defer func() { op.LogResult(attemptID, err) }()

	if req == nil {
		req = &AbandonRequest{}
	}
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	reason := req.Reason
	if reason == "" {
		reason = models.EndReasonCancelled
	}

	return lock.With(ctx, s.locker, attemptLockKey(attemptID), func() error {
		if _, err := s.loadOwnedAttempt(ctx, attemptID, userID, "abandon"); err != nil {
			return err
		}

		now := s.now()
		abandoned, err := s.repo.Attempt().UpdateWithLock(ctx, attemptID, func(a *models.QuizAttempt) error {
			return a.Abandon(now, reason)
		})
		if err != nil {
			return s.mapAttemptError(attemptID, err)
		}

		s.logger.Info("Quiz attempt abandoned",
			"attempt_id", attemptID,
			"quiz_id", abandoned.QuizID,
			"reason", reason)

		s.metrics.AttemptAbandoned(reason)
		s.publish(ctx, events.NewAttemptAbandonedEvent(events.AttemptAbandonedEvent{
			AttemptID:   abandoned.ID,
			QuizID:      abandoned.QuizID,
			UserID:      abandoned.UserID,
			Reason:      reason,
			AbandonedAt: now,
		}))
		return nil
	})
}

func (s *attemptService) GetReview(ctx context.Context, attemptID uint, userID string) (*AttemptReviewResponse, error) {
	attempt, err := s.loadOwnedAttempt(ctx, attemptID, userID, "review")
	if err != nil {
		return nil, err
	}
	if attempt.Status != models.AttemptCompleted {
		return nil, &StateTransitionError{AttemptID: attempt.ID, Status: attempt.Status, Operation: "review"}
	}
	quiz, err := s.loadQuiz(ctx, attempt.QuizID)
	if err != nil {
		return nil, err
	}
	if !quiz.AllowReview {
		return nil, ErrReviewNotAllowed
	}
	return s.buildReview(quiz, attempt)
}

// ===== TIME MANAGEMENT =====

func (s *attemptService) ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	overdue, err := s.repo.Attempt().ListOverdue(ctx, repositories.OverdueQuery{Now: now, Limit: limit})
	if err != nil {
		return 0, fmt.Errorf("failed to list overdue attempts: %w", err)
	}

	quizzes := map[uint]*models.Quiz{}
	var errs []error
	expired := 0

	for _, attempt := range overdue {
		quiz, ok := quizzes[attempt.QuizID]
		if !ok {
			if quiz, err = s.loadQuiz(ctx, attempt.QuizID); err != nil {
				errs = append(errs, err)
				continue
			}
			quizzes[attempt.QuizID] = quiz
		}

		err := lock.With(ctx, s.locker, attemptLockKey(attempt.ID), func() error {
			_, err := s.finish(ctx, attempt.ID, quiz, models.EndReasonTimeExpired, nil)
			return err
		})
		switch {
		case err == nil:
			expired++
		case errors.Is(err, ErrInvalidStateTransition):
			// finished by its owner in the meantime
		default:
			s.logger.Error("Failed to expire attempt", "attempt_id", attempt.ID, "error", err)
			errs = append(errs, fmt.Errorf("attempt %d: %w", attempt.ID, err))
		}
	}

	if expired > 0 {
		s.logger.Info("Expired overdue attempts", "count", expired)
	}
	return expired, errors.Join(errs...)
}
