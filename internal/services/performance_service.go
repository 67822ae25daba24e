package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SAP-F-2025/quiz-service/internal/analytics"
	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/lock"
	"github.com/SAP-F-2025/quiz-service/internal/metrics"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

// Analytics modes
const (
	// AnalyticsModeSync recomputes the record before completion returns.
	AnalyticsModeSync = "sync"
	// AnalyticsModeAsync only invalidates the cached record; the performance worker
	// recomputes it from the completed event.
	AnalyticsModeAsync = "async"
)

type PerformanceConfig struct {
	Mode     string
	CacheTTL time.Duration
}

type performanceService struct {
	repo       repositories.Repository
	aggregator *analytics.Aggregator
	cache      cache.CacheService
	locker     lock.Locker
	publisher  events.EventPublisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	config     PerformanceConfig
}

func NewPerformanceService(
	repo repositories.Repository,
	aggregator *analytics.Aggregator,
	cacheService cache.CacheService,
	locker lock.Locker,
	publisher events.EventPublisher,
	logger *slog.Logger,
	m *metrics.Metrics,
	config PerformanceConfig,
) PerformanceService {
	if cacheService == nil {
		cacheService = cache.NopCache{}
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if config.Mode == "" {
		config.Mode = AnalyticsModeSync
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = 10 * time.Minute
	}
	return &performanceService{
		repo:       repo,
		aggregator: aggregator,
		cache:      cacheService,
		locker:     locker,
		publisher:  publisher,
		logger:     logger,
		metrics:    m,
		tracer:     otel.Tracer(tracerName),
		config:     config,
	}
}

func (s *performanceService) Get(ctx context.Context, userID string, quizID uint) (*models.PerformanceRecord, error) {
	var cached models.PerformanceRecord
	err := s.cache.Get(ctx, cache.PerformanceKey(userID, quizID), &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Performance cache read failed", "user_id", userID, "quiz_id", quizID, "error", err)
		// Every recompute also writes the store, so it stands in while the cache is down
		stored, storeErr := s.repo.Performance().Get(ctx, userID, quizID)
		if storeErr == nil {
			return stored, nil
		}
		if !errors.Is(storeErr, repositories.ErrNotFound) {
			s.logger.Warn("Stored performance read failed", "user_id", userID, "quiz_id", quizID, "error", storeErr)
		}
	}
	return s.Recompute(ctx, userID, quizID)
}

func (s *performanceService) Recompute(ctx context.Context, userID string, quizID uint) (record *models.PerformanceRecord, err error) {
	ctx, span := s.tracer.Start(ctx, "PerformanceService.Recompute",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int64("quiz.id", int64(quizID)),
		))
	defer func() {
		s.metrics.PerformanceRecomputed(err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	// Serialized per pair so an older snapshot can never overwrite a newer record
	err = lock.With(ctx, s.locker, performanceLockKey(userID, quizID), func() error {
		record, err = s.rebuild(ctx, userID, quizID)
		return err
	})
	if err != nil {
		return nil, err
	}

	weak := make([]string, 0, len(record.WeakConcepts))
	for _, concept := range record.WeakConcepts {
		weak = append(weak, concept.Tag)
	}
	if s.publisher != nil {
		event := events.NewPerformanceUpdatedEvent(events.PerformanceUpdatedEvent{
			UserID:        userID,
			QuizID:        quizID,
			TotalAttempts: record.TotalAttempts,
			BestScore:     record.BestScore,
			WeakConcepts:  weak,
		})
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to publish event", "event_type", event.Type, "error", err)
		}
	}

	s.logger.Info("Performance recomputed",
		"user_id", userID,
		"quiz_id", quizID,
		"total_attempts", record.TotalAttempts,
		"weak_concepts", len(weak))
	return record, nil
}

// rebuild reads the completed attempts, aggregates them and stores the result. Callers hold
// the pair's performance lock.
func (s *performanceService) rebuild(ctx context.Context, userID string, quizID uint) (*models.PerformanceRecord, error) {
	quiz, err := s.repo.Quiz().GetWithQuestions(ctx, quizID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("quiz %d: %w", quizID, ErrQuizNotFound)
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	attempts, err := s.repo.Attempt().ListCompleted(ctx, userID, quizID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed attempts: %w", err)
	}

	key := analytics.Key{UserID: userID, QuizID: quizID, SubjectID: quiz.SubjectID}
	record, err := s.aggregator.Aggregate(key, quiz.Questions, attempts)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate performance: %w", err)
	}

	if err := s.repo.Performance().Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save performance record: %w", err)
	}

	if err := s.cache.Set(ctx, cache.PerformanceKey(userID, quizID), record, s.config.CacheTTL); err != nil {
		s.logger.Warn("Performance cache write failed", "user_id", userID, "quiz_id", quizID, "error", err)
	}
	return record, nil
}

func performanceLockKey(userID string, quizID uint) string {
	return fmt.Sprintf("performance:%s:%d", userID, quizID)
}

func (s *performanceService) OnAttemptCompleted(ctx context.Context, attempt *models.QuizAttempt) {
	if s.config.Mode == AnalyticsModeAsync {
		// Under the pair lock so a recompute already in flight cannot re-cache its snapshot afterwards
		err := lock.With(ctx, s.locker, performanceLockKey(attempt.UserID, attempt.QuizID), func() error {
			return s.cache.Delete(ctx, cache.PerformanceKey(attempt.UserID, attempt.QuizID))
		})
		if err != nil {
			s.logger.Warn("Performance cache invalidation failed", "attempt_id", attempt.ID, "error", err)
		}
		return
	}

	// A failed recompute leaves the old record in place; the next Get or completion rebuilds it
	if _, err := s.Recompute(ctx, attempt.UserID, attempt.QuizID); err != nil {
		s.logger.Error("Failed to recompute performance",
			"attempt_id", attempt.ID,
			"user_id", attempt.UserID,
			"quiz_id", attempt.QuizID,
			"error", err)
	}
}
