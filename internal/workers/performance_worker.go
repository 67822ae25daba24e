// Package workers consumes attempt events in the background.
package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/models"
)

const performanceHandlerName = "performance_recompute"

// Recomputer rebuilds the performance record of one user on one quiz.
type Recomputer interface {
	Recompute(ctx context.Context, userID string, quizID uint) (*models.PerformanceRecord, error)
}

// WorkerConfig holds configuration for the performance worker
type WorkerConfig struct {
	Topic           string
	MaxRetries      int
	InitialInterval time.Duration
}

// PerformanceWorker recomputes performance records from quiz.attempt.completed events.
type PerformanceWorker struct {
	router     *message.Router
	recomputer Recomputer
	logger     *slog.Logger
}

func NewPerformanceWorker(subscriber message.Subscriber, recomputer Recomputer, config WorkerConfig, logger *slog.Logger) (*PerformanceWorker, error) {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.InitialInterval <= 0 {
		config.InitialInterval = 200 * time.Millisecond
	}

	wmLogger := watermill.NewSlogLogger(logger)
	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	w := &PerformanceWorker{
		router:     router,
		recomputer: recomputer,
		logger:     logger,
	}

	router.AddMiddleware(
		middleware.Recoverer,
		middleware.Retry{
			MaxRetries:      config.MaxRetries,
			InitialInterval: config.InitialInterval,
			Logger:          wmLogger,
		}.Middleware,
	)
	router.AddNoPublisherHandler(performanceHandlerName, config.Topic, subscriber, w.handle)

	return w, nil
}

// Run blocks until ctx is cancelled or the router is closed
func (w *PerformanceWorker) Run(ctx context.Context) error {
	return w.router.Run(ctx)
}

// Running is closed once the router is consuming
func (w *PerformanceWorker) Running() chan struct{} {
	return w.router.Running()
}

func (w *PerformanceWorker) Close() error {
	return w.router.Close()
}

func (w *PerformanceWorker) handle(msg *message.Message) error {
	// All attempt events share one topic
	if eventType := msg.Metadata.Get("event_type"); eventType != string(events.EventAttemptCompleted) {
		return nil
	}

	completed, err := events.ParseAttemptCompleted(msg.Payload)
	if err != nil {
		// Retrying cannot fix a malformed message
		w.logger.Error("Dropping malformed attempt event", "message_uuid", msg.UUID, "error", err)
		return nil
	}

	if _, err := w.recomputer.Recompute(msg.Context(), completed.UserID, completed.QuizID); err != nil {
		return fmt.Errorf("failed to recompute performance for user %s quiz %d: %w", completed.UserID, completed.QuizID, err)
	}

	w.logger.Debug("Performance recomputed from event",
		"attempt_id", completed.AttemptID,
		"user_id", completed.UserID,
		"quiz_id", completed.QuizID)
	return nil
}
