package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/quiz-service/internal/analytics"
	"github.com/SAP-F-2025/quiz-service/internal/auth"
	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/config"
	"github.com/SAP-F-2025/quiz-service/internal/grading"
	"github.com/SAP-F-2025/quiz-service/internal/handlers"
	"github.com/SAP-F-2025/quiz-service/internal/lock"
	"github.com/SAP-F-2025/quiz-service/internal/metrics"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/repositories/memory"
	"github.com/SAP-F-2025/quiz-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
	"github.com/SAP-F-2025/quiz-service/internal/workers"
	"github.com/SAP-F-2025/quiz-service/pkg"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(cfg, logger)
	if err != nil {
		return err
	}

	var (
		locker       lock.Locker = lock.NewLocalLocker()
		cacheService cache.CacheService
	)
	if cfg.RedisURL != "" {
		client, err := pkg.NewRedisClient(ctx, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		locker, cacheService = redisBackends(client, cfg, logger)
		logger.Info("Using redis for locks and performance cache")
	}

	publisher, subscriber, err := cfg.Events.CreateEventTransport(logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	aggregator := analytics.NewAggregator(cfg.Analytics.WeakConcept)
	performanceService := services.NewPerformanceService(
		repo,
		aggregator,
		cacheService,
		locker,
		publisher,
		logger,
		m,
		services.PerformanceConfig{Mode: cfg.Analytics.Mode, CacheTTL: cfg.Analytics.CacheTTL},
	)
	attemptService := services.NewAttemptService(
		repo,
		grading.NewCalculator(grading.NewEvaluator(grading.WithConfig(cfg.Grading))),
		locker,
		publisher,
		logger,
		validator.New(),
		services.WithMetrics(m),
		services.WithWeakConcepts(aggregator),
		services.WithCompletionListener(performanceService),
	)

	var worker *workers.PerformanceWorker
	if cfg.Analytics.Mode == services.AnalyticsModeAsync {
		if subscriber == nil {
			return errors.New("async analytics needs the kafka or gochannel event publisher")
		}
		worker, err = workers.NewPerformanceWorker(subscriber, performanceService, workers.WorkerConfig{
			Topic: cfg.Events.Topic,
		}, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("Performance worker stopped", "error", err)
			}
		}()
		select {
		case <-worker.Running():
			logger.Info("Performance worker running", "topic", cfg.Events.Topic)
		case <-time.After(30 * time.Second):
			return errors.New("performance worker did not start")
		}
	}

	go sweepOverdueAttempts(ctx, attemptService, cfg.Sweep, logger)

	var verifier auth.TokenVerifier
	if cfg.Auth.Enabled() {
		verifier = auth.NewCasdoorVerifier(cfg.Auth)
		logger.Info("Verifying bearer tokens with casdoor", "endpoint", cfg.Auth.Endpoint)
	} else {
		logger.Warn("Casdoor not configured, trusting the X-User-ID header")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	appLogger := utils.NewSlogLogger(logger)
	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestID(), utils.LoggerMiddleware(appLogger), m.Middleware())
	handlers.NewHandlerManager(attemptService, performanceService, appLogger).
		SetupRoutes(router, handlers.AuthMiddleware(verifier, appLogger), metrics.Handler(registry))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "port", cfg.Port, "storage", cfg.StorageDriver, "analytics_mode", cfg.Analytics.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}
	if worker != nil {
		if err := worker.Close(); err != nil {
			logger.Error("Failed to close performance worker", "error", err)
		}
	}
	if err := publisher.Close(); err != nil {
		logger.Error("Failed to close event publisher", "error", err)
	}
	logger.Info("Server exiting")
	return nil
}

func openRepository(cfg *config.Config, logger *slog.Logger) (repositories.Repository, error) {
	if cfg.StorageDriver == config.StorageMemory {
		logger.Warn("Using in-memory storage; data is lost on restart")
		return memory.NewStore(), nil
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return nil, err
	}
	if err := postgres.AutoMigrate(db); err != nil {
		return nil, err
	}
	return postgres.NewRepository(db), nil
}

func redisBackends(client *redis.Client, cfg *config.Config, logger *slog.Logger) (lock.Locker, cache.CacheService) {
	locker := lock.NewRedisLocker(client, lock.RedisConfig{
		Prefix:        "quiz:lock:",
		TTL:           cfg.Lock.TTL,
		RetryInterval: cfg.Lock.RetryInterval,
	}, logger)
	return locker, cache.NewRedisCache(client, logger)
}

// sweepOverdueAttempts completes timed attempts whose deadline passed without a submission
func sweepOverdueAttempts(ctx context.Context, attemptService services.AttemptService, cfg config.SweepConfig, logger *slog.Logger) {
	if cfg.Interval <= 0 {
		return
	}
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			expired, err := attemptService.ExpireOverdue(ctx, now.UTC(), cfg.BatchSize)
			if err != nil {
				logger.Error("Overdue attempt sweep failed", "expired", expired, "error", err)
				continue
			}
			if expired > 0 {
				logger.Info("Expired overdue attempts", "count", expired)
			}
		}
	}
}
