package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

type HandlerManager struct {
	attemptHandler     *AttemptHandler
	performanceHandler *PerformanceHandler
}

func NewHandlerManager(
	attemptService services.AttemptService,
	performanceService services.PerformanceService,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		attemptHandler:     NewAttemptHandler(attemptService, logger),
		performanceHandler: NewPerformanceHandler(performanceService, logger),
	}
}

// SetupRoutes sets up all API routes. authMiddleware guards everything under /api/v1;
// metricsHandler, when set, is served on /metrics.
func (hm *HandlerManager) SetupRoutes(router *gin.Engine, authMiddleware gin.HandlerFunc, metricsHandler gin.HandlerFunc) {
	router.GET("/health", HealthCheck)
	if metricsHandler != nil {
		router.GET("/metrics", metricsHandler)
	}

	v1 := router.Group("/api/v1")
	if authMiddleware != nil {
		v1.Use(authMiddleware)
	}
	{
		// Quiz routes
		quizzes := v1.Group("/quizzes")
		{
			quizzes.POST("/:id/attempts", hm.attemptHandler.StartAttempt)
			quizzes.GET("/:id/performance", hm.performanceHandler.GetPerformance)
			quizzes.GET("/:id/performance/export", hm.performanceHandler.ExportPerformance)
		}

		// Attempt routes
		attempts := v1.Group("/attempts")
		{
			attempts.GET("/:id", hm.attemptHandler.GetAttempt)
			attempts.GET("/:id/questions", hm.attemptHandler.GetAttemptQuestions)
			attempts.PUT("/:id/answers/:question_id", hm.attemptHandler.SubmitAnswer)
			attempts.POST("/:id/complete", hm.attemptHandler.CompleteAttempt)
			attempts.POST("/:id/abandon", hm.attemptHandler.AbandonAttempt)
			attempts.GET("/:id/review", hm.attemptHandler.GetReview)
		}
	}
}

// HealthCheck reports that the process is serving
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "quiz-service",
	})
}
