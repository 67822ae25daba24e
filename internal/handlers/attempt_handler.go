package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// StartAttempt opens an attempt on a quiz or resumes the caller's active one
// @Summary Start attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Quiz ID"
// @Success 201 {object} services.AttemptResponse
// @Success 200 {object} services.AttemptResponse "resumed"
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /quizzes/{id}/attempts [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	quizID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Starting attempt", "quiz_id", quizID)

	attempt, err := h.attemptService.Start(c.Request.Context(), quizID, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if attempt.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, attempt)
}

// GetAttempt returns one attempt of the caller
// @Summary Get attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, attempt)
}

// GetAttemptQuestions returns the questions in the attempt's presentation order
// @Summary Get attempt questions
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {array} services.PresentedQuestion
// @Router /attempts/{id}/questions [get]
func (h *AttemptHandler) GetAttemptQuestions(c *gin.Context) {
	attemptID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}

	questions, err := h.attemptService.GetQuestions(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, questions)
}

// SubmitAnswer records the answer to one question, replacing any earlier one
// @Summary Submit answer
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param question_id path uint true "Question ID"
// @Param answer body services.SubmitAnswerRequest true "Answer"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/answers/{question_id} [put]
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	attemptID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := ParseUintParam(c, "question_id")
	if !ok {
		return
	}
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}

	var req services.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.attemptService.SubmitAnswer(c.Request.Context(), attemptID, questionID, &req, userID); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Answer recorded", gin.H{
		"attempt_id":  attemptID,
		"question_id": questionID,
	})
}

// CompleteAttempt records any final answers, then scores the attempt and closes it
// @Summary Complete attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param answers body services.CompleteRequest false "Final answers"
// @Success 200 {object} services.AttemptResultResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/complete [post]
func (h *AttemptHandler) CompleteAttempt(c *gin.Context) {
	attemptID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}

	var req services.CompleteRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}

	h.LogRequest(c, "Completing attempt", "attempt_id", attemptID, "final_answers", len(req.Answers))

	result, err := h.attemptService.Complete(c.Request.Context(), attemptID, &req, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AbandonAttempt closes the attempt without scoring it
// @Summary Abandon attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param reason body services.AbandonRequest false "Reason"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/abandon [post]
func (h *AttemptHandler) AbandonAttempt(c *gin.Context) {
	attemptID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}

	var req services.AbandonRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}

	if err := h.attemptService.Abandon(c.Request.Context(), attemptID, &req, userID); err != nil {
		h.HandleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Attempt abandoned", gin.H{"attempt_id": attemptID})
}

// GetReview returns the per-question breakdown of a completed attempt
// @Summary Review attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptReviewResponse
// @Failure 403 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /attempts/{id}/review [get]
func (h *AttemptHandler) GetReview(c *gin.Context) {
	attemptID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}

	review, err := h.attemptService.GetReview(c.Request.Context(), attemptID, userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}
