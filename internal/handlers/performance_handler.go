package handlers

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type PerformanceHandler struct {
	BaseHandler
	performanceService services.PerformanceService
}

func NewPerformanceHandler(performanceService services.PerformanceService, logger utils.Logger) *PerformanceHandler {
	return &PerformanceHandler{
		BaseHandler:        NewBaseHandler(logger),
		performanceService: performanceService,
	}
}

// GetPerformance returns the caller's performance record for a quiz
// @Summary Get performance
// @Tags performance
// @Produce json
// @Param id path uint true "Quiz ID"
// @Success 200 {object} models.PerformanceRecord
// @Failure 404 {object} ErrorResponse
// @Router /quizzes/{id}/performance [get]
func (h *PerformanceHandler) GetPerformance(c *gin.Context) {
	quizID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}

	record, err := h.performanceService.Get(c.Request.Context(), userID, quizID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// ExportPerformance downloads the caller's performance for a quiz as xlsx
// @Summary Export performance
// @Tags performance
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Quiz ID"
// @Success 200 {file} file
// @Router /quizzes/{id}/performance/export [get]
func (h *PerformanceHandler) ExportPerformance(c *gin.Context) {
	quizID, ok := ParseUintParam(c, "id")
	if !ok {
		return
	}
	userID, ok := CurrentUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting performance", "quiz_id", quizID)

	// Buffered so a failure halfway can still become a JSON error
	var buf bytes.Buffer
	if err := h.performanceService.Export(c.Request.Context(), userID, quizID, &buf); err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="quiz-%d-performance.xlsx"`, quizID))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
