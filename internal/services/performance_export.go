package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

const (
	summarySheet  = "Summary"
	attemptsSheet = "Attempts"
	weakSheet     = "Weak Concepts"
)

// Export writes the learner's performance on one quiz as an xlsx workbook with a summary,
// every completed attempt and the weak concepts.
func (s *performanceService) Export(ctx context.Context, userID string, quizID uint, w io.Writer) error {
	record, err := s.Get(ctx, userID, quizID)
	if err != nil {
		return err
	}
	quiz, err := s.repo.Quiz().GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return fmt.Errorf("quiz %d: %w", quizID, ErrQuizNotFound)
		}
		return fmt.Errorf("failed to get quiz: %w", err)
	}
	attempts, err := s.repo.Attempt().ListCompleted(ctx, userID, quizID)
	if err != nil {
		return fmt.Errorf("failed to list completed attempts: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := writeSummarySheet(f, quiz, record, headerStyle); err != nil {
		return err
	}
	if err := writeAttemptsSheet(f, attempts, headerStyle); err != nil {
		return err
	}
	if err := writeWeakConceptSheet(f, record.WeakConcepts, headerStyle); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}

	s.logger.Info("Performance exported", "user_id", userID, "quiz_id", quizID, "attempts", len(attempts))
	return nil
}

func writeSummarySheet(f *excelize.File, quiz *models.Quiz, record *models.PerformanceRecord, headerStyle int) error {
	lastAttempt := ""
	if record.LastAttemptAt != nil {
		lastAttempt = record.LastAttemptAt.UTC().Format(time.RFC3339)
	}
	var improvement interface{} = ""
	if record.ImprovementRate != nil {
		improvement = *record.ImprovementRate
	}
	rows := [][]interface{}{
		{"Field", "Value"},
		{"Quiz", quiz.Title},
		{"User", record.UserID},
		{"Total attempts", record.TotalAttempts},
		{"Best score", record.BestScore},
		{"Average score", record.AverageScore},
		{"Improvement rate %", improvement},
		{"Total time spent (s)", record.TotalTimeSpent},
		{"Last attempt", lastAttempt},
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "A", "B", 24); err != nil {
		return fmt.Errorf("failed to size summary sheet: %w", err)
	}
	return f.SetRowStyle(summarySheet, 1, 1, headerStyle)
}

func writeAttemptsSheet(f *excelize.File, attempts []models.QuizAttempt, headerStyle int) error {
	if _, err := f.NewSheet(attemptsSheet); err != nil {
		return fmt.Errorf("failed to create attempts sheet: %w", err)
	}

	rows := [][]interface{}{
		{"Attempt", "Started", "Completed", "Score %", "Passed", "Correct", "Incorrect", "Skipped", "Time (s)", "End reason"},
	}
	for _, a := range attempts {
		completed := ""
		if a.CompletedAt != nil {
			completed = a.CompletedAt.UTC().Format(time.RFC3339)
		}
		result, err := a.Result()
		if err != nil {
			return err
		}
		reason := ""
		if a.EndReason != nil {
			reason = *a.EndReason
		}
		timeSpent := 0
		if a.TimeSpentSeconds != nil {
			timeSpent = *a.TimeSpentSeconds
		}
		rows = append(rows, []interface{}{
			a.ID,
			a.StartedAt.UTC().Format(time.RFC3339),
			completed,
			result.ScorePercentage,
			result.Passed,
			result.CorrectCount,
			result.IncorrectCount,
			result.SkippedCount,
			timeSpent,
			reason,
		})
	}
	if err := writeRows(f, attemptsSheet, rows); err != nil {
		return err
	}
	return f.SetRowStyle(attemptsSheet, 1, 1, headerStyle)
}

func writeWeakConceptSheet(f *excelize.File, concepts []models.WeakConcept, headerStyle int) error {
	if _, err := f.NewSheet(weakSheet); err != nil {
		return fmt.Errorf("failed to create weak concepts sheet: %w", err)
	}

	rows := [][]interface{}{{"Tag", "Error rate", "Correct", "Incorrect"}}
	for _, c := range concepts {
		rows = append(rows, []interface{}{c.Tag, c.ErrorRate, c.Correct, c.Incorrect})
	}
	if err := writeRows(f, weakSheet, rows); err != nil {
		return err
	}
	return f.SetRowStyle(weakSheet, 1, 1, headerStyle)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
