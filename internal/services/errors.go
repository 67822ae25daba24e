package services

import (
	"errors"
	"fmt"

	apperrors "github.com/SAP-F-2025/quiz-service/internal/errors"
	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// ===== COMMON SERVICE ERRORS =====

var (
	// Quiz specific errors
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrQuizHasNoQuestions  = errors.New("quiz has no questions")
	ErrQuestionNotInQuiz   = errors.New("question does not belong to the attempt's quiz")
	ErrUnknownQuestionType = models.ErrUnknownQuestionType
	ErrInvalidAnswerKey    = models.ErrInvalidAnswerKey

	// Attempt specific errors
	ErrAttemptNotFound        = errors.New("attempt not found")
	ErrAttemptAccessDenied    = errors.New("access denied to attempt")
	ErrAttemptExpired         = errors.New("attempt time has expired")
	ErrInvalidStateTransition = models.ErrInvalidStateTransition
	ErrReviewNotAllowed       = errors.New("quiz does not allow reviewing attempts")
)

// ===== CUSTOM ERROR TYPES =====

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// StateTransitionError is returned when an operation does not fit the attempt's status.
type StateTransitionError = models.StateTransitionError

type BusinessRuleError struct {
	Rule    string                 `json:"rule"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
	Err     error                  `json:"-"`
}

func (bre *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation (%s): %s", bre.Rule, bre.Message)
}

func (bre *BusinessRuleError) Unwrap() error {
	return bre.Err
}

type PermissionError struct {
	UserID     string `json:"user_id"`
	ResourceID uint   `json:"resource_id"`
	Resource   string `json:"resource"`
	Action     string `json:"action"`
	Reason     string `json:"reason"`
}

func (pe *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %d - %s",
		pe.UserID, pe.Action, pe.Resource, pe.ResourceID, pe.Reason)
}

func (pe *PermissionError) Unwrap() error {
	return ErrAttemptAccessDenied
}

// ===== ERROR HELPERS =====

// NewValidationError creates a new validation error using the shared type
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return apperrors.NewValidationError(field, message, value)
}

// NewBusinessRuleError wraps a sentinel so callers can still match it with errors.Is
func NewBusinessRuleError(rule string, cause error, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{
		Rule:    rule,
		Message: cause.Error(),
		Context: context,
		Err:     cause,
	}
}

func NewPermissionError(userID string, resourceID uint, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrQuizNotFound) ||
		errors.Is(err, ErrAttemptNotFound) ||
		errors.Is(err, ErrQuestionNotInQuiz)
}

// IsUnauthorized checks if error represents an "unauthorized" condition
func IsUnauthorized(err error) bool {
	var pe *PermissionError
	return errors.Is(err, ErrAttemptAccessDenied) || errors.As(err, &pe)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsBusinessRule checks if error represents a business rule violation
func IsBusinessRule(err error) bool {
	var bre *BusinessRuleError
	return errors.As(err, &bre)
}

// IsConflict checks if error represents a request that does not fit the current state
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrAttemptExpired) ||
		errors.Is(err, ErrReviewNotAllowed) ||
		errors.Is(err, ErrQuizHasNoQuestions)
}

// IsMisconfigured reports errors caused by broken quiz content rather than by the learner.
func IsMisconfigured(err error) bool {
	return errors.Is(err, ErrUnknownQuestionType) || errors.Is(err, ErrInvalidAnswerKey)
}
