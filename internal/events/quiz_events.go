package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType represents the kinds of attempt lifecycle events the service emits
type EventType string

const (
	EventAttemptStarted     EventType = "quiz.attempt.started"
	EventAttemptCompleted   EventType = "quiz.attempt.completed"
	EventAttemptAbandoned   EventType = "quiz.attempt.abandoned"
	EventPerformanceUpdated EventType = "quiz.performance.updated"
)

const (
	eventSource  = "quiz-service"
	eventVersion = "1.0"
)

// Event is the envelope of every published message
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Event payloads

type AttemptStartedEvent struct {
	AttemptID uint       `json:"attempt_id"`
	QuizID    uint       `json:"quiz_id"`
	UserID    string     `json:"user_id"`
	StartedAt time.Time  `json:"started_at"`
	Deadline  *time.Time `json:"deadline,omitempty"`
}

type AttemptCompletedEvent struct {
	AttemptID       uint      `json:"attempt_id"`
	QuizID          uint      `json:"quiz_id"`
	SubjectID       uint      `json:"subject_id"`
	UserID          string    `json:"user_id"`
	ScorePercentage float64   `json:"score_percentage"`
	Passed          bool      `json:"passed"`
	EndReason       string    `json:"end_reason"`
	CompletedAt     time.Time `json:"completed_at"`
}

type AttemptAbandonedEvent struct {
	AttemptID   uint      `json:"attempt_id"`
	QuizID      uint      `json:"quiz_id"`
	UserID      string    `json:"user_id"`
	Reason      string    `json:"reason"`
	AbandonedAt time.Time `json:"abandoned_at"`
}

type PerformanceUpdatedEvent struct {
	UserID        string   `json:"user_id"`
	QuizID        uint     `json:"quiz_id"`
	TotalAttempts int      `json:"total_attempts"`
	BestScore     float64  `json:"best_score"`
	WeakConcepts  []string `json:"weak_concepts"`
}

func newEvent(eventType EventType, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

func NewAttemptStartedEvent(payload AttemptStartedEvent) *Event {
	return newEvent(EventAttemptStarted, payload)
}

func NewAttemptCompletedEvent(payload AttemptCompletedEvent) *Event {
	return newEvent(EventAttemptCompleted, payload)
}

func NewAttemptAbandonedEvent(payload AttemptAbandonedEvent) *Event {
	return newEvent(EventAttemptAbandoned, payload)
}

func NewPerformanceUpdatedEvent(payload PerformanceUpdatedEvent) *Event {
	return newEvent(EventPerformanceUpdated, payload)
}

// ParseAttemptCompleted decodes a message payload produced from NewAttemptCompletedEvent
func ParseAttemptCompleted(payload []byte) (*AttemptCompletedEvent, error) {
	var envelope struct {
		Type EventType             `json:"type"`
		Data AttemptCompletedEvent `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if envelope.Type != EventAttemptCompleted {
		return nil, fmt.Errorf("unexpected event type %q", envelope.Type)
	}
	return &envelope.Data, nil
}
