package events

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatermillEventPublisher_RoundTrip(t *testing.T) {
	logger := testLogger()
	pubSub := NewInProcessPubSub(logger)
	defer pubSub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	messages, err := pubSub.Subscribe(ctx, "quiz-events")
	require.NoError(t, err)

	publisher := NewWatermillEventPublisher(pubSub, "quiz-events", logger)
	completedAt := time.Date(2025, 4, 1, 8, 30, 0, 0, time.UTC)
	event := NewAttemptCompletedEvent(AttemptCompletedEvent{
		AttemptID:       12,
		QuizID:          3,
		UserID:          "user-7",
		ScorePercentage: 85.5,
		Passed:          true,
		EndReason:       "submitted",
		CompletedAt:     completedAt,
	})
	require.NoError(t, publisher.Publish(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, string(EventAttemptCompleted), msg.Metadata.Get("event_type"))

		parsed, err := ParseAttemptCompleted(msg.Payload)
		require.NoError(t, err)
		assert.Equal(t, uint(12), parsed.AttemptID)
		assert.Equal(t, "user-7", parsed.UserID)
		assert.Equal(t, 85.5, parsed.ScorePercentage)
		assert.True(t, parsed.CompletedAt.Equal(completedAt))
	case <-ctx.Done():
		t.Fatal("event was not delivered")
	}
}

func TestParseAttemptCompleted_WrongType(t *testing.T) {
	_, err := ParseAttemptCompleted([]byte(`{"type":"quiz.attempt.started","data":{}}`))
	assert.Error(t, err)

	_, err = ParseAttemptCompleted([]byte(`not json`))
	assert.Error(t, err)
}

func TestMockEventPublisher(t *testing.T) {
	publisher := NewMockEventPublisher(testLogger())

	require.NoError(t, publisher.Publish(context.Background(), NewAttemptStartedEvent(AttemptStartedEvent{AttemptID: 1})))
	require.NoError(t, publisher.Publish(context.Background(), NewAttemptAbandonedEvent(AttemptAbandonedEvent{AttemptID: 1})))

	assert.Len(t, publisher.GetPublishedEvents(), 2)
	assert.Len(t, publisher.EventsOfType(EventAttemptAbandoned), 1)

	publisher.ClearEvents()
	assert.Empty(t, publisher.GetPublishedEvents())
}
