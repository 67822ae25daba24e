package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/grading"
	"github.com/SAP-F-2025/quiz-service/internal/lock"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories/memory"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

const learner = "user-1"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// MockCompletionListener is a mock implementation of CompletionListener
type MockCompletionListener struct {
	mock.Mock
}

func (m *MockCompletionListener) OnAttemptCompleted(ctx context.Context, attempt *models.QuizAttempt) {
	m.Called(ctx, attempt)
}

func testQuestion(t *testing.T, id uint, options string, key models.AnswerKey, tags ...string) models.Question {
	t.Helper()
	raw, err := models.EncodeAnswerKey(key)
	require.NoError(t, err)
	q := models.Question{
		ID:            id,
		Type:          key.QuestionType(),
		Text:          fmt.Sprintf("question %d", id),
		Points:        5,
		Order:         int(id),
		CorrectAnswer: raw,
		Tags:          datatypes.JSONSlice[string](tags),
	}
	if options != "" {
		q.Options = datatypes.JSON(options)
	}
	return q
}

// fourQuestionQuiz is worth 20 points with a passing score of 60.
func fourQuestionQuiz(t *testing.T) *models.Quiz {
	return &models.Quiz{
		ID:           1,
		SubjectID:    7,
		Title:        "Capitals",
		PassingScore: 60,
		AllowReview:  true,
		Questions: []models.Question{
			testQuestion(t, 1, `{"choices":["Rome","Paris","Madrid"]}`, models.SingleChoiceKey{Index: 1}, "geography"),
			testQuestion(t, 2, "", models.TrueFalseKey{Value: true}, "geography"),
			testQuestion(t, 3, "", models.NumericKey{Value: 120}, "arithmetic"),
			testQuestion(t, 4, `{"choices":["a","b","c"]}`, models.SequenceKey{Order: []int{0, 1, 2}}, "ordering"),
		},
	}
}

type fixture struct {
	store     *memory.Store
	publisher *events.MockEventPublisher
	clock     *fakeClock
	service   AttemptService
	quiz      *models.Quiz
}

// recordingLocker remembers every key it hands out
type recordingLocker struct {
	lock.Locker
	mu   sync.Mutex
	keys []string
}

func (l *recordingLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.mu.Unlock()
	return l.Locker.Acquire(ctx, key)
}

func newFixture(t *testing.T, quiz *models.Quiz, opts ...AttemptOption) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.NewStore(),
		publisher: events.NewMockEventPublisher(testLogger()),
		clock:     newFakeClock(),
		quiz:      quiz,
	}
	require.NoError(t, f.store.Quiz().Create(context.Background(), quiz))

	seed := int64(41)
	opts = append([]AttemptOption{
		WithClock(f.clock.Now),
		WithSeedSource(func() int64 { seed++; return seed }),
	}, opts...)

	f.service = NewAttemptService(
		f.store,
		grading.NewCalculator(grading.NewEvaluator()),
		lock.NewLocalLocker(),
		f.publisher,
		testLogger(),
		validator.New(),
		opts...,
	)
	return f
}

func (f *fixture) start(t *testing.T) *AttemptResponse {
	t.Helper()
	resp, err := f.service.Start(context.Background(), f.quiz.ID, learner)
	require.NoError(t, err)
	return resp
}

func (f *fixture) submit(t *testing.T, attemptID, questionID uint, payload string) {
	t.Helper()
	err := f.service.SubmitAnswer(context.Background(), attemptID, questionID,
		&SubmitAnswerRequest{Answer: json.RawMessage(payload), TimeSpent: 10}, learner)
	require.NoError(t, err)
}

func TestAttemptService_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("opens an in-progress attempt", func(t *testing.T) {
		f := newFixture(t, fourQuestionQuiz(t))

		resp := f.start(t)

		assert.Equal(t, models.AttemptInProgress, resp.Status)
		assert.Equal(t, learner, resp.UserID)
		assert.Equal(t, int64(42), resp.Seed)
		assert.Equal(t, f.clock.Now(), resp.StartedAt)
		assert.False(t, resp.Resumed)
		assert.Nil(t, resp.Deadline)
		assert.Nil(t, resp.ScorePercentage)
		assert.Len(t, f.publisher.EventsOfType(events.EventAttemptStarted), 1)
	})

	t.Run("resumes the active attempt", func(t *testing.T) {
		f := newFixture(t, fourQuestionQuiz(t))
		first := f.start(t)

		second := f.start(t)

		assert.True(t, second.Resumed)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.Seed, second.Seed)
		assert.Len(t, f.publisher.EventsOfType(events.EventAttemptStarted), 1)
	})

	t.Run("timed quiz sets a deadline", func(t *testing.T) {
		quiz := fourQuestionQuiz(t)
		quiz.TimeLimitMinutes = 15
		f := newFixture(t, quiz)

		resp := f.start(t)

		require.NotNil(t, resp.Deadline)
		assert.Equal(t, f.clock.Now().Add(15*time.Minute), *resp.Deadline)
		require.NotNil(t, resp.RemainingSeconds)
		assert.Equal(t, 900, *resp.RemainingSeconds)
	})

	t.Run("unknown quiz", func(t *testing.T) {
		f := newFixture(t, fourQuestionQuiz(t))

		_, err := f.service.Start(ctx, 99, learner)

		assert.ErrorIs(t, err, ErrQuizNotFound)
		assert.True(t, IsNotFound(err))
	})

	t.Run("unknown question type is rejected before the attempt opens", func(t *testing.T) {
		quiz := fourQuestionQuiz(t)
		quiz.Questions[2].Type = "essay"
		f := newFixture(t, quiz)

		_, err := f.service.Start(ctx, quiz.ID, learner)

		assert.ErrorIs(t, err, ErrUnknownQuestionType)
		assert.True(t, IsMisconfigured(err))
		attempts, listErr := f.store.Attempt().ListCompleted(ctx, learner, quiz.ID)
		require.NoError(t, listErr)
		assert.Empty(t, attempts)
		_, activeErr := f.store.Attempt().GetActiveAttempt(ctx, learner, quiz.ID)
		assert.Error(t, activeErr)
	})

	t.Run("quiz without questions", func(t *testing.T) {
		quiz := fourQuestionQuiz(t)
		quiz.Questions = nil
		f := newFixture(t, quiz)

		_, err := f.service.Start(ctx, quiz.ID, learner)

		assert.ErrorIs(t, err, ErrQuizHasNoQuestions)
		assert.True(t, IsBusinessRule(err))
		assert.True(t, IsConflict(err))
	})
}

func TestAttemptService_CompleteEndToEnd(t *testing.T) {
	ctx := context.Background()
	listener := &MockCompletionListener{}
	listener.On("OnAttemptCompleted", mock.Anything, mock.AnythingOfType("*models.QuizAttempt")).Once()

	f := newFixture(t, fourQuestionQuiz(t), WithCompletionListener(listener))
	attempt := f.start(t)

	f.submit(t, attempt.ID, 1, `1`)
	f.submit(t, attempt.ID, 2, `true`)
	f.submit(t, attempt.ID, 3, `119.99`)
	f.clock.Advance(3 * time.Minute)

	result, err := f.service.Complete(ctx, attempt.ID, nil, learner)
	require.NoError(t, err)

	assert.Equal(t, 20, result.MaxScore)
	assert.Equal(t, 10.0, result.PointsEarned)
	assert.Equal(t, 50.0, result.ScorePercentage)
	assert.False(t, result.Passed)
	assert.Equal(t, 2, result.CorrectCount)
	assert.Equal(t, 1, result.IncorrectCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, grading.BandNeedsImprovement, result.Band)
	assert.Equal(t, models.EndReasonSubmitted, result.EndReason)
	assert.Equal(t, 180, result.TimeSpentSeconds)

	stored, err := f.store.Attempt().GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptCompleted, stored.Status)
	outcomes, err := stored.QuestionResultMap()
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, outcomes[4].Outcome)

	quiz, err := f.store.Quiz().GetByID(ctx, f.quiz.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, quiz.TotalAttempts)
	assert.Equal(t, 50.0, quiz.AverageScore)

	completed := f.publisher.EventsOfType(events.EventAttemptCompleted)
	require.Len(t, completed, 1)
	payload, ok := completed[0].Data.(events.AttemptCompletedEvent)
	require.True(t, ok)
	assert.Equal(t, uint(7), payload.SubjectID)
	assert.Equal(t, 50.0, payload.ScorePercentage)

	listener.AssertExpectations(t)
}

func TestAttemptService_CompleteWithFinalAnswers(t *testing.T) {
	ctx := context.Background()
	answer := func(payload string) SubmitAnswerRequest {
		return SubmitAnswerRequest{Answer: json.RawMessage(payload), TimeSpent: 5}
	}

	tests := []struct {
		name      string
		advance   time.Duration
		answers   map[uint]SubmitAnswerRequest
		wantErr   func(t *testing.T, err error)
		wantScore float64
		wantWeak  []models.WeakConcept
		wantEnd   string
	}{
		{
			name:      "final answers overwrite and extend the recorded ones",
			advance:   time.Minute,
			answers:   map[uint]SubmitAnswerRequest{1: answer(`1`), 3: answer(`120`)},
			wantScore: 50,
			wantWeak:  []models.WeakConcept{},
			wantEnd:   models.EndReasonSubmitted,
		},
		{
			name:      "wrong final answers surface as weak concepts",
			advance:   time.Minute,
			answers:   map[uint]SubmitAnswerRequest{2: answer(`false`)},
			wantScore: 0,
			wantWeak:  []models.WeakConcept{{Tag: "geography", ErrorRate: 1, Correct: 0, Incorrect: 2}},
			wantEnd:   models.EndReasonSubmitted,
		},
		{
			name:      "answers after the deadline are dropped",
			advance:   11 * time.Minute,
			answers:   map[uint]SubmitAnswerRequest{1: answer(`1`), 2: answer(`true`)},
			wantScore: 0,
			wantWeak:  []models.WeakConcept{},
			wantEnd:   models.EndReasonTimeExpired,
		},
		{
			name:    "question outside the quiz",
			advance: time.Minute,
			answers: map[uint]SubmitAnswerRequest{99: answer(`1`)},
			wantErr: func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrQuestionNotInQuiz) },
		},
		{
			name:    "invalid final answer",
			advance: time.Minute,
			answers: map[uint]SubmitAnswerRequest{1: {Answer: json.RawMessage(`1`), TimeSpent: -1}},
			wantErr: func(t *testing.T, err error) { assert.True(t, IsValidation(err)) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quiz := fourQuestionQuiz(t)
			quiz.TimeLimitMinutes = 10
			f := newFixture(t, quiz)
			attempt := f.start(t)
			f.submit(t, attempt.ID, 1, `0`)
			f.clock.Advance(tt.advance)

			result, err := f.service.Complete(ctx, attempt.ID, &CompleteRequest{Answers: tt.answers}, learner)

			stored, getErr := f.store.Attempt().GetByID(ctx, attempt.ID)
			require.NoError(t, getErr)
			if tt.wantErr != nil {
				require.Error(t, err)
				tt.wantErr(t, err)
				assert.Equal(t, models.AttemptInProgress, stored.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, result.ScorePercentage)
			assert.Equal(t, tt.wantWeak, result.WeakConcepts)
			assert.Equal(t, tt.wantEnd, result.EndReason)
			assert.Equal(t, *stored.ScorePercentage, result.ScorePercentage)
		})
	}
}

func TestAttemptService_CompleteTwiceIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fourQuestionQuiz(t))
	attempt := f.start(t)
	f.submit(t, attempt.ID, 1, `1`)

	_, err := f.service.Complete(ctx, attempt.ID, nil, learner)
	require.NoError(t, err)
	before, err := f.store.Attempt().GetByID(ctx, attempt.ID)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	_, err = f.service.Complete(ctx, attempt.ID, nil, learner)

	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.True(t, IsConflict(err))
	after, err := f.store.Attempt().GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, *before.ScorePercentage, *after.ScorePercentage)
	assert.Equal(t, *before.CompletedAt, *after.CompletedAt)
	assert.Equal(t, *before.TimeSpentSeconds, *after.TimeSpentSeconds)
	assert.Len(t, f.publisher.EventsOfType(events.EventAttemptCompleted), 1)
}

func TestAttemptService_SubmitAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("last write wins per question", func(t *testing.T) {
		f := newFixture(t, fourQuestionQuiz(t))
		attempt := f.start(t)

		f.submit(t, attempt.ID, 1, `0`)
		f.submit(t, attempt.ID, 1, `1`)

		stored, err := f.store.Attempt().GetByID(ctx, attempt.ID)
		require.NoError(t, err)
		answers := stored.AnswerMap()
		require.Len(t, answers, 1)
		assert.JSONEq(t, `1`, string(answers[1].Answer))
		assert.Equal(t, 10, answers[1].TimeSpent)
	})

	t.Run("null answer counts as skipped", func(t *testing.T) {
		f := newFixture(t, fourQuestionQuiz(t))
		attempt := f.start(t)
		f.submit(t, attempt.ID, 1, `null`)

		result, err := f.service.Complete(ctx, attempt.ID, nil, learner)

		require.NoError(t, err)
		assert.Equal(t, 4, result.SkippedCount)
	})

	t.Run("malformed answer shape is graded incorrect", func(t *testing.T) {
		f := newFixture(t, fourQuestionQuiz(t))
		attempt := f.start(t)
		f.submit(t, attempt.ID, 2, `[true]`)
		f.submit(t, attempt.ID, 1, `1`)

		result, err := f.service.Complete(ctx, attempt.ID, nil, learner)

		require.NoError(t, err)
		assert.Equal(t, 1, result.CorrectCount)
		assert.Equal(t, 1, result.IncorrectCount)
	})

	tests := []struct {
		name       string
		questionID uint
		userID     string
		req        *SubmitAnswerRequest
		check      func(t *testing.T, err error)
	}{
		{
			name:       "question outside the quiz",
			questionID: 42,
			userID:     learner,
			req:        &SubmitAnswerRequest{Answer: json.RawMessage(`1`)},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrQuestionNotInQuiz)
			},
		},
		{
			name:       "another user",
			questionID: 1,
			userID:     "user-2",
			req:        &SubmitAnswerRequest{Answer: json.RawMessage(`1`)},
			check: func(t *testing.T, err error) {
				assert.True(t, IsUnauthorized(err))
			},
		},
		{
			name:       "missing payload",
			questionID: 1,
			userID:     learner,
			req:        &SubmitAnswerRequest{},
			check: func(t *testing.T, err error) {
				assert.True(t, IsValidation(err))
			},
		},
		{
			name:       "invalid json payload",
			questionID: 1,
			userID:     learner,
			req:        &SubmitAnswerRequest{Answer: json.RawMessage(`{oops`)},
			check: func(t *testing.T, err error) {
				assert.True(t, IsValidation(err))
			},
		},
		{
			name:       "negative time spent",
			questionID: 1,
			userID:     learner,
			req:        &SubmitAnswerRequest{Answer: json.RawMessage(`1`), TimeSpent: -1},
			check: func(t *testing.T, err error) {
				assert.True(t, IsValidation(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, fourQuestionQuiz(t))
			attempt := f.start(t)

			err := f.service.SubmitAnswer(ctx, attempt.ID, tt.questionID, tt.req, tt.userID)

			require.Error(t, err)
			tt.check(t, err)
			stored, getErr := f.store.Attempt().GetByID(ctx, attempt.ID)
			require.NoError(t, getErr)
			assert.Empty(t, stored.AnswerMap())
		})
	}

	t.Run("unknown attempt", func(t *testing.T) {
		f := newFixture(t, fourQuestionQuiz(t))

		err := f.service.SubmitAnswer(ctx, 404, 1, &SubmitAnswerRequest{Answer: json.RawMessage(`1`)}, learner)

		assert.ErrorIs(t, err, ErrAttemptNotFound)
	})

	t.Run("rejected after completion", func(t *testing.T) {
		f := newFixture(t, fourQuestionQuiz(t))
		attempt := f.start(t)
		_, err := f.service.Complete(ctx, attempt.ID, nil, learner)
		require.NoError(t, err)

		err = f.service.SubmitAnswer(ctx, attempt.ID, 1, &SubmitAnswerRequest{Answer: json.RawMessage(`1`)}, learner)

		var transition *StateTransitionError
		require.True(t, errors.As(err, &transition))
		assert.Equal(t, models.AttemptCompleted, transition.Status)
	})
}

func TestAttemptService_ConcurrentSubmissions(t *testing.T) {
	ctx := context.Background()
	quiz := &models.Quiz{ID: 3, PassingScore: 50}
	for i := uint(1); i <= 25; i++ {
		quiz.Questions = append(quiz.Questions, testQuestion(t, i, "", models.TrueFalseKey{Value: true}))
	}
	f := newFixture(t, quiz)
	attempt := f.start(t)

	var wg sync.WaitGroup
	for i := uint(1); i <= 25; i++ {
		wg.Add(1)
		go func(questionID uint) {
			defer wg.Done()
			err := f.service.SubmitAnswer(ctx, attempt.ID, questionID,
				&SubmitAnswerRequest{Answer: json.RawMessage(`true`)}, learner)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := f.store.Attempt().GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Len(t, stored.AnswerMap(), 25)

	result, err := f.service.Complete(ctx, attempt.ID, nil, learner)
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.ScorePercentage)
}

func TestAttemptService_Abandon(t *testing.T) {
	ctx := context.Background()

	t.Run("abandons without scoring", func(t *testing.T) {
		f := newFixture(t, fourQuestionQuiz(t))
		attempt := f.start(t)
		f.submit(t, attempt.ID, 1, `1`)

		err := f.service.Abandon(ctx, attempt.ID, &AbandonRequest{Reason: models.EndReasonSessionTimeout}, learner)
		require.NoError(t, err)

		stored, err := f.store.Attempt().GetByID(ctx, attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AttemptAbandoned, stored.Status)
		require.NotNil(t, stored.EndReason)
		assert.Equal(t, models.EndReasonSessionTimeout, *stored.EndReason)
		assert.NotNil(t, stored.AbandonedAt)
		assert.Nil(t, stored.ScorePercentage)
		assert.Nil(t, stored.Passed)
		assert.Nil(t, stored.CompletedAt)
		assert.Len(t, f.publisher.EventsOfType(events.EventAttemptAbandoned), 1)

		_, err = f.service.Complete(ctx, attempt.ID, nil, learner)
		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("defaults to cancelled", func(t *testing.T) {
		f := newFixture(t, fourQuestionQuiz(t))
		attempt := f.start(t)

		require.NoError(t, f.service.Abandon(ctx, attempt.ID, nil, learner))

		stored, err := f.store.Attempt().GetByID(ctx, attempt.ID)
		require.NoError(t, err)
		assert.Equal(t, models.EndReasonCancelled, *stored.EndReason)
	})

	t.Run("rejects unknown reasons", func(t *testing.T) {
		f := newFixture(t, fourQuestionQuiz(t))
		attempt := f.start(t)

		err := f.service.Abandon(ctx, attempt.ID, &AbandonRequest{Reason: "bored"}, learner)

		assert.True(t, IsValidation(err))
	})

	t.Run("cannot abandon twice", func(t *testing.T) {
		f := newFixture(t, fourQuestionQuiz(t))
		attempt := f.start(t)
		require.NoError(t, f.service.Abandon(ctx, attempt.ID, nil, learner))

		err := f.service.Abandon(ctx, attempt.ID, nil, learner)

		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})
}

func TestAttemptService_TimeLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("submitting after the deadline expires the attempt", func(t *testing.T) {
		quiz := fourQuestionQuiz(t)
		quiz.TimeLimitMinutes = 10
		f := newFixture(t, quiz)
		attempt := f.start(t)
		f.submit(t, attempt.ID, 1, `1`)
		f.clock.Advance(11 * time.Minute)

		err := f.service.SubmitAnswer(ctx, attempt.ID, 2, &SubmitAnswerRequest{Answer: json.RawMessage(`true`)}, learner)

		assert.ErrorIs(t, err, ErrAttemptExpired)
		stored, getErr := f.store.Attempt().GetByID(ctx, attempt.ID)
		require.NoError(t, getErr)
		assert.Equal(t, models.AttemptCompleted, stored.Status)
		assert.Equal(t, models.EndReasonTimeExpired, *stored.EndReason)
		assert.Equal(t, 600, *stored.TimeSpentSeconds)
		assert.Equal(t, 25.0, *stored.ScorePercentage)
	})

	t.Run("starting again after expiry opens a fresh attempt", func(t *testing.T) {
		quiz := fourQuestionQuiz(t)
		quiz.TimeLimitMinutes = 10
		f := newFixture(t, quiz)
		first := f.start(t)
		f.clock.Advance(time.Hour)

		second := f.start(t)

		assert.NotEqual(t, first.ID, second.ID)
		assert.False(t, second.Resumed)
		old, err := f.store.Attempt().GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, models.AttemptCompleted, old.Status)
	})

	t.Run("expiring on start takes the old attempt's lock", func(t *testing.T) {
		quiz := fourQuestionQuiz(t)
		quiz.TimeLimitMinutes = 10
		f := newFixture(t, quiz)
		locker := &recordingLocker{Locker: lock.NewLocalLocker()}
		f.service = NewAttemptService(
			f.store,
			grading.NewCalculator(grading.NewEvaluator()),
			locker,
			f.publisher,
			testLogger(),
			validator.New(),
			WithClock(f.clock.Now),
		)
		first := f.start(t)
		f.clock.Advance(time.Hour)

		second := f.start(t)

		assert.NotEqual(t, first.ID, second.ID)
		assert.Equal(t, []string{
			startLockKey(quiz.ID, learner),
			startLockKey(quiz.ID, learner),
			attemptLockKey(first.ID),
		}, locker.keys)
	})

	t.Run("sweep completes overdue attempts", func(t *testing.T) {
		quiz := fourQuestionQuiz(t)
		quiz.TimeLimitMinutes = 5
		f := newFixture(t, quiz)
		overdue := f.start(t)
		other, err := f.service.Start(ctx, quiz.ID, "user-2")
		require.NoError(t, err)
		f.clock.Advance(6 * time.Minute)

		expired, err := f.service.ExpireOverdue(ctx, f.clock.Now(), 100)

		require.NoError(t, err)
		assert.Equal(t, 2, expired)
		for _, id := range []uint{overdue.ID, other.ID} {
			stored, err := f.store.Attempt().GetByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, models.AttemptCompleted, stored.Status)
			assert.Equal(t, models.EndReasonTimeExpired, *stored.EndReason)
		}

		expired, err = f.service.ExpireOverdue(ctx, f.clock.Now(), 100)
		require.NoError(t, err)
		assert.Zero(t, expired)
	})
}

func TestAttemptService_GetQuestions(t *testing.T) {
	ctx := context.Background()
	quiz := fourQuestionQuiz(t)
	quiz.ShuffleQuestions = true
	quiz.ShuffleOptions = true
	f := newFixture(t, quiz)
	attempt := f.start(t)
	f.submit(t, attempt.ID, 2, `true`)

	first, err := f.service.GetQuestions(ctx, attempt.ID, learner)
	require.NoError(t, err)
	second, err := f.service.GetQuestions(ctx, attempt.ID, learner)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 4)

	seen := map[uint]bool{}
	for i, q := range first {
		assert.Equal(t, i+1, q.Position)
		seen[q.ID] = true
		switch q.ID {
		case 1:
			require.Len(t, q.Choices, 3)
			texts := map[int]string{}
			for _, opt := range q.Choices {
				texts[opt.Index] = opt.Text
			}
			assert.Equal(t, map[int]string{0: "Rome", 1: "Paris", 2: "Madrid"}, texts)
		case 2:
			assert.JSONEq(t, `true`, string(q.Answer))
		case 4:
			assert.Len(t, q.Choices, 3)
		}
	}
	assert.Len(t, seen, 4)

	_, err = f.service.GetQuestions(ctx, attempt.ID, "user-2")
	assert.True(t, IsUnauthorized(err))
}

func TestAttemptService_GetReview(t *testing.T) {
	ctx := context.Background()

	t.Run("completed attempt", func(t *testing.T) {
		f := newFixture(t, fourQuestionQuiz(t))
		attempt := f.start(t)
		f.submit(t, attempt.ID, 1, `1`)
		f.submit(t, attempt.ID, 3, `7`)
		_, err := f.service.Complete(ctx, attempt.ID, nil, learner)
		require.NoError(t, err)

		review, err := f.service.GetReview(ctx, attempt.ID, learner)

		require.NoError(t, err)
		require.Len(t, review.Questions, 4)
		assert.Equal(t, models.OutcomeCorrect, review.Questions[0].Outcome)
		assert.Equal(t, 5.0, review.Questions[0].PointsEarned)
		assert.JSONEq(t, `{"index":1}`, string(review.Questions[0].CorrectAnswer))
		assert.Equal(t, models.OutcomeSkipped, review.Questions[1].Outcome)
		assert.Nil(t, review.Questions[1].Answer)
		assert.Equal(t, models.OutcomeIncorrect, review.Questions[2].Outcome)
		assert.Equal(t, 25.0, review.Result.ScorePercentage)
	})

	t.Run("in-progress attempt", func(t *testing.T) {
		f := newFixture(t, fourQuestionQuiz(t))
		attempt := f.start(t)

		_, err := f.service.GetReview(ctx, attempt.ID, learner)

		assert.ErrorIs(t, err, ErrInvalidStateTransition)
	})

	t.Run("quiz disallows review", func(t *testing.T) {
		quiz := fourQuestionQuiz(t)
		quiz.AllowReview = false
		f := newFixture(t, quiz)
		attempt := f.start(t)
		_, err := f.service.Complete(ctx, attempt.ID, nil, learner)
		require.NoError(t, err)

		_, err = f.service.GetReview(ctx, attempt.ID, learner)

		assert.ErrorIs(t, err, ErrReviewNotAllowed)
	})
}
