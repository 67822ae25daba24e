// Package memory keeps quizzes, attempts and performance records in process memory.
// It backs STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type Store struct {
	mu sync.Mutex

	quizzes     map[uint]models.Quiz
	attempts    map[uint]models.QuizAttempt
	performance map[string]models.PerformanceRecord

	nextQuizID        uint
	nextQuestionID    uint
	nextAttemptID     uint
	nextPerformanceID uint
}

func NewStore() *Store {
	return &Store{
		quizzes:     map[uint]models.Quiz{},
		attempts:    map[uint]models.QuizAttempt{},
		performance: map[string]models.PerformanceRecord{},
	}
}

func (s *Store) Quiz() repositories.QuizRepository { return quizRepo{s} }

func (s *Store) Attempt() repositories.AttemptRepository { return attemptRepo{s} }

func (s *Store) Performance() repositories.PerformanceRepository { return performanceRepo{s} }

// ===== QUIZZES =====

type quizRepo struct{ s *Store }

func (r quizRepo) Create(_ context.Context, quiz *models.Quiz) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if quiz.ID == 0 {
		r.s.nextQuizID++
		quiz.ID = r.s.nextQuizID
	} else if quiz.ID > r.s.nextQuizID {
		r.s.nextQuizID = quiz.ID
	}
	for i := range quiz.Questions {
		quiz.Questions[i].QuizID = quiz.ID
		if quiz.Questions[i].ID == 0 {
			r.s.nextQuestionID++
			quiz.Questions[i].ID = r.s.nextQuestionID
		} else if quiz.Questions[i].ID > r.s.nextQuestionID {
			r.s.nextQuestionID = quiz.Questions[i].ID
		}
	}

	stored := *quiz
	stored.Questions = slices.Clone(quiz.Questions)
	r.s.quizzes[quiz.ID] = stored
	return nil
}

func (r quizRepo) GetByID(ctx context.Context, id uint) (*models.Quiz, error) {
	quiz, err := r.GetWithQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	quiz.Questions = nil
	return quiz, nil
}

func (r quizRepo) GetWithQuestions(_ context.Context, id uint) (*models.Quiz, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	quiz, ok := r.s.quizzes[id]
	if !ok {
		return nil, fmt.Errorf("quiz %d: %w", id, repositories.ErrNotFound)
	}
	quiz.Questions = slices.Clone(quiz.Questions)
	slices.SortStableFunc(quiz.Questions, func(a, b models.Question) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return &quiz, nil
}

func (r quizRepo) UpdateStatistics(_ context.Context, id uint, totalAttempts int, averageScore float64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	quiz, ok := r.s.quizzes[id]
	if !ok {
		return fmt.Errorf("quiz %d: %w", id, repositories.ErrNotFound)
	}
	quiz.TotalAttempts = totalAttempts
	quiz.AverageScore = averageScore
	r.s.quizzes[id] = quiz
	return nil
}

// ===== ATTEMPTS =====

type attemptRepo struct{ s *Store }

func (r attemptRepo) Create(_ context.Context, attempt *models.QuizAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextAttemptID++
	attempt.ID = r.s.nextAttemptID
	now := time.Now()
	attempt.CreatedAt, attempt.UpdatedAt = now, now
	r.s.attempts[attempt.ID] = *attempt
	return nil
}

func (r attemptRepo) GetByID(_ context.Context, id uint) (*models.QuizAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	attempt, ok := r.s.attempts[id]
	if !ok {
		return nil, fmt.Errorf("attempt %d: %w", id, repositories.ErrNotFound)
	}
	return &attempt, nil
}

func (r attemptRepo) UpdateWithLock(ctx context.Context, id uint, mutate repositories.AttemptMutation) (*models.QuizAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	attempt, ok := r.s.attempts[id]
	if !ok {
		return nil, fmt.Errorf("attempt %d: %w", id, repositories.ErrNotFound)
	}
	if err := mutate(&attempt); err != nil {
		return nil, err
	}
	attempt.UpdatedAt = time.Now()
	r.s.attempts[id] = attempt
	return &attempt, nil
}

func (r attemptRepo) List(_ context.Context, filters repositories.AttemptFilters) ([]models.QuizAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := r.s.filter(func(a models.QuizAttempt) bool {
		return (filters.UserID == "" || a.UserID == filters.UserID) &&
			(filters.QuizID == 0 || a.QuizID == filters.QuizID) &&
			(filters.Status == nil || a.Status == *filters.Status)
	})
	slices.SortFunc(out, func(a, b models.QuizAttempt) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	if filters.Offset > 0 {
		out = out[min(filters.Offset, len(out)):]
	}
	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (r attemptRepo) GetActiveAttempt(ctx context.Context, userID string, quizID uint) (*models.QuizAttempt, error) {
	status := models.AttemptInProgress
	active, err := r.List(ctx, repositories.AttemptFilters{UserID: userID, QuizID: quizID, Status: &status, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, fmt.Errorf("active attempt for quiz %d: %w", quizID, repositories.ErrNotFound)
	}
	return &active[0], nil
}

func (r attemptRepo) ListCompleted(_ context.Context, userID string, quizID uint) ([]models.QuizAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.filter(func(a models.QuizAttempt) bool {
		return a.UserID == userID && a.QuizID == quizID && a.Status == models.AttemptCompleted
	}), nil
}

func (r attemptRepo) ListOverdue(_ context.Context, query repositories.OverdueQuery) ([]models.QuizAttempt, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := r.s.filter(func(a models.QuizAttempt) bool {
		return a.Status == models.AttemptInProgress && a.IsExpired(query.Now)
	})
	slices.SortFunc(out, func(a, b models.QuizAttempt) int {
		return a.Deadline.Compare(*b.Deadline)
	})
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[:query.Limit]
	}
	return out, nil
}

func (r attemptRepo) GetQuizStats(_ context.Context, quizID uint) (*repositories.QuizAttemptStats, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	completed := r.s.filter(func(a models.QuizAttempt) bool {
		return a.QuizID == quizID && a.Status == models.AttemptCompleted
	})

	stats := &repositories.QuizAttemptStats{QuizID: quizID, CompletedCount: len(completed)}
	if len(completed) == 0 {
		return stats, nil
	}
	var sum float64
	passed := 0
	for _, a := range completed {
		if a.ScorePercentage != nil {
			sum += *a.ScorePercentage
		}
		if a.Passed != nil && *a.Passed {
			passed++
		}
	}
	stats.AverageScore = sum / float64(len(completed))
	stats.PassRate = float64(passed) / float64(len(completed)) * 100
	return stats, nil
}

// filter returns matching attempts ordered by id. Callers hold the lock.
func (s *Store) filter(match func(models.QuizAttempt) bool) []models.QuizAttempt {
	out := make([]models.QuizAttempt, 0)
	for _, a := range s.attempts {
		if match(a) {
			out = append(out, a)
		}
	}
	slices.SortFunc(out, func(a, b models.QuizAttempt) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// ===== PERFORMANCE =====

type performanceRepo struct{ s *Store }

func performanceKey(userID string, quizID uint) string {
	return fmt.Sprintf("%s:%d", userID, quizID)
}

func (r performanceRepo) Get(_ context.Context, userID string, quizID uint) (*models.PerformanceRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	record, ok := r.s.performance[performanceKey(userID, quizID)]
	if !ok {
		return nil, fmt.Errorf("performance for quiz %d: %w", quizID, repositories.ErrNotFound)
	}
	return &record, nil
}

func (r performanceRepo) Upsert(_ context.Context, record *models.PerformanceRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := performanceKey(record.UserID, record.QuizID)
	now := time.Now()
	if existing, ok := r.s.performance[key]; ok {
		record.ID = existing.ID
		record.CreatedAt = existing.CreatedAt
	} else {
		r.s.nextPerformanceID++
		record.ID = r.s.nextPerformanceID
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	stored := *record
	stored.WeakConcepts = slices.Clone(record.WeakConcepts)
	r.s.performance[key] = stored
	return nil
}

var _ repositories.Repository = (*Store)(nil)
