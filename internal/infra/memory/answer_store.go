package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"classroom-activity-service/internal/domain"
)

type answerKey struct {
	activityID string
	studentID  string
	questionID string
}

// AnswerStore is an in-memory implementation of app.AnswerRepository.
// The map key enforces the one-answer-per-(activity, student, question)
// invariant; Upsert under the lock makes concurrent submissions for the
// same key last-write-wins.
type AnswerStore struct {
	mu      sync.RWMutex
	answers map[answerKey]domain.Answer
	now     func() time.Time
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		answers: make(map[answerKey]domain.Answer),
		now:     time.Now,
	}
}

// NewAnswerStoreWithClock is test-only for deterministic timestamps.
func NewAnswerStoreWithClock(now func() time.Time) *AnswerStore {
	store := NewAnswerStore()
	store.now = now
	return store
}

func (s *AnswerStore) Upsert(_ context.Context, answer domain.Answer) (domain.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	key := answerKey{answer.ActivityID, answer.StudentID, answer.QuestionID}
	if existing, ok := s.answers[key]; ok {
		existing.Value = answer.Value
		existing.IsCorrect = answer.IsCorrect
		existing.UpdatedAt = now
		s.answers[key] = existing
		return existing, nil
	}

	answer.ID = uuid.NewString()
	answer.CreatedAt = now
	answer.UpdatedAt = now
	s.answers[key] = answer
	return answer, nil
}

func (s *AnswerStore) ForStudent(_ context.Context, activityID, studentID string) (map[string]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byQuestion := make(map[string]domain.Answer)
	for key, answer := range s.answers {
		if key.activityID == activityID && key.studentID == studentID {
			byQuestion[key.questionID] = answer
		}
	}
	return byQuestion, nil
}

func (s *AnswerStore) ForActivity(_ context.Context, activityID string) ([]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var answers []domain.Answer
	for key, answer := range s.answers {
		if key.activityID == activityID {
			answers = append(answers, answer)
		}
	}
	return answers, nil
}

func (s *AnswerStore) DeleteForActivity(_ context.Context, activityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.answers {
		if key.activityID == activityID {
			delete(s.answers, key)
		}
	}
	return nil
}
