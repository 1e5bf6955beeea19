package memory

import (
	"context"
	"time"

	"classroom-activity-service/internal/domain"
)

// QuizLoader fetches quiz content from a backing store (Postgres, an
// authoring service, ...).
type QuizLoader interface {
	LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// QuizRepository caches quizzes with TTL to avoid repeated loads of
// immutable authoring content.
type QuizRepository struct {
	cache *ttlCache[domain.Quiz]
}

func NewQuizRepository(loader QuizLoader, ttl time.Duration) *QuizRepository {
	return &QuizRepository{cache: newTTLCache(loader.LoadQuiz, ttl)}
}

func (r *QuizRepository) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	return r.cache.get(ctx, quizID)
}

// StaticQuizLoader is a loader backed by an in-memory map (tests, demos).
type StaticQuizLoader struct {
	quizzes map[string]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[string]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrNotFound("quiz", quizID)
}
