package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"classroom-activity-service/internal/domain"
)

// QuizLoader loads quiz JSONB from Postgres. Quiz content is owned by the
// authoring collaborator; this side only reads it.
type QuizLoader struct {
	pool *pgxpool.Pool
}

func NewQuizLoader(pool *pgxpool.Pool) *QuizLoader {
	return &QuizLoader{pool: pool}
}

func (l *QuizLoader) LoadQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM quizzes WHERE id=$1`, quizID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Quiz{}, domain.ErrNotFound("quiz", quizID)
	}
	if err != nil {
		return domain.Quiz{}, domain.ErrStorage("load quiz", err)
	}
	var quiz domain.Quiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.Quiz{}, domain.ErrStorage("unmarshal quiz", err)
	}
	return quiz, nil
}

// RosterLoader loads roster JSONB from Postgres. The students array keeps
// membership order, which the results matrix depends on.
type RosterLoader struct {
	pool *pgxpool.Pool
}

func NewRosterLoader(pool *pgxpool.Pool) *RosterLoader {
	return &RosterLoader{pool: pool}
}

func (l *RosterLoader) LoadRoster(ctx context.Context, rosterID string) (domain.Roster, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM rosters WHERE id=$1`, rosterID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Roster{}, domain.ErrNotFound("roster", rosterID)
	}
	if err != nil {
		return domain.Roster{}, domain.ErrStorage("load roster", err)
	}
	var roster domain.Roster
	if err := json.Unmarshal(raw, &roster); err != nil {
		return domain.Roster{}, domain.ErrStorage("unmarshal roster", err)
	}
	return roster, nil
}
