package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"classroom-activity-service/internal/domain"
)

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:ans"`

	ID         string          `bun:"id,pk"`
	ActivityID string          `bun:"activity_id,notnull"`
	StudentID  string          `bun:"student_id,notnull"`
	QuestionID string          `bun:"question_id,notnull"`
	Answer     json.RawMessage `bun:"answer,type:jsonb,notnull"`
	IsCorrect  bool            `bun:"is_correct,notnull"`
	CreatedAt  time.Time       `bun:"created_at,notnull"`
	UpdatedAt  time.Time       `bun:"updated_at,notnull"`
}

func (r answerRow) toAnswer() domain.Answer {
	return domain.Answer{
		ID:         r.ID,
		ActivityID: r.ActivityID,
		StudentID:  r.StudentID,
		QuestionID: r.QuestionID,
		Value:      r.Answer,
		IsCorrect:  r.IsCorrect,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// AnswerRepository is the bun-backed implementation of
// app.AnswerRepository. The unique index on (activity_id, student_id,
// question_id) plus ON CONFLICT DO UPDATE makes Upsert a single atomic
// statement: concurrent submissions serialize to last-write-wins and can
// never create a duplicate row.
type AnswerRepository struct {
	db *bun.DB
}

func NewAnswerRepository(db *bun.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

func (r *AnswerRepository) Upsert(ctx context.Context, answer domain.Answer) (domain.Answer, error) {
	now := time.Now()
	row := answerRow{
		ID:         uuid.NewString(),
		ActivityID: answer.ActivityID,
		StudentID:  answer.StudentID,
		QuestionID: answer.QuestionID,
		Answer:     answer.Value,
		IsCorrect:  answer.IsCorrect,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err := r.db.NewInsert().
		Model(&row).
		On("CONFLICT (activity_id, student_id, question_id) DO UPDATE").
		Set("answer = EXCLUDED.answer").
		Set("is_correct = EXCLUDED.is_correct").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.Answer{}, domain.ErrStorage("upsert answer", err)
	}
	return row.toAnswer(), nil
}

func (r *AnswerRepository) ForStudent(ctx context.Context, activityID, studentID string) (map[string]domain.Answer, error) {
	var rows []answerRow
	err := r.db.NewSelect().Model(&rows).
		Where("activity_id = ?", activityID).
		Where("student_id = ?", studentID).
		Scan(ctx)
	if err != nil {
		return nil, domain.ErrStorage("select student answers", err)
	}

	byQuestion := make(map[string]domain.Answer, len(rows))
	for _, row := range rows {
		byQuestion[row.QuestionID] = row.toAnswer()
	}
	return byQuestion, nil
}

func (r *AnswerRepository) ForActivity(ctx context.Context, activityID string) ([]domain.Answer, error) {
	var rows []answerRow
	err := r.db.NewSelect().Model(&rows).
		Where("activity_id = ?", activityID).
		Scan(ctx)
	if err != nil {
		return nil, domain.ErrStorage("select activity answers", err)
	}

	answers := make([]domain.Answer, 0, len(rows))
	for _, row := range rows {
		answers = append(answers, row.toAnswer())
	}
	return answers, nil
}

func (r *AnswerRepository) DeleteForActivity(ctx context.Context, activityID string) error {
	_, err := r.db.NewDelete().
		Model((*answerRow)(nil)).
		Where("activity_id = ?", activityID).
		Exec(ctx)
	if err != nil {
		return domain.ErrStorage("delete activity answers", err)
	}
	return nil
}
