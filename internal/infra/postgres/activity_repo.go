package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"classroom-activity-service/internal/app"
	"classroom-activity-service/internal/domain"
)

type activityRow struct {
	bun.BaseModel `bun:"table:activities,alias:a"`

	ID                  string     `bun:"id,pk"`
	OwnerID             string     `bun:"owner_id,notnull"`
	RosterID            string     `bun:"roster_id,notnull"`
	QuizID              string     `bun:"quiz_id,notnull"`
	Duration            int        `bun:"duration,notnull"`
	ShuffleQuestions    bool       `bun:"shuffle_questions,notnull"`
	ShufflePropositions bool       `bun:"shuffle_propositions,notnull"`
	Seed                int64      `bun:"seed,notnull"`
	OpenedAt            *time.Time `bun:"opened_at"`
	StartedAt           *time.Time `bun:"started_at"`
	Hidden              bool       `bun:"hidden,notnull"`
	CreatedAt           time.Time  `bun:"created_at,notnull"`
	UpdatedAt           time.Time  `bun:"updated_at,notnull"`
}

func rowFromActivity(a domain.Activity) activityRow {
	return activityRow{
		ID:                  a.ID,
		OwnerID:             a.OwnerID,
		RosterID:            a.RosterID,
		QuizID:              a.QuizID,
		Duration:            a.Duration,
		ShuffleQuestions:    a.ShuffleQuestions,
		ShufflePropositions: a.ShufflePropositions,
		Seed:                int64(a.Seed),
		OpenedAt:            a.OpenedAt,
		StartedAt:           a.StartedAt,
		Hidden:              a.Hidden,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
}

func (r activityRow) toActivity() domain.Activity {
	return domain.Activity{
		ID:                  r.ID,
		OwnerID:             r.OwnerID,
		RosterID:            r.RosterID,
		QuizID:              r.QuizID,
		Duration:            r.Duration,
		ShuffleQuestions:    r.ShuffleQuestions,
		ShufflePropositions: r.ShufflePropositions,
		Seed:                uint32(r.Seed),
		OpenedAt:            r.OpenedAt,
		StartedAt:           r.StartedAt,
		Hidden:              r.Hidden,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

// ActivityRepository is the bun-backed implementation of
// app.ActivityRepository. Update and Delete lock the row with
// SELECT ... FOR UPDATE inside a transaction, so a guard that passes
// cannot be invalidated by a racing transition on the same activity.
type ActivityRepository struct {
	db *bun.DB
}

func NewActivityRepository(db *bun.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

func (r *ActivityRepository) Create(ctx context.Context, activity domain.Activity) error {
	row := rowFromActivity(activity)
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.ErrStorage("insert activity", err)
	}
	return nil
}

func (r *ActivityRepository) Get(ctx context.Context, id string) (domain.Activity, error) {
	var row activityRow
	err := r.db.NewSelect().Model(&row).Where("a.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Activity{}, domain.ErrNotFound("activity", id)
	}
	if err != nil {
		return domain.Activity{}, domain.ErrStorage("select activity", err)
	}
	return row.toActivity(), nil
}

func (r *ActivityRepository) List(ctx context.Context, filter app.ActivityFilter) ([]domain.Activity, error) {
	var rows []activityRow
	q := r.db.NewSelect().Model(&rows).Order("updated_at DESC")
	if filter.OwnerID != "" {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.RosterID != "" {
		q = q.Where("roster_id = ?", filter.RosterID)
	}
	if !filter.IncludeHidden {
		q = q.Where("NOT hidden")
	}
	if err := q.Scan(ctx); err != nil {
		return nil, domain.ErrStorage("list activities", err)
	}

	activities := make([]domain.Activity, 0, len(rows))
	for _, row := range rows {
		activities = append(activities, row.toActivity())
	}
	return activities, nil
}

func (r *ActivityRepository) Update(ctx context.Context, id string, apply func(*domain.Activity) error) (domain.Activity, error) {
	var updated domain.Activity
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row activityRow
		err := tx.NewSelect().Model(&row).Where("a.id = ?", id).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound("activity", id)
		}
		if err != nil {
			return domain.ErrStorage("lock activity", err)
		}

		activity := row.toActivity()
		if err := apply(&activity); err != nil {
			return err
		}

		row = rowFromActivity(activity)
		if _, err := tx.NewUpdate().Model(&row).WherePK().Exec(ctx); err != nil {
			return domain.ErrStorage("update activity", err)
		}
		updated = activity
		return nil
	})
	if err != nil {
		return domain.Activity{}, err
	}
	return updated, nil
}

func (r *ActivityRepository) Delete(ctx context.Context, id string, guard func(domain.Activity) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var row activityRow
		err := tx.NewSelect().Model(&row).Where("a.id = ?", id).For("UPDATE").Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound("activity", id)
		}
		if err != nil {
			return domain.ErrStorage("lock activity", err)
		}

		if err := guard(row.toActivity()); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model(&row).WherePK().Exec(ctx); err != nil {
			return domain.ErrStorage("delete activity", err)
		}
		return nil
	})
}
