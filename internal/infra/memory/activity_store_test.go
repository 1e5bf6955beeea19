package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"classroom-activity-service/internal/app"
	"classroom-activity-service/internal/domain"
)

func storedActivity(id string, updatedAt time.Time) domain.Activity {
	return domain.Activity{
		ID:        id,
		OwnerID:   "teacher-1",
		RosterID:  "roster-1",
		QuizID:    "quiz-1",
		Duration:  600,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
}

func TestActivityStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore()
	base := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)

	if err := store.Create(ctx, storedActivity("a1", base)); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, storedActivity("a1", base)); err == nil {
		t.Fatalf("expected duplicate id rejection")
	}

	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "a1" {
		t.Fatalf("expected a1, got %s", got.ID)
	}

	if _, err := store.Get(ctx, "missing"); !domain.IsCode(err, domain.CodeNotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}

	err = store.Delete(ctx, "a1", func(domain.Activity) error { return nil })
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "a1"); !domain.IsCode(err, domain.CodeNotFound) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

func TestActivityStoreUpdateRejectedGuardLeavesValue(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore()
	base := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)

	if err := store.Create(ctx, storedActivity("a1", base)); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := store.Update(ctx, "a1", func(a *domain.Activity) error {
		a.Hidden = true
		return domain.ErrInvalidState("guard failed")
	})
	if !domain.IsCode(err, domain.CodeInvalidState) {
		t.Fatalf("expected guard error, got %v", err)
	}

	got, err := store.Get(ctx, "a1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Hidden {
		t.Fatalf("expected rejected mutation to leave the stored value alone")
	}
}

func TestActivityStoreUpdateSerializesRacingStarts(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore()
	base := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)

	if err := store.Create(ctx, storedActivity("a1", base)); err != nil {
		t.Fatalf("create: %v", err)
	}

	start := func(now time.Time) error {
		_, err := store.Update(ctx, "a1", func(a *domain.Activity) error {
			if a.StartedAt != nil {
				return domain.ErrInvalidState("already started")
			}
			a.StartedAt = &now
			return nil
		})
		return err
	}

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = start(base.Add(time.Duration(i) * time.Millisecond))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !domain.IsCode(err, domain.CodeInvalidState) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one racing start to win, got %d", succeeded)
	}
}

func TestActivityStoreListFilters(t *testing.T) {
	ctx := context.Background()
	store := NewActivityStore()
	base := time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)

	first := storedActivity("a1", base)
	second := storedActivity("a2", base.Add(time.Minute))
	second.OwnerID = "teacher-2"
	hidden := storedActivity("a3", base.Add(2*time.Minute))
	hidden.Hidden = true

	for _, a := range []domain.Activity{first, second, hidden} {
		if err := store.Create(ctx, a); err != nil {
			t.Fatalf("create %s: %v", a.ID, err)
		}
	}

	all, err := store.List(ctx, app.ActivityFilter{IncludeHidden: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a3" || all[2].ID != "a1" {
		t.Fatalf("expected newest-first order, got %+v", all)
	}

	visible, err := store.List(ctx, app.ActivityFilter{})
	if err != nil {
		t.Fatalf("list visible: %v", err)
	}
	if len(visible) != 2 {
		t.Fatalf("expected hidden filtered out, got %d", len(visible))
	}

	owned, err := store.List(ctx, app.ActivityFilter{OwnerID: "teacher-2", IncludeHidden: true})
	if err != nil {
		t.Fatalf("list owned: %v", err)
	}
	if len(owned) != 1 || owned[0].ID != "a2" {
		t.Fatalf("expected owner filter to match a2, got %+v", owned)
	}
}
