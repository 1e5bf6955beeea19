package app_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"classroom-activity-service/internal/app"
	"classroom-activity-service/internal/domain"
)

func TestResultsGatedUntilFinishedAndVisible(t *testing.T) {
	clock := newFakeClock()
	service := newTestService(clock)
	ctx := context.Background()

	activity := createActivity(t, service, 600)

	if _, err := service.GetResults(ctx, activity.ID, teacherID); !domain.IsCode(err, domain.CodeInvalidState) {
		t.Fatalf("expected InvalidState before finish, got %v", err)
	}

	if _, err := service.StartActivity(ctx, activity.ID, teacherID); err != nil {
		t.Fatalf("start: %v", err)
	}
	clock.Advance(601 * time.Second)
	if _, err := service.HideActivity(ctx, activity.ID, teacherID); err != nil {
		t.Fatalf("hide: %v", err)
	}

	if _, err := service.GetResults(ctx, activity.ID, teacherID); !domain.IsCode(err, domain.CodeInvalidState) {
		t.Fatalf("expected InvalidState while hidden, got %v", err)
	}
}

func TestProgressionLiveForOwner(t *testing.T) {
	clock := newFakeClock()
	service := newTestService(clock)
	ctx := context.Background()

	activity := createActivity(t, service, 600)
	if _, err := service.StartActivity(ctx, activity.ID, teacherID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, activity.ID, studentID, "q1", json.RawMessage(`"42"`)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	// While the activity is still running, results stay gated but the
	// owner's progression view already shows the submitted answer.
	if _, err := service.GetResults(ctx, activity.ID, teacherID); !domain.IsCode(err, domain.CodeInvalidState) {
		t.Fatalf("expected InvalidState from results mid-run, got %v", err)
	}
	progression, err := service.GetProgression(ctx, activity.ID, teacherID)
	if err != nil {
		t.Fatalf("progression: %v", err)
	}
	if string(progression.Matrix[studentID][0].Answer) != `"42"` {
		t.Fatalf("expected live q1 answer, got %+v", progression.Matrix[studentID][0])
	}
	if cell := progression.Matrix[student2ID][0]; cell.Answer != nil {
		t.Fatalf("expected empty cell for silent student, got %+v", cell)
	}

	if _, err := service.GetProgression(ctx, activity.ID, studentID); !domain.IsCode(err, domain.CodeUnauthorized) {
		t.Fatalf("expected Unauthorized for non-owner, got %v", err)
	}
}

func TestResultsMatrixOrdering(t *testing.T) {
	clock := newFakeClock()
	service := newTestService(clock)
	ctx := context.Background()

	// Shuffling is on: each student sees their own order, but the matrix
	// must stay in roster order x canonical question order.
	activity, err := service.CreateActivity(ctx, app.CreateActivityParams{
		OwnerID:          teacherID,
		RosterID:         rosterID,
		QuizID:           quizID,
		Duration:         600,
		ShuffleQuestions: true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := service.StartActivity(ctx, activity.ID, teacherID); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := service.SubmitAnswer(ctx, activity.ID, studentID, "q2", json.RawMessage(`"alice"`)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.SubmitAnswer(ctx, activity.ID, student2ID, "q1", json.RawMessage(`"bob"`)); err != nil {
		t.Fatalf("submit: %v", err)
	}

	clock.Advance(601 * time.Second)
	results, err := service.GetResults(ctx, activity.ID, teacherID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}

	// Roster membership order: Bob first, then Alice.
	if len(results.Students) != 2 || results.Students[0].ID != student2ID || results.Students[1].ID != studentID {
		t.Fatalf("expected roster order [%s %s], got %+v", student2ID, studentID, results.Students)
	}
	wantQuestions := []string{"q1", "q2", "q3"}
	for i, q := range results.Questions {
		if q.ID != wantQuestions[i] {
			t.Fatalf("expected canonical question order %v, got %s at %d", wantQuestions, q.ID, i)
		}
	}

	aliceRow := results.Matrix[studentID]
	if len(aliceRow) != 3 {
		t.Fatalf("expected a cell per question, got %d", len(aliceRow))
	}
	if string(aliceRow[1].Answer) != `"alice"` || !aliceRow[1].IsCorrect {
		t.Fatalf("expected Alice's q2 answer, got %+v", aliceRow[1])
	}
	if aliceRow[0].Answer != nil || aliceRow[0].IsCorrect {
		t.Fatalf("expected empty cell for unanswered q1, got %+v", aliceRow[0])
	}

	bobRow := results.Matrix[student2ID]
	if string(bobRow[0].Answer) != `"bob"` {
		t.Fatalf("expected Bob's q1 answer, got %+v", bobRow[0])
	}
}
