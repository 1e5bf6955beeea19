package app

import (
	"bytes"
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"classroom-activity-service/internal/domain"
)

// ActivityRepository stores activities. Update and Delete run their
// closure inside the store's critical section for the activity row, so a
// rejected guard aborts before any mutation and two racing transitions
// serialize instead of overwriting each other. List returns activities
// ordered by most recently updated first.
type ActivityRepository interface {
	Create(ctx context.Context, activity domain.Activity) error
	Get(ctx context.Context, id string) (domain.Activity, error)
	List(ctx context.Context, filter ActivityFilter) ([]domain.Activity, error)
	Update(ctx context.Context, id string, apply func(*domain.Activity) error) (domain.Activity, error)
	Delete(ctx context.Context, id string, guard func(activity domain.Activity) error) error
}

// ActivityFilter narrows List results. Zero values mean "no filter".
type ActivityFilter struct {
	OwnerID       string
	RosterID      string
	IncludeHidden bool
}

// AnswerRepository stores student answers. Upsert is atomic on the
// (activity, student, question) key: concurrent submissions serialize to
// last-write-wins without ever creating a duplicate.
type AnswerRepository interface {
	Upsert(ctx context.Context, answer domain.Answer) (domain.Answer, error)
	ForStudent(ctx context.Context, activityID, studentID string) (map[string]domain.Answer, error)
	ForActivity(ctx context.Context, activityID string) ([]domain.Answer, error)
	DeleteForActivity(ctx context.Context, activityID string) error
}

// QuizRepository loads quiz content from the authoring collaborator
// (through a cache or a backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// RosterRepository loads roster membership from the roster collaborator.
type RosterRepository interface {
	GetRoster(ctx context.Context, rosterID string) (domain.Roster, error)
}

// ActivityService implements the activity lifecycle and question-delivery
// use cases on top of the repositories.
type ActivityService struct {
	activities ActivityRepository
	answers    AnswerRepository
	quizzes    QuizRepository
	rosters    RosterRepository
	notifier   Notifier
	scoring    ScoringPolicy
	now        func() time.Time
	newSeed    func() uint32
}

func NewActivityService(
	activities ActivityRepository,
	answers AnswerRepository,
	quizzes QuizRepository,
	rosters RosterRepository,
	notifier Notifier,
) *ActivityService {
	return &ActivityService{
		activities: activities,
		answers:    answers,
		quizzes:    quizzes,
		rosters:    rosters,
		notifier:   notifier,
		scoring:    AlwaysCorrect(),
		now:        time.Now,
		newSeed:    rand.Uint32,
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *ActivityService) WithClock(now func() time.Time) *ActivityService {
	s.now = now
	return s
}

// WithScoringPolicy swaps the default always-correct policy.
func (s *ActivityService) WithScoringPolicy(p ScoringPolicy) *ActivityService {
	s.scoring = p
	return s
}

// WithSeedSource is test-only for deterministic default seeds.
func (s *ActivityService) WithSeedSource(newSeed func() uint32) *ActivityService {
	s.newSeed = newSeed
	return s
}

const defaultDuration = 600

// CreateActivityParams carries the create request. A nil Seed gets a
// random 32-bit value; a zero Duration gets the default.
type CreateActivityParams struct {
	OwnerID             string
	RosterID            string
	QuizID              string
	Duration            int
	ShuffleQuestions    bool
	ShufflePropositions bool
	Seed                *uint32
}

// CreateActivity assigns a quiz to a roster. Only the roster's teacher
// may create the activity.
func (s *ActivityService) CreateActivity(ctx context.Context, p CreateActivityParams) (domain.Activity, error) {
	if p.Duration == 0 {
		p.Duration = defaultDuration
	}
	if p.Duration < 10 {
		return domain.Activity{}, domain.ErrInvalidInput("duration must be at least 10 seconds")
	}
	if p.RosterID == "" || p.QuizID == "" {
		return domain.Activity{}, domain.ErrInvalidInput("roster and quiz are required")
	}

	roster, err := s.rosters.GetRoster(ctx, p.RosterID)
	if err != nil {
		return domain.Activity{}, err
	}
	if roster.TeacherID != p.OwnerID {
		return domain.Activity{}, domain.ErrUnauthorized("only the roster's teacher can create an activity")
	}
	if _, err := s.quizzes.GetQuiz(ctx, p.QuizID); err != nil {
		return domain.Activity{}, err
	}

	seed := s.newSeed()
	if p.Seed != nil {
		seed = *p.Seed
	}

	now := s.now()
	activity := domain.Activity{
		ID:                  uuid.NewString(),
		OwnerID:             p.OwnerID,
		RosterID:            p.RosterID,
		QuizID:              p.QuizID,
		Duration:            p.Duration,
		ShuffleQuestions:    p.ShuffleQuestions,
		ShufflePropositions: p.ShufflePropositions,
		Seed:                seed,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.activities.Create(ctx, activity); err != nil {
		return domain.Activity{}, err
	}

	s.notify(ctx, domain.EventActivityUpdated, activity.ID, &activity)
	return activity, nil
}

// GetActivity fetches one activity by ID.
func (s *ActivityService) GetActivity(ctx context.Context, id string) (domain.Activity, error) {
	return s.activities.Get(ctx, id)
}

// ListOptions narrows ListActivities.
type ListOptions struct {
	RosterID  string
	OwnedOnly bool
}

// ListActivities returns the activities visible to the caller, most
// recently updated first. Teachers see everything (their own when
// OwnedOnly); students see only non-hidden activities of rosters they
// belong to.
func (s *ActivityService) ListActivities(ctx context.Context, callerID string, role domain.Role, opts ListOptions) ([]domain.Activity, error) {
	filter := ActivityFilter{RosterID: opts.RosterID, IncludeHidden: true}
	if role == domain.RoleTeacher && opts.OwnedOnly {
		filter.OwnerID = callerID
	}
	if role == domain.RoleStudent {
		filter.IncludeHidden = false
	}

	activities, err := s.activities.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if role != domain.RoleStudent {
		return activities, nil
	}

	// Students only see activities of rosters they are members of.
	membership := make(map[string]bool)
	visible := make([]domain.Activity, 0, len(activities))
	for _, a := range activities {
		member, known := membership[a.RosterID]
		if !known {
			roster, err := s.rosters.GetRoster(ctx, a.RosterID)
			member = err == nil && roster.Contains(callerID)
			membership[a.RosterID] = member
		}
		if member {
			visible = append(visible, a)
		}
	}
	return visible, nil
}

// OpenActivity lets students in; allowed only while idle.
func (s *ActivityService) OpenActivity(ctx context.Context, activityID, callerID string) (domain.Activity, error) {
	return s.transition(ctx, "open", activityID, callerID)
}

// CloseActivity reverts an opened activity to idle.
func (s *ActivityService) CloseActivity(ctx context.Context, activityID, callerID string) (domain.Activity, error) {
	return s.transition(ctx, "close", activityID, callerID)
}

// StartActivity starts the clock. Once set, the start time is never
// cleared; the activity finishes on its own after the duration elapses.
func (s *ActivityService) StartActivity(ctx context.Context, activityID, callerID string) (domain.Activity, error) {
	return s.transition(ctx, "start", activityID, callerID)
}

// HideActivity withdraws a finished activity from students.
func (s *ActivityService) HideActivity(ctx context.Context, activityID, callerID string) (domain.Activity, error) {
	return s.transition(ctx, "hide", activityID, callerID)
}

// ShowActivity makes a hidden activity visible again.
func (s *ActivityService) ShowActivity(ctx context.Context, activityID, callerID string) (domain.Activity, error) {
	return s.transition(ctx, "show", activityID, callerID)
}

func (s *ActivityService) transition(ctx context.Context, op, activityID, callerID string) (domain.Activity, error) {
	tr, ok := transitions[op]
	if !ok {
		return domain.Activity{}, domain.ErrInvalidInput("unknown transition " + op)
	}

	now := s.now()
	updated, err := s.activities.Update(ctx, activityID, func(a *domain.Activity) error {
		if err := checkTransition(tr, *a, callerID, now); err != nil {
			return err
		}
		tr.apply(a, now)
		a.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Activity{}, err
	}

	s.notify(ctx, domain.EventActivityUpdated, updated.ID, &updated)
	return updated, nil
}

// DeleteActivity removes an idle activity and any answers keyed to it.
func (s *ActivityService) DeleteActivity(ctx context.Context, activityID, callerID string) error {
	now := s.now()
	err := s.activities.Delete(ctx, activityID, func(a domain.Activity) error {
		if a.OwnerID != callerID {
			return domain.ErrUnauthorized("only the owner can delete this activity")
		}
		if a.Status(now) != domain.StatusIdle {
			return domain.ErrInvalidState("only idle activities can be deleted")
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Idle activities have no answers, but the cascade keeps the store
	// clean if one ever slipped through.
	if err := s.answers.DeleteForActivity(ctx, activityID); err != nil {
		return err
	}

	s.notify(ctx, domain.EventActivityDeleted, activityID, nil)
	return nil
}

// SubmitAnswer records a student's response and scores it. Resubmitting
// the same question overwrites the previous value and verdict.
func (s *ActivityService) SubmitAnswer(ctx context.Context, activityID, studentID, questionID string, value json.RawMessage) (domain.Answer, error) {
	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return domain.Answer{}, err
	}

	now := s.now()
	if activity.Status(now) != domain.StatusStarted {
		return domain.Answer{}, domain.ErrUnauthorized("answers are only accepted while the activity is running")
	}

	roster, err := s.rosters.GetRoster(ctx, activity.RosterID)
	if err != nil {
		return domain.Answer{}, err
	}
	if !roster.Contains(studentID) {
		return domain.Answer{}, domain.ErrUnauthorized("only roster members can answer")
	}

	if emptyValue(value) {
		return domain.Answer{}, domain.ErrInvalidInput("no answer given")
	}

	quiz, err := s.quizzes.GetQuiz(ctx, activity.QuizID)
	if err != nil {
		return domain.Answer{}, err
	}
	question, ok := findQuestion(quiz, questionID)
	if !ok {
		return domain.Answer{}, domain.ErrNotFound("question", questionID)
	}

	return s.answers.Upsert(ctx, domain.Answer{
		ActivityID: activityID,
		StudentID:  studentID,
		QuestionID: questionID,
		Value:      value,
		IsCorrect:  s.scoring.Score(question, value),
	})
}

func (s *ActivityService) notify(ctx context.Context, eventType, activityID string, activity *domain.Activity) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(ctx, domain.Event{
		Type:       eventType,
		ActivityID: activityID,
		Activity:   activity,
	})
}

func findQuestion(quiz domain.Quiz, questionID string) (domain.Question, bool) {
	for _, q := range quiz.Questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return domain.Question{}, false
}

func emptyValue(value json.RawMessage) bool {
	trimmed := bytes.TrimSpace(value)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`))
}
