package domain

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle state of an activity. It is always derived from
// the stored timestamps and never persisted itself.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusOpened   Status = "opened"
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
)

// Activity is one timed assignment of a quiz to a roster, created and
// controlled by the owning teacher.
type Activity struct {
	ID                  string     `json:"id"`
	OwnerID             string     `json:"ownerId"`
	RosterID            string     `json:"rosterId"`
	QuizID              string     `json:"quizId"`
	Duration            int        `json:"duration"` // seconds
	ShuffleQuestions    bool       `json:"shuffleQuestions"`
	ShufflePropositions bool       `json:"shufflePropositions"`
	Seed                uint32     `json:"seed"`
	OpenedAt            *time.Time `json:"openedAt,omitempty"`
	StartedAt           *time.Time `json:"startedAt,omitempty"`
	Hidden              bool       `json:"hidden"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Status derives the lifecycle state at the given instant. A started
// activity finishes on its own once the duration has elapsed; no stored
// state records that transition.
func (a Activity) Status(now time.Time) Status {
	if a.StartedAt != nil {
		if now.Sub(*a.StartedAt) >= time.Duration(a.Duration)*time.Second {
			return StatusFinished
		}
		return StatusStarted
	}
	if a.OpenedAt != nil {
		return StatusOpened
	}
	return StatusIdle
}

// RemainingSeconds reports how much answer time is left, never negative.
func (a Activity) RemainingSeconds(now time.Time) int {
	if a.StartedAt == nil {
		return a.Duration
	}
	remaining := a.Duration - int(now.Sub(*a.StartedAt)/time.Second)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// QuestionType discriminates how a question is rendered and answered.
type QuestionType string

const (
	QuestionFreeForm       QuestionType = "free-form"
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionFillInTheGaps  QuestionType = "fill-in-the-gaps"
)

// Question is a gradable prompt owned by the quiz authoring service.
// Answer holds the canonical solution (pattern, index set or gap mapping
// depending on Type); the core treats it as opaque.
type Question struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Content     string          `json:"content"`
	Type        QuestionType    `json:"type"`
	Answer      json.RawMessage `json:"answer,omitempty"`
	Options     json.RawMessage `json:"options,omitempty"`
	Difficulty  string          `json:"difficulty,omitempty"`
	Explanation string          `json:"explanation,omitempty"`
}

// Quiz is an ordered collection of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// Student is one roster member.
type Student struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// Roster is a named group of students under one teacher. Membership order
// is significant: results matrices are reported in it.
type Roster struct {
	ID        string    `json:"id"`
	TeacherID string    `json:"teacherId"`
	Students  []Student `json:"students"`
}

// Contains reports whether the student belongs to the roster.
func (r Roster) Contains(studentID string) bool {
	for _, s := range r.Students {
		if s.ID == studentID {
			return true
		}
	}
	return false
}

// Answer is one student's recorded response to one question within one
// activity. The (activity, student, question) key is unique; resubmission
// overwrites Value and recomputes IsCorrect.
type Answer struct {
	ID         string          `json:"id"`
	ActivityID string          `json:"activityId"`
	StudentID  string          `json:"studentId"`
	QuestionID string          `json:"questionId"`
	Value      json.RawMessage `json:"value"`
	IsCorrect  bool            `json:"isCorrect"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// Role of the caller as asserted by the identity boundary.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Event types published on every successful activity mutation.
const (
	EventActivityUpdated = "activity.updated"
	EventActivityDeleted = "activity.deleted"
)

// Event is a best-effort change notification. Activity is nil for
// deletions; ActivityID always identifies the subject.
type Event struct {
	Type       string    `json:"type"`
	ActivityID string    `json:"activityId"`
	Activity   *Activity `json:"activity,omitempty"`
}

// QuestionProgress is one entry of a student's ordered question sequence,
// merged with that student's answer when present.
type QuestionProgress struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Content  string          `json:"content"`
	Answered bool            `json:"answered"`
	Answer   json.RawMessage `json:"answer,omitempty"`
}

// Progress summarizes how far a student is through an activity.
type Progress struct {
	Questions         []QuestionProgress `json:"questions"`
	CurrentQuestionID string             `json:"currentQuestionId,omitempty"`
	RemainingSeconds  int                `json:"remainingSeconds"`
	AnsweredCount     int                `json:"totalAnswered"`
	TotalCount        int                `json:"totalQuestions"`
	Percent           int                `json:"percentProgression"`
}

// QuestionView is a single question in a student's sequence, shaped for
// answering: canonical answer withheld, the student's own answer included.
type QuestionView struct {
	Position int             `json:"position"`
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Content  string          `json:"content"`
	Type     QuestionType    `json:"type"`
	Options  json.RawMessage `json:"options,omitempty"`
	Answer   json.RawMessage `json:"answer,omitempty"`
}

// ResultCell is one cell of the results matrix.
type ResultCell struct {
	Answer    json.RawMessage `json:"answer,omitempty"`
	IsCorrect bool            `json:"isCorrect"`
}

// Results is the full student x question correctness matrix for a
// finished activity. Rows follow roster-membership order, columns the
// canonical ascending question order, regardless of per-student shuffling.
type Results struct {
	ActivityID string                  `json:"activityId"`
	Students   []Student               `json:"students"`
	Questions  []Question              `json:"questions"`
	Matrix     map[string][]ResultCell `json:"matrix"`
}
