package app

import (
	"context"
	"sort"

	"classroom-activity-service/internal/domain"
)

// GetResults builds the full student x question correctness matrix for a
// finished, visible activity. Rows follow roster-membership order and
// columns the canonical ascending question order, so the teacher's review
// is stable regardless of each student's shuffle seed. The caller need
// not be the owner; visibility is the only gate.
func (s *ActivityService) GetResults(ctx context.Context, activityID, _ string) (domain.Results, error) {
	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return domain.Results{}, err
	}

	if activity.Status(s.now()) != domain.StatusFinished || activity.Hidden {
		return domain.Results{}, domain.ErrInvalidState("no accessible results for this activity")
	}

	return s.buildMatrix(ctx, activity)
}

// GetProgression is the owner's live view of the same matrix while the
// activity runs: no finished or visibility gate, so a teacher can watch
// answers land as students submit them.
func (s *ActivityService) GetProgression(ctx context.Context, activityID, callerID string) (domain.Results, error) {
	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return domain.Results{}, err
	}

	if activity.OwnerID != callerID {
		return domain.Results{}, domain.ErrUnauthorized("only the owner can follow an activity's progression")
	}

	return s.buildMatrix(ctx, activity)
}

func (s *ActivityService) buildMatrix(ctx context.Context, activity domain.Activity) (domain.Results, error) {
	roster, err := s.rosters.GetRoster(ctx, activity.RosterID)
	if err != nil {
		return domain.Results{}, err
	}
	quiz, err := s.quizzes.GetQuiz(ctx, activity.QuizID)
	if err != nil {
		return domain.Results{}, err
	}
	answers, err := s.answers.ForActivity(ctx, activity.ID)
	if err != nil {
		return domain.Results{}, err
	}

	questions := make([]domain.Question, len(quiz.Questions))
	copy(questions, quiz.Questions)
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })

	type key struct{ student, question string }
	byKey := make(map[key]domain.Answer, len(answers))
	for _, a := range answers {
		byKey[key{a.StudentID, a.QuestionID}] = a
	}

	results := domain.Results{
		ActivityID: activity.ID,
		Students:   roster.Students,
		Questions:  questions,
		Matrix:     make(map[string][]domain.ResultCell, len(roster.Students)),
	}
	for _, student := range roster.Students {
		row := make([]domain.ResultCell, len(questions))
		for i, q := range questions {
			if a, ok := byKey[key{student.ID, q.ID}]; ok {
				row[i] = domain.ResultCell{Answer: a.Value, IsCorrect: a.IsCorrect}
			}
		}
		results.Matrix[student.ID] = row
	}
	return results, nil
}
