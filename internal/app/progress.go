package app

import (
	"context"
	"math"
	"strconv"

	"classroom-activity-service/internal/domain"
)

// GetProgress reports how far a student is through an activity: their
// ordered question sequence merged with their answers, the first
// unanswered question, counters and remaining time. Questions are not
// accessible before the activity has started.
func (s *ActivityService) GetProgress(ctx context.Context, activityID, studentID string) (domain.Progress, error) {
	activity, questions, err := s.studentQuestions(ctx, activityID, studentID)
	if err != nil {
		return domain.Progress{}, err
	}

	answers, err := s.answers.ForStudent(ctx, activityID, studentID)
	if err != nil {
		return domain.Progress{}, err
	}

	progress := domain.Progress{
		Questions:        make([]domain.QuestionProgress, 0, len(questions)),
		TotalCount:       len(questions),
		RemainingSeconds: activity.RemainingSeconds(s.now()),
	}
	for _, q := range questions {
		entry := domain.QuestionProgress{ID: q.ID, Name: q.Name, Content: q.Content}
		if answer, ok := answers[q.ID]; ok {
			entry.Answered = true
			entry.Answer = answer.Value
			progress.AnsweredCount++
		} else if progress.CurrentQuestionID == "" {
			// First unanswered in sequence order wins.
			progress.CurrentQuestionID = q.ID
		}
		progress.Questions = append(progress.Questions, entry)
	}

	if progress.TotalCount > 0 {
		progress.Percent = int(math.Round(float64(progress.AnsweredCount) / float64(progress.TotalCount) * 100))
	}
	return progress, nil
}

// GetQuestion returns the question at the given position of a student's
// ordered sequence, with the student's own answer merged in and the
// canonical answer withheld.
func (s *ActivityService) GetQuestion(ctx context.Context, activityID, studentID string, position int) (domain.QuestionView, error) {
	_, questions, err := s.studentQuestions(ctx, activityID, studentID)
	if err != nil {
		return domain.QuestionView{}, err
	}
	if position < 0 || position >= len(questions) {
		return domain.QuestionView{}, domain.ErrNotFound("question position", strconv.Itoa(position))
	}

	q := questions[position]
	view := domain.QuestionView{
		Position: position,
		ID:       q.ID,
		Name:     q.Name,
		Content:  q.Content,
		Type:     q.Type,
		Options:  q.Options,
	}

	answers, err := s.answers.ForStudent(ctx, activityID, studentID)
	if err != nil {
		return domain.QuestionView{}, err
	}
	if answer, ok := answers[q.ID]; ok {
		view.Answer = answer.Value
	}
	return view, nil
}

func (s *ActivityService) studentQuestions(ctx context.Context, activityID, studentID string) (domain.Activity, []domain.Question, error) {
	activity, err := s.activities.Get(ctx, activityID)
	if err != nil {
		return domain.Activity{}, nil, err
	}

	status := activity.Status(s.now())
	if status != domain.StatusStarted && status != domain.StatusFinished {
		return domain.Activity{}, nil, domain.ErrUnauthorized("cannot access questions before the beginning of the activity")
	}

	quiz, err := s.quizzes.GetQuiz(ctx, activity.QuizID)
	if err != nil {
		return domain.Activity{}, nil, err
	}
	return activity, OrderQuestions(activity, studentID, quiz.Questions), nil
}
