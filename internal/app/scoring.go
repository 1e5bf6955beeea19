package app

import (
	"encoding/json"

	"classroom-activity-service/internal/domain"
)

// ScoringPolicy decides whether a submitted value answers a question
// correctly. Policies must be pure: same question and value, same verdict.
type ScoringPolicy interface {
	Score(question domain.Question, value json.RawMessage) bool
}

// ScoringPolicyFunc adapts a function to ScoringPolicy.
type ScoringPolicyFunc func(question domain.Question, value json.RawMessage) bool

func (f ScoringPolicyFunc) Score(q domain.Question, v json.RawMessage) bool {
	return f(q, v)
}

// AlwaysCorrect accepts every submission. This is the canonical default:
// real per-type grading is an open product question, so callers get the
// permissive policy unless they plug in another one.
func AlwaysCorrect() ScoringPolicy {
	return ScoringPolicyFunc(func(domain.Question, json.RawMessage) bool {
		return true
	})
}
