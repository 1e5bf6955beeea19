package app

import (
	"time"

	"classroom-activity-service/internal/domain"
)

// transition declares one owner-gated lifecycle operation: the states it
// may run from, extra guards beyond the state check, and the mutation it
// applies. Keeping these declarative keeps the per-operation authorization
// and legality checks in one table instead of scattered conditionals.
type transition struct {
	name  string
	from  map[domain.Status]bool
	guard func(a domain.Activity, now time.Time) error
	apply func(a *domain.Activity, now time.Time)
}

var transitions = map[string]transition{
	"open": {
		name: "open",
		from: map[domain.Status]bool{domain.StatusIdle: true},
		guard: func(a domain.Activity, _ time.Time) error {
			if a.Hidden {
				return domain.ErrInvalidState("cannot open a hidden activity")
			}
			return nil
		},
		apply: func(a *domain.Activity, now time.Time) {
			t := now
			a.OpenedAt = &t
		},
	},
	"close": {
		name: "close",
		from: map[domain.Status]bool{domain.StatusOpened: true},
		apply: func(a *domain.Activity, _ time.Time) {
			a.OpenedAt = nil
		},
	},
	"start": {
		name: "start",
		// No from-state set: the check is against not-yet-started rather
		// than a single state, since opening is the normal flow but not a
		// hard precondition. The guards keep the original message per case.
		guard: func(a domain.Activity, now time.Time) error {
			if a.Hidden {
				return domain.ErrInvalidState("cannot start a hidden activity")
			}
			if a.StartedAt != nil && a.Status(now) == domain.StatusFinished {
				return domain.ErrInvalidState("cannot restart a finished activity")
			}
			if a.StartedAt != nil {
				return domain.ErrInvalidState("activity already started")
			}
			return nil
		},
		apply: func(a *domain.Activity, now time.Time) {
			t := now
			a.StartedAt = &t
		},
	},
	"hide": {
		name: "hide",
		from: map[domain.Status]bool{domain.StatusFinished: true},
		guard: func(a domain.Activity, _ time.Time) error {
			if a.Hidden {
				return domain.ErrInvalidState("activity already hidden")
			}
			return nil
		},
		apply: func(a *domain.Activity, _ time.Time) {
			a.Hidden = true
		},
	},
	"show": {
		name: "show",
		// Visible from any state; the only requirement is being hidden.
		guard: func(a domain.Activity, _ time.Time) error {
			if !a.Hidden {
				return domain.ErrInvalidState("activity already visible")
			}
			return nil
		},
		apply: func(a *domain.Activity, _ time.Time) {
			a.Hidden = false
		},
	},
}

// checkTransition runs the owner gate, state check and extra guards in
// that order, without mutating. The owner check always comes first so a
// non-owner learns nothing about the activity's state.
func checkTransition(tr transition, a domain.Activity, callerID string, now time.Time) error {
	if a.OwnerID != callerID {
		return domain.ErrUnauthorized("only the owner of an activity can " + tr.name + " it")
	}
	if tr.from != nil && !tr.from[a.Status(now)] {
		return domain.ErrInvalidState("cannot " + tr.name + " an activity in state " + string(a.Status(now)))
	}
	if tr.guard != nil {
		return tr.guard(a, now)
	}
	return nil
}
