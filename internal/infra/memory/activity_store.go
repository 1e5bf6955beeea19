package memory

import (
	"context"
	"sort"
	"sync"

	"classroom-activity-service/internal/app"
	"classroom-activity-service/internal/domain"
)

// ActivityStore is an in-memory implementation of app.ActivityRepository.
// The mutex is held across the Update/Delete closures, which gives each
// transition the atomic read-then-write the lifecycle checks rely on.
type ActivityStore struct {
	mu         sync.RWMutex
	activities map[string]domain.Activity
}

func NewActivityStore() *ActivityStore {
	return &ActivityStore{activities: make(map[string]domain.Activity)}
}

func (s *ActivityStore) Create(_ context.Context, activity domain.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.activities[activity.ID]; ok {
		return domain.ErrInvalidInput("activity id already exists")
	}
	s.activities[activity.ID] = activity
	return nil
}

func (s *ActivityStore) Get(_ context.Context, id string) (domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	activity, ok := s.activities[id]
	if !ok {
		return domain.Activity{}, domain.ErrNotFound("activity", id)
	}
	return activity, nil
}

func (s *ActivityStore) List(_ context.Context, filter app.ActivityFilter) ([]domain.Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Activity, 0, len(s.activities))
	for _, a := range s.activities {
		if filter.OwnerID != "" && a.OwnerID != filter.OwnerID {
			continue
		}
		if filter.RosterID != "" && a.RosterID != filter.RosterID {
			continue
		}
		if !filter.IncludeHidden && a.Hidden {
			continue
		}
		matched = append(matched, a)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].UpdatedAt.After(matched[j].UpdatedAt)
	})
	return matched, nil
}

func (s *ActivityStore) Update(_ context.Context, id string, apply func(*domain.Activity) error) (domain.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, ok := s.activities[id]
	if !ok {
		return domain.Activity{}, domain.ErrNotFound("activity", id)
	}

	// apply works on a copy; a rejected guard leaves the stored value alone.
	if err := apply(&activity); err != nil {
		return domain.Activity{}, err
	}
	s.activities[id] = activity
	return activity, nil
}

func (s *ActivityStore) Delete(_ context.Context, id string, guard func(domain.Activity) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, ok := s.activities[id]
	if !ok {
		return domain.ErrNotFound("activity", id)
	}
	if err := guard(activity); err != nil {
		return err
	}
	delete(s.activities, id)
	return nil
}
