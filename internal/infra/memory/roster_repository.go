package memory

import (
	"context"
	"time"

	"classroom-activity-service/internal/domain"
)

// RosterLoader fetches roster membership from a backing store.
type RosterLoader interface {
	LoadRoster(ctx context.Context, rosterID string) (domain.Roster, error)
}

// RosterRepository caches rosters with TTL. Membership order matters to
// results reporting, so loaders must return students in stored order.
type RosterRepository struct {
	cache *ttlCache[domain.Roster]
}

func NewRosterRepository(loader RosterLoader, ttl time.Duration) *RosterRepository {
	return &RosterRepository{cache: newTTLCache(loader.LoadRoster, ttl)}
}

func (r *RosterRepository) GetRoster(ctx context.Context, rosterID string) (domain.Roster, error) {
	return r.cache.get(ctx, rosterID)
}

// StaticRosterLoader is a loader backed by an in-memory map (tests, demos).
type StaticRosterLoader struct {
	rosters map[string]domain.Roster
}

func NewStaticRosterLoader(rosters map[string]domain.Roster) *StaticRosterLoader {
	return &StaticRosterLoader{rosters: rosters}
}

func (l *StaticRosterLoader) LoadRoster(_ context.Context, rosterID string) (domain.Roster, error) {
	if roster, ok := l.rosters[rosterID]; ok {
		return roster, nil
	}
	return domain.Roster{}, domain.ErrNotFound("roster", rosterID)
}
