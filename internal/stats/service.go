package stats

import (
	"context"

	"golang.org/x/sync/singleflight"
)

const dashboardKey = "stats:dashboard"

// Totals aggregates the dashboard counters.
type Totals struct {
	Users          int64 `json:"users"`
	ActiveUsers    int64 `json:"active_users"`
	Pages          int64 `json:"pages"`
	ActivePages    int64 `json:"active_pages"`
	Assignments    int64 `json:"assignments"`
	RecentActivity int64 `json:"recent_activity"`
}

// RepositoryPort computes totals from storage.
type RepositoryPort interface {
	Totals(ctx context.Context) (Totals, error)
}

// Service serves cached dashboard statistics. Concurrent cache misses are
// collapsed into a single recomputation.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	group singleflight.Group
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// Dashboard returns the current totals.
func (s *Service) Dashboard(ctx context.Context) (Totals, error) {
	v, err, _ := s.group.Do(dashboardKey, func() (any, error) {
		var totals Totals
		err := s.cache.FetchJSON(ctx, dashboardKey, &totals, func(ctx context.Context) (any, error) {
			return s.repo.Totals(ctx)
		})
		return totals, err
	})
	if err != nil {
		return Totals{}, err
	}
	return v.(Totals), nil
}

// Invalidate drops the cached aggregate after a mutation.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx, dashboardKey)
}
