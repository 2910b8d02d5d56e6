package stats

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type mockRepo struct {
	totals Totals
	calls  int
}

func (m *mockRepo) Totals(ctx context.Context) (Totals, error) {
	m.calls++
	return m.totals, nil
}

func newCachedService(t *testing.T, repo RepositoryPort) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewCache(client, time.Minute))
}

func TestDashboardCachesTotals(t *testing.T) {
	repo := &mockRepo{totals: Totals{Users: 12, ActiveUsers: 10, Pages: 4, ActivePages: 3, Assignments: 18, RecentActivity: 7}}
	svc := newCachedService(t, repo)
	ctx := context.Background()

	first, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if first != repo.totals {
		t.Fatalf("unexpected totals %+v", first)
	}

	second, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if second != first {
		t.Fatalf("cached totals differ: %+v vs %+v", second, first)
	}
	if repo.calls != 1 {
		t.Fatalf("expected a single repository hit, got %d", repo.calls)
	}
}

func TestInvalidateForcesRecompute(t *testing.T) {
	repo := &mockRepo{totals: Totals{Users: 1}}
	svc := newCachedService(t, repo)
	ctx := context.Background()

	if _, err := svc.Dashboard(ctx); err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	repo.totals = Totals{Users: 2}
	if err := svc.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	got, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if got.Users != 2 {
		t.Fatalf("expected recomputed totals, got %+v", got)
	}
	if repo.calls != 2 {
		t.Fatalf("expected 2 repository hits, got %d", repo.calls)
	}
}

func TestDashboardDegradesWithoutRedis(t *testing.T) {
	repo := &mockRepo{totals: Totals{Users: 5}}
	svc := NewService(repo, NewCache(nil, time.Minute))

	got, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if got.Users != 5 {
		t.Fatalf("unexpected totals %+v", got)
	}
}
