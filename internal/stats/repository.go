package stats

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository computes totals directly from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Totals runs the aggregate query.
func (r *Repository) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := r.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE is_active),
			(SELECT COUNT(*) FROM pages),
			(SELECT COUNT(*) FROM pages WHERE is_active),
			(SELECT COUNT(*) FROM page_assignments),
			(SELECT COUNT(*) FROM activity_logs WHERE occurred_at > NOW() - INTERVAL '24 hours')`).
		Scan(&t.Users, &t.ActiveUsers, &t.Pages, &t.ActivePages, &t.Assignments, &t.RecentActivity)
	if err != nil {
		return Totals{}, err
	}
	return t, nil
}
