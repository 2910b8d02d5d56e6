package pages

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-labs/meridian/internal/platform/db"
	"github.com/meridian-labs/meridian/internal/shared"
)

// Repository provides PostgreSQL backed persistence for pages and the
// user-to-page assignment relation.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const pageColumns = `id, title, type, sub_type, is_active, layout, created_at, updated_at`

// List returns every page, inactive ones included.
func (r *Repository) List(ctx context.Context) ([]Page, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+pageColumns+` FROM pages ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPages(rows)
}

// ByID fetches a single page.
func (r *Repository) ByID(ctx context.Context, id string) (Page, error) {
	var p Page
	err := r.pool.QueryRow(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = $1`, id).
		Scan(&p.ID, &p.Title, &p.Type, &p.SubType, &p.IsActive, &p.Layout, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Page{}, shared.ErrNotFound
		}
		return Page{}, err
	}
	return p, nil
}

// ByIDs resolves a set of ids to live pages, silently skipping ids that no
// longer exist.
func (r *Repository) ByIDs(ctx context.Context, ids []string) ([]Page, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPages(rows)
}

// Insert persists a new page.
func (r *Repository) Insert(ctx context.Context, p Page) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO pages (id, title, type, sub_type, is_active, layout, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		p.ID, p.Title, string(p.Type), p.SubType, p.IsActive, p.Layout, p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicate
		}
		return err
	}
	return nil
}

// SetActive flips the activation flag.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE pages SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// UpdateContent applies a title/layout mutation to the page.
func (r *Repository) UpdateContent(ctx context.Context, id string, title string, layout []byte) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE pages
		 SET title = COALESCE(NULLIF($2, ''), title),
		     layout = COALESCE($3, layout),
		     updated_at = NOW()
		 WHERE id = $1`, id, title, layout)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// DeleteCascade removes the page and purges it from every user's assignment
// set in one transaction. Returns how many assignments were purged.
func (r *Repository) DeleteCascade(ctx context.Context, id string) (int64, error) {
	var purged int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM page_assignments WHERE page_id = $1`, id)
		if err != nil {
			return err
		}
		purged = tag.RowsAffected()
		pageTag, err := tx.Exec(ctx, `DELETE FROM pages WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if pageTag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return purged, nil
}

// Assign adds the page to the user's set. Idempotent: reports whether a row
// was actually added. Fails with shared.ErrNotFound when either id is absent.
func (r *Repository) Assign(ctx context.Context, userID, pageID string) (bool, error) {
	var added bool
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if err := checkExists(ctx, tx, `SELECT 1 FROM users WHERE id = $1`, userID); err != nil {
			return err
		}
		if err := checkExists(ctx, tx, `SELECT 1 FROM pages WHERE id = $1`, pageID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx,
			`INSERT INTO page_assignments (user_id, page_id, assigned_at) VALUES ($1, $2, NOW())
			 ON CONFLICT (user_id, page_id) DO NOTHING`, userID, pageID)
		if err != nil {
			return err
		}
		added = tag.RowsAffected() > 0
		return nil
	})
	return added, err
}

// Unassign removes the page from the user's set. Idempotent.
func (r *Repository) Unassign(ctx context.Context, userID, pageID string) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM page_assignments WHERE user_id = $1 AND page_id = $2`, userID, pageID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// AssignedPageIDs returns the raw assignment list for a user, stale ids
// included.
func (r *Repository) AssignedPageIDs(ctx context.Context, userID string) ([]string, error) {
	if err := r.userExists(ctx, userID); err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx,
		`SELECT page_id FROM page_assignments WHERE user_id = $1 ORDER BY assigned_at, page_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UsersWithAccess returns the inverse lookup for a page.
func (r *Repository) UsersWithAccess(ctx context.Context, pageID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM page_assignments WHERE page_id = $1 ORDER BY user_id`, pageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) userExists(ctx context.Context, userID string) error {
	var one int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM users WHERE id = $1`, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return err
}

func checkExists(ctx context.Context, tx pgx.Tx, query, id string) error {
	var one int
	err := tx.QueryRow(ctx, query, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	return err
}

func scanPages(rows pgx.Rows) ([]Page, error) {
	var list []Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.ID, &p.Title, &p.Type, &p.SubType, &p.IsActive, &p.Layout, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
