package media

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Create(ctx context.Context, m *Media) error {
	const sql = `
		INSERT INTO media (id, user_id, public_id, original_name, mime_type, url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, sql,
		m.ID, m.UserID, m.PublicID, m.OriginalName, m.MimeType, m.URL, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert media: %w", err)
	}
	return nil
}

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]Media, error) {
	const sql = `
		SELECT id, user_id, public_id, original_name, mime_type, url, created_at
		FROM media
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, sql, userID)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	defer rows.Close()

	items := []Media{}
	for rows.Next() {
		var m Media
		if err := rows.Scan(&m.ID, &m.UserID, &m.PublicID, &m.OriginalName, &m.MimeType, &m.URL, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}
	return items, nil
}

// DeleteByIDs removes the given media rows and returns the deleted records
// so the caller can remove the stored objects too. Missing ids are simply
// absent from the result (redelivered events).
func (r *Repository) DeleteByIDs(ctx context.Context, ids []string) ([]Media, error) {
	const sql = `
		DELETE FROM media
		WHERE id = ANY($1)
		RETURNING id, user_id, public_id, original_name, mime_type, url, created_at
	`
	rows, err := r.pool.Query(ctx, sql, ids)
	if err != nil {
		return nil, fmt.Errorf("delete media: %w", err)
	}
	defer rows.Close()

	items := []Media{}
	for rows.Next() {
		var m Media
		if err := rows.Scan(&m.ID, &m.UserID, &m.PublicID, &m.OriginalName, &m.MimeType, &m.URL, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan media: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delete media: %w", err)
	}
	return items, nil
}
